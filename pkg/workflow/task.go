package workflow

import (
	"context"
	"fmt"
	"time"
)

// TaskFunc is the untyped form of a task. Args arrive in the order they were
// passed to Builder.Task, with references resolved to their values.
type TaskFunc func(ctx context.Context, args ...any) (any, error)

// RetryPolicy controls task retries with exponential backoff.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts (1 = no retry).
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the per-attempt delay. Zero means no cap.
	MaxBackoff time.Duration

	// BackoffMultiplier scales the delay after every attempt.
	// Values <= 0 default to 2.
	BackoffMultiplier float64
}

// TaskOption configures a task at its definition site.
type TaskOption func(*taskConfig)

type taskConfig struct {
	retry *RetryPolicy
}

// WithRetry attaches a retry policy to the task.
func WithRetry(p RetryPolicy) TaskOption {
	return func(c *taskConfig) { c.retry = &p }
}

// Typed adapts a single-argument typed function to a TaskFunc. The argument
// is converted from the resolved value; a type mismatch fails the task.
func Typed[A, R any](fn func(ctx context.Context, a A) (R, error)) TaskFunc {
	return func(ctx context.Context, args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("workflow: task expects 1 argument, got %d", len(args))
		}
		a, err := convertArg[A](args[0], 0)
		if err != nil {
			return nil, err
		}
		return fn(ctx, a)
	}
}

// Typed2 adapts a two-argument typed function to a TaskFunc.
func Typed2[A, B, R any](fn func(ctx context.Context, a A, b B) (R, error)) TaskFunc {
	return func(ctx context.Context, args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("workflow: task expects 2 arguments, got %d", len(args))
		}
		a, err := convertArg[A](args[0], 0)
		if err != nil {
			return nil, err
		}
		b, err := convertArg[B](args[1], 1)
		if err != nil {
			return nil, err
		}
		return fn(ctx, a, b)
	}
}

// Typed3 adapts a three-argument typed function to a TaskFunc.
func Typed3[A, B, C, R any](fn func(ctx context.Context, a A, b B, c C) (R, error)) TaskFunc {
	return func(ctx context.Context, args ...any) (any, error) {
		if len(args) != 3 {
			return nil, fmt.Errorf("workflow: task expects 3 arguments, got %d", len(args))
		}
		a, err := convertArg[A](args[0], 0)
		if err != nil {
			return nil, err
		}
		b, err := convertArg[B](args[1], 1)
		if err != nil {
			return nil, err
		}
		c, err := convertArg[C](args[2], 2)
		if err != nil {
			return nil, err
		}
		return fn(ctx, a, b, c)
	}
}

func convertArg[T any](v any, pos int) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		// Numeric widening: resolved values read back from a store often
		// arrive as float64.
		if f, isF := v.(float64); isF {
			if tt, okF := any(f).(T); okF {
				return tt, nil
			}
			if i, okI := any(int(f)).(T); okI && f == float64(int(f)) {
				return i, nil
			}
		}
		return zero, fmt.Errorf("workflow: argument %d has type %T, want %T", pos, v, zero)
	}
	return t, nil
}
