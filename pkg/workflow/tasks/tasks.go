// Package tasks provides ready-made workflow tasks that drive a Session:
// compiling experiments, executing them, and collecting their results.
// Session-bound tasks are constructed per session; the result tasks are
// plain values usable in any workflow.
//
//	b := workflow.NewBuilder("sweep")
//	ce := b.Task("compile", tasks.CompileExperiment(sess), exp)
//	res := b.Task("run", tasks.RunExperiment(sess), ce)
//	b.Return(res)
package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/royglick/laboneq/pkg/dsl"
	"github.com/royglick/laboneq/pkg/result"
	"github.com/royglick/laboneq/pkg/session"
	"github.com/royglick/laboneq/pkg/workflow"
)

// CompileExperiment returns a task that compiles an experiment against the
// session's device setup. The task takes a *dsl.Experiment and produces a
// *session.CompiledExperiment.
func CompileExperiment(s *session.Session) workflow.TaskFunc {
	return workflow.Typed(func(_ context.Context, exp *dsl.Experiment) (*session.CompiledExperiment, error) {
		if exp == nil {
			return nil, errors.New("tasks: compile: nil experiment")
		}
		return s.Compile(exp)
	})
}

// RunExperiment returns a task that executes a compiled experiment on the
// session. The task takes a *session.CompiledExperiment and produces the
// run's *result.Results.
func RunExperiment(s *session.Session) workflow.TaskFunc {
	return workflow.Typed(func(ctx context.Context, ce *session.CompiledExperiment) (*result.Results, error) {
		if ce == nil {
			return nil, errors.New("tasks: run: nil compiled experiment")
		}
		return s.RunCompiled(ctx, ce)
	})
}

// AppendResult appends one run's results to an accumulator slice, for
// collecting results across loop iterations. A nil accumulator starts a new
// slice, so the first iteration needs no seed value.
var AppendResult workflow.TaskFunc = workflow.Typed2(
	func(_ context.Context, acc []*result.Results, r *result.Results) ([]*result.Results, error) {
		if r == nil {
			return nil, errors.New("tasks: append: nil results")
		}
		return append(acc, r), nil
	})

// CombineResults merges a slice of per-run results into a single Results.
// Acquisition handles must be distinct across the inputs; near-time records
// are concatenated per callback name in input order.
var CombineResults workflow.TaskFunc = workflow.Typed(
	func(_ context.Context, list []*result.Results) (*result.Results, error) {
		combined := result.New()
		for i, r := range list {
			if r == nil {
				return nil, fmt.Errorf("tasks: combine: nil results at index %d", i)
			}
			for _, h := range r.Handles() {
				if _, err := combined.Acquired(h); err == nil {
					return nil, fmt.Errorf("tasks: combine: duplicate handle %q", h)
				}
				acq, err := r.Acquired(h)
				if err != nil {
					return nil, err
				}
				combined.Put(acq)
			}
			for _, name := range r.NeartimeNames() {
				for _, v := range r.Neartime(name) {
					combined.AppendNeartime(name, v)
				}
			}
		}
		return combined, nil
	})
