// Package engine is the synchronous, in-process workflow engine. It walks a
// workflow graph in definition order, resolving references against completed
// task outputs, and persists run state through a RunStore.
package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/royglick/laboneq/internal/store"
	"github.com/royglick/laboneq/pkg/workflow"
)

// Config describes how to construct an Engine.
type Config struct {
	Store    store.RunStore
	Observer workflow.Observer
}

// Engine implements workflow.Engine. Workflow definitions stay in memory;
// they carry Go functions and cannot be persisted. Runs go through the
// configured store.
type Engine struct {
	mu        sync.Mutex // guards workflows
	workflows map[string]*workflow.Workflow

	runs     store.RunStore
	observer workflow.Observer
}

var _ workflow.Engine = (*Engine)(nil)

// New creates an Engine. A nil store defaults to in-memory, a nil observer
// to NoopObserver.
func New(cfg Config) *Engine {
	runs := cfg.Store
	if runs == nil {
		runs = store.NewMemoryStore()
	}
	obs := cfg.Observer
	if obs == nil {
		obs = workflow.NoopObserver{}
	}
	return &Engine{
		workflows: make(map[string]*workflow.Workflow),
		runs:      runs,
		observer:  obs,
	}
}

func (e *Engine) Register(wf *workflow.Workflow) error {
	if wf == nil {
		return errors.New("engine: nil workflow")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.workflows[wf.Name()]; dup {
		return fmt.Errorf("engine: workflow already registered: %s", wf.Name())
	}
	e.workflows[wf.Name()] = wf
	return nil
}

func (e *Engine) Run(ctx context.Context, name string, input map[string]any) (*workflow.Run, error) {
	e.mu.Lock()
	wf, ok := e.workflows[name]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("engine: unknown workflow: %s", name)
	}

	run := &workflow.Run{
		ID:       nextRunID(),
		Workflow: wf.Name(),
		Status:   workflow.StatusPending,
		Input:    input,
	}

	e.observer.OnRunStart(ctx, run)

	if err := e.runs.SaveRun(run); err != nil {
		run.Status = workflow.StatusFailed
		run.Err = err
		e.observer.OnRunFailed(ctx, run, err)
		return run, err
	}

	run.Status = workflow.StatusRunning
	if err := e.runs.UpdateRun(run); err != nil {
		run.Status = workflow.StatusFailed
		run.Err = err
		e.observer.OnRunFailed(ctx, run, err)
		return run, err
	}

	return e.execute(ctx, wf, run)
}

func (e *Engine) GetRun(ctx context.Context, id string) (*workflow.Run, error) {
	run, err := e.runs.GetRun(id)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return nil, fmt.Errorf("engine: run not found: %s", id)
		}
		return nil, err
	}
	return run, nil
}

func (e *Engine) ListRuns(ctx context.Context, opts workflow.RunListOptions) ([]*workflow.Run, error) {
	return e.runs.ListRuns(store.RunFilter{
		Workflow: opts.Workflow,
		Status:   opts.Status,
	})
}

func (e *Engine) Resume(ctx context.Context, id string) (*workflow.Run, error) {
	run, err := e.runs.GetRun(id)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return nil, fmt.Errorf("engine: run not found: %s", id)
		}
		return nil, err
	}

	if run.Status != workflow.StatusFailed {
		return nil, fmt.Errorf("engine: cannot resume run %s in status %s", id, run.Status)
	}

	e.mu.Lock()
	wf, ok := e.workflows[run.Workflow]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("engine: workflow definition not found for run %s (workflow=%s)", id, run.Workflow)
	}

	// Reset runtime fields and replay from the beginning.
	run.Status = workflow.StatusRunning
	run.Err = nil
	run.Output = nil
	run.Tasks = nil

	if err := e.runs.UpdateRun(run); err != nil {
		return run, err
	}

	return e.execute(ctx, wf, run)
}

func (e *Engine) RecoverStuckRuns(ctx context.Context) (int, error) {
	stuck, err := e.runs.ListRuns(store.RunFilter{Status: workflow.StatusRunning})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, run := range stuck {
		run.Status = workflow.StatusFailed
		run.Err = errors.New("run interrupted: engine restarted while run was in progress")
		if err := e.runs.UpdateRun(run); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// nextRunID must stay unique across engine instances sharing a persistent
// store; a collision would clobber or reject the earlier run's record.
func nextRunID() string {
	return "run-" + uuid.NewString()
}

// execState carries run-time values and implements workflow.Resolver.
type execState struct {
	run     *workflow.Run
	outputs map[string]any // node ID -> latest output
	loops   map[string]any // loop name -> current item
	calls   map[string]int // node ID -> invocation count
}

func (s *execState) TaskOutput(nodeID string) (any, bool) {
	v, ok := s.outputs[nodeID]
	return v, ok
}

func (s *execState) Input(name string) (any, bool) {
	v, ok := s.run.Input[name]
	return v, ok
}

func (s *execState) LoopItem(name string) (any, bool) {
	v, ok := s.loops[name]
	return v, ok
}

func (e *Engine) execute(ctx context.Context, wf *workflow.Workflow, run *workflow.Run) (*workflow.Run, error) {
	st := &execState{
		run:     run,
		outputs: map[string]any{},
		loops:   map[string]any{},
		calls:   map[string]int{},
	}

	_, output, err := e.execBlock(ctx, wf.Graph().Nodes(), st)
	if err != nil {
		run.Status = workflow.StatusFailed
		run.Err = err
		_ = e.runs.UpdateRun(run)
		e.observer.OnRunFailed(ctx, run, err)
		return run, err
	}

	run.Status = workflow.StatusCompleted
	run.Output = output
	_ = e.runs.UpdateRun(run)
	e.observer.OnRunCompleted(ctx, run)

	return run, nil
}

// execBlock runs the nodes of one block in order. It reports whether a
// Return node ended the block and the block's output: the returned value,
// or the output of the last task otherwise.
func (e *Engine) execBlock(ctx context.Context, nodes []*workflow.Node, st *execState) (bool, any, error) {
	var last any

	for _, n := range nodes {
		switch n.Kind {
		case workflow.NodeTask:
			out, err := e.execTask(ctx, n, st)
			if err != nil {
				return false, nil, err
			}
			last = out

		case workflow.NodeIf:
			taken, err := n.Cond.Eval(st)
			if err != nil {
				return false, nil, err
			}
			branch := n.Then
			if !taken {
				branch = n.Else
			}
			returned, out, err := e.execBlock(ctx, branch, st)
			if err != nil {
				return false, nil, err
			}
			if returned {
				return true, out, nil
			}
			if len(branch) > 0 {
				last = out
			}

		case workflow.NodeFor:
			returned, out, err := e.execFor(ctx, n, st)
			if err != nil {
				return false, nil, err
			}
			if returned {
				return true, out, nil
			}
			last = out

		case workflow.NodeReturn:
			v, err := workflow.ResolveValue(n.Value, st)
			if err != nil {
				return false, nil, err
			}
			return true, v, nil
		}
	}
	return false, last, nil
}

func (e *Engine) execFor(ctx context.Context, n *workflow.Node, st *execState) (bool, any, error) {
	over, err := workflow.ResolveValue(n.Over, st)
	if err != nil {
		return false, nil, err
	}
	items, err := toSlice(over)
	if err != nil {
		return false, nil, fmt.Errorf("engine: loop over %v: %w", n.Over, err)
	}

	var last any
	prev, had := st.loops[loopName(n)]
	for _, item := range items {
		st.loops[loopName(n)] = item
		returned, out, err := e.execBlock(ctx, n.Body, st)
		if err != nil {
			return false, nil, err
		}
		if returned {
			return true, out, nil
		}
		last = out
	}
	if had {
		st.loops[loopName(n)] = prev
	} else {
		delete(st.loops, loopName(n))
	}
	return false, last, nil
}

func (e *Engine) execTask(ctx context.Context, n *workflow.Node, st *execState) (any, error) {
	iteration := st.calls[n.ID]
	st.calls[n.ID] = iteration + 1

	args := make([]any, len(n.Args))
	for i, a := range n.Args {
		v, err := workflow.ResolveValue(a, st)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	// Determine max attempts and backoff for this task.
	maxAttempts := 1
	var (
		backoff    time.Duration
		maxBackoff time.Duration
		multiplier float64
	)
	if n.Retry != nil {
		if n.Retry.MaxAttempts > 0 {
			maxAttempts = n.Retry.MaxAttempts
		}
		backoff = n.Retry.InitialBackoff
		maxBackoff = n.Retry.MaxBackoff
		multiplier = n.Retry.BackoffMultiplier
		if multiplier <= 0 {
			multiplier = 2.0
		}
	}

	rec := workflow.TaskRecord{
		NodeID:    n.ID,
		Name:      n.Name,
		Iteration: iteration,
		Status:    workflow.StatusRunning,
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			rec.Status = workflow.StatusFailed
			rec.Error = ctx.Err().Error()
			rec.Attempts = attempt - 1
			st.run.Tasks = append(st.run.Tasks, rec)
			return nil, ctx.Err()
		default:
		}

		startTime := time.Now()
		e.observer.OnTaskStart(ctx, st.run, n.Name, iteration)

		out, err := n.Fn(ctx, args...)

		duration := time.Since(startTime)
		e.observer.OnTaskCompleted(ctx, st.run, n.Name, iteration, err, duration)

		if err == nil {
			rec.Status = workflow.StatusCompleted
			rec.Output = out
			rec.Attempts = attempt
			rec.Duration = duration
			st.run.Tasks = append(st.run.Tasks, rec)
			_ = e.runs.UpdateRun(st.run)

			st.outputs[n.ID] = out
			return out, nil
		}

		lastErr = err

		if attempt == maxAttempts {
			rec.Status = workflow.StatusFailed
			rec.Error = lastErr.Error()
			rec.Attempts = attempt
			rec.Duration = duration
			st.run.Tasks = append(st.run.Tasks, rec)
			return nil, fmt.Errorf("engine: task %q: %w", n.Name, lastErr)
		}

		// Wait before the next attempt, if backoff is configured.
		if backoff > 0 {
			delay := backoff
			if maxBackoff > 0 && delay > maxBackoff {
				delay = maxBackoff
			}

			select {
			case <-ctx.Done():
				rec.Status = workflow.StatusFailed
				rec.Error = ctx.Err().Error()
				rec.Attempts = attempt
				st.run.Tasks = append(st.run.Tasks, rec)
				return nil, ctx.Err()
			case <-time.After(delay):
			}

			next := time.Duration(float64(backoff) * multiplier)
			if maxBackoff > 0 && next > maxBackoff {
				backoff = maxBackoff
			} else {
				backoff = next
			}
		}
	}

	return nil, lastErr
}

func loopName(n *workflow.Node) string {
	// Item references carry the loop name; String() renders "item[name]".
	return n.Item.LoopName()
}

func toSlice(v any) ([]any, error) {
	if v == nil {
		return nil, errors.New("value is nil")
	}
	if items, ok := v.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return items, nil
	default:
		return nil, fmt.Errorf("value of type %T is not iterable", v)
	}
}
