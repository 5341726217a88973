package workflow

import (
	"context"
	"time"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusFailed    Status = "FAILED"
	StatusCompleted Status = "COMPLETED"
)

// TaskRecord is the outcome of one task invocation. Loop bodies produce one
// record per iteration.
type TaskRecord struct {
	NodeID    string
	Name      string
	Iteration int
	Status    Status
	Output    any
	Error     string
	Attempts  int
	Duration  time.Duration
}

// Run is one execution of a workflow.
type Run struct {
	ID       string
	Workflow string
	Status   Status
	Input    map[string]any
	Output   any
	Tasks    []TaskRecord
	Err      error
}

// RunListOptions filter ListRuns. Zero values mean no filter.
type RunListOptions struct {
	Workflow string
	Status   Status
}

// Engine registers workflows and executes runs.
type Engine interface {
	// Register registers a workflow by name. Registering the same name
	// twice is an error.
	Register(wf *Workflow) error

	// Run executes the named workflow to completion with the given input
	// map and returns the run record.
	Run(ctx context.Context, name string, input map[string]any) (*Run, error)

	// GetRun looks a run up by ID.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns runs matching the options.
	ListRuns(ctx context.Context, opts RunListOptions) ([]*Run, error)

	// Resume replays a failed run from the beginning using its stored
	// input, reusing the run ID.
	Resume(ctx context.Context, id string) (*Run, error)

	// RecoverStuckRuns marks runs left in RUNNING state, for example after
	// a crash, as FAILED. Call it on startup before accepting work. It
	// returns the number of runs updated.
	RecoverStuckRuns(ctx context.Context) (int, error)
}
