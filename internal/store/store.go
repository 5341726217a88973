// Package store persists workflow runs. The engine talks to the RunStore
// interface; memory, SQLite, PostgreSQL and Redis implementations are
// provided.
package store

import (
	"errors"

	"github.com/royglick/laboneq/pkg/workflow"
)

// ErrRunNotFound is returned when a run is not found.
var ErrRunNotFound = errors.New("run not found")

// RunFilter selects runs from the store. Empty fields mean no filter.
type RunFilter struct {
	Workflow string
	Status   workflow.Status
}

// RunStore handles storage of workflow runs.
type RunStore interface {
	SaveRun(run *workflow.Run) error
	UpdateRun(run *workflow.Run) error
	GetRun(id string) (*workflow.Run, error)
	ListRuns(filter RunFilter) ([]*workflow.Run, error)
}
