package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/royglick/laboneq/pkg/workflow"
)

func sampleRun(id string, status workflow.Status) *workflow.Run {
	return &workflow.Run{
		ID:       id,
		Workflow: "calibrate",
		Status:   status,
		Input:    map[string]any{"qubit": "q0"},
		Output:   0.42,
		Tasks: []workflow.TaskRecord{
			{NodeID: "n1", Name: "measure", Status: workflow.StatusCompleted, Output: 0.42, Attempts: 1},
		},
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	require.NoError(t, s.SaveRun(sampleRun("run-1", workflow.StatusCompleted)))

	got, err := s.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, "calibrate", got.Workflow)
	assert.Equal(t, 0.42, got.Output)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, "measure", got.Tasks[0].Name)

	_, err = s.GetRun("run-404")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestMemoryStoreUpdateMissing(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	err := s.UpdateRun(sampleRun("run-404", workflow.StatusFailed))
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestMemoryStoreSnapshotIsolation(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	run := sampleRun("run-1", workflow.StatusRunning)
	require.NoError(t, s.SaveRun(run))

	// Mutating the caller's copy must not affect the stored run.
	run.Status = workflow.StatusFailed
	run.Tasks[0].Name = "mutated"
	run.Input["qubit"] = "q9"

	got, err := s.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusRunning, got.Status)
	assert.Equal(t, "measure", got.Tasks[0].Name)
	assert.Equal(t, "q0", got.Input["qubit"])
}

func TestMemoryStoreListFilters(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	require.NoError(t, s.SaveRun(sampleRun("run-1", workflow.StatusCompleted)))
	require.NoError(t, s.SaveRun(sampleRun("run-2", workflow.StatusFailed)))
	other := sampleRun("run-3", workflow.StatusCompleted)
	other.Workflow = "tune-up"
	require.NoError(t, s.SaveRun(other))

	all, err := s.ListRuns(RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	failed, err := s.ListRuns(RunFilter{Status: workflow.StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "run-2", failed[0].ID)

	byWf, err := s.ListRuns(RunFilter{Workflow: "tune-up"})
	require.NoError(t, err)
	require.Len(t, byWf, 1)

	both, err := s.ListRuns(RunFilter{Workflow: "calibrate", Status: workflow.StatusCompleted})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "run-1", both[0].ID)
}

func TestCodecRoundTrip(t *testing.T) {
	t.Parallel()

	in := map[string]any{"freqs": []float64{1, 2, 3}, "label": "q0"}
	data, err := encodeInput(in)
	require.NoError(t, err)

	out, err := decodeInput(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	v, err := encodeValue(nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	dv, err := decodeValue(nil)
	require.NoError(t, err)
	assert.Nil(t, dv)
}

func TestCodecPreservesRunError(t *testing.T) {
	t.Parallel()

	run := sampleRun("run-1", workflow.StatusFailed)
	run.Err = errors.New("calibration drift")

	_, _, _, errStr, err := encodeRun(run)
	require.NoError(t, err)
	assert.Equal(t, "calibration drift", errStr)
}
