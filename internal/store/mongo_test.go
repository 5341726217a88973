package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/royglick/laboneq/pkg/workflow"
)

// Set LABQ_MONGO_URI to run against a real server, for example:
//
//	LABQ_MONGO_URI="mongodb://localhost:27017" go test ./internal/store/
func openMongo(t *testing.T) *mongo.Client {
	t.Helper()

	uri := os.Getenv("LABQ_MONGO_URI")
	if uri == "" {
		t.Skip("LABQ_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = client.Database("labq_test").Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return client
}

func TestMongoStore_SaveGetUpdate(t *testing.T) {
	client := openMongo(t)
	st := NewMongoStore(client, "labq_test", "runs")

	run := sampleRun("mongo-run-1", workflow.StatusRunning)
	require.NoError(t, st.SaveRun(run))

	got, err := st.GetRun("mongo-run-1")
	require.NoError(t, err)
	require.Equal(t, run.Workflow, got.Workflow)
	require.Equal(t, run.Status, got.Status)
	require.Len(t, got.Tasks, len(run.Tasks))

	got.Status = workflow.StatusCompleted
	got.Output = "done"
	require.NoError(t, st.UpdateRun(got))

	again, err := st.GetRun("mongo-run-1")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusCompleted, again.Status)
	require.Equal(t, "done", again.Output)
}

func TestMongoStore_MissingRun(t *testing.T) {
	client := openMongo(t)
	st := NewMongoStore(client, "labq_test", "runs")

	_, err := st.GetRun("no-such-run")
	require.ErrorIs(t, err, ErrRunNotFound)

	err = st.UpdateRun(sampleRun("no-such-run", workflow.StatusCompleted))
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestMongoStore_ListFilters(t *testing.T) {
	client := openMongo(t)
	st := NewMongoStore(client, "labq_test", "runs")

	require.NoError(t, st.SaveRun(sampleRun("mongo-list-a", workflow.StatusCompleted)))
	require.NoError(t, st.SaveRun(sampleRun("mongo-list-b", workflow.StatusFailed)))

	failed, err := st.ListRuns(RunFilter{Workflow: "calibrate", Status: workflow.StatusFailed})
	require.NoError(t, err)
	require.NotEmpty(t, failed)
	for _, r := range failed {
		require.Equal(t, workflow.StatusFailed, r.Status)
	}
}
