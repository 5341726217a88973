package laboneq

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func TestLabOneQ_TopLevelWrappers_RunGetListRecover(t *testing.T) {
	ctx := context.Background()
	eng := NewInMemoryEngine()

	b := NewBuilder("wrap-test")
	b.Task("double", func(ctx context.Context, args ...any) (any, error) {
		return args[0].(float64) * 2, nil
	}, b.Input("x"))
	wf, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if err := eng.Register(wf); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	// Start the workflow via top-level wrapper.
	run, err := RunWorkflow(ctx, eng, wf.Name(), map[string]any{"x": 21.0})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if run.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", run.Status)
	}
	if run.Output != 42.0 {
		t.Fatalf("unexpected output: %v", run.Output)
	}

	// GetRun wrapper should return the same run.
	got, err := GetRun(ctx, eng, run.ID)
	if err != nil || got.ID != run.ID {
		t.Fatalf("get run mismatch: %v", err)
	}

	// ListRuns wrapper with filters
	lst, err := ListRuns(ctx, eng, RunListOptions{Workflow: wf.Name(), Status: StatusCompleted})
	if err != nil || len(lst) == 0 {
		t.Fatalf("expected to list completed run: %v len=%d", err, len(lst))
	}

	// RecoverStuckRuns should be harmless on a healthy engine.
	if n, err := RecoverStuckRuns(ctx, eng); err != nil || n != 0 {
		t.Fatalf("recover failed: n=%d err=%v", n, err)
	}
}

func TestLabOneQ_SQLiteEngine_ResumeFailedRun(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	eng, err := NewSQLiteEngine(db)
	if err != nil {
		t.Fatalf("new sqlite engine: %v", err)
	}

	fail := true
	b := NewBuilder("flaky")
	b.Task("step", func(ctx context.Context, args ...any) (any, error) {
		if fail {
			return nil, context.DeadlineExceeded
		}
		return "ok", nil
	})
	wf := b.MustBuild()
	if err := eng.Register(wf); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	run, err := RunWorkflow(ctx, eng, "flaky", nil)
	if err == nil {
		t.Fatal("expected run error")
	}
	if run.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", run.Status)
	}

	fail = false
	resumed, err := Resume(ctx, eng, run.ID)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if resumed.Status != StatusCompleted || resumed.Output != "ok" {
		t.Fatalf("unexpected resumed run: %s %v", resumed.Status, resumed.Output)
	}
}

func TestLabOneQ_ObserverConstructors(t *testing.T) {
	metrics := &BasicMetrics{}
	obs := NewCompositeObserver(NoopObserver{}, metrics)
	eng := NewInMemoryEngineWithObserver(obs)

	b := NewBuilder("observed")
	b.Task("noop", func(ctx context.Context, args ...any) (any, error) { return nil, nil })
	if err := eng.Register(b.MustBuild()); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := eng.Run(context.Background(), "observed", nil); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	snap := metrics.Snapshot()
	if snap.RunsStarted != 1 || snap.RunsCompleted != 1 || snap.TasksCompleted != 1 {
		t.Fatalf("unexpected metrics snapshot: %+v", snap)
	}
}
