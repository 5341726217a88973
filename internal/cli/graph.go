package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/royglick/laboneq"
	"github.com/royglick/laboneq/internal/telemetry"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Inspect or run the bundled tune-up calibration workflow",
	Long: `Print the task graph of the bundled tune-up workflow, or execute it.

Runs persist to SQLite when --db is given, so failed runs can be listed and
resumed later. OpenTelemetry metrics export is controlled by the
LABQ_OTEL_ENABLED and LABQ_OTEL_ENDPOINT environment variables.

Examples:
  labq graph                     # Print the task tree
  labq graph --run               # Execute with an in-memory engine
  labq graph --run --db runs.db  # Execute and persist the run
  labq graph --list --db runs.db # List persisted runs`,
	RunE: runGraph,
}

// Flags
var (
	graphRun     bool
	graphList    bool
	graphDB      string
	graphQubit   string
	graphVerbose bool
)

func init() {
	rootCmd.AddCommand(graphCmd)

	graphCmd.Flags().BoolVar(&graphRun, "run", false, "Execute the workflow")
	graphCmd.Flags().BoolVar(&graphList, "list", false, "List persisted runs instead of executing")
	graphCmd.Flags().StringVar(&graphDB, "db", "", "SQLite database file for run persistence")
	graphCmd.Flags().StringVar(&graphQubit, "qubit", "q0", "Qubit to tune up")
	graphCmd.Flags().BoolVarP(&graphVerbose, "verbose", "v", false, "Log run and task lifecycle events")
}

// tuneupWorkflow is the bundled calibration procedure: measure each qubit's
// resonance, then refit the ones that drifted past threshold.
func tuneupWorkflow() (*laboneq.Workflow, error) {
	measure := func(ctx context.Context, args ...any) (any, error) {
		// Emulated resonance measurement, offset per qubit name.
		qubit, _ := args[0].(string)
		return 5.0 + float64(len(qubit))*0.01, nil
	}
	fit := func(ctx context.Context, args ...any) (any, error) {
		freq, _ := args[0].(float64)
		return map[string]any{"frequency": freq, "fitted": true}, nil
	}

	b := laboneq.NewBuilder("tuneup")
	qubits := b.Input("qubits")
	b.For("qubit", qubits, func(b *laboneq.Builder, qubit *laboneq.Reference) {
		freq := b.Task("measure_resonance", measure, qubit)
		b.If(laboneq.Gt(freq, 5.005), func(b *laboneq.Builder) {
			b.Task("fit_resonance", fit, freq, laboneq.WithRetry(laboneq.RetryPolicy{
				MaxAttempts:    3,
				InitialBackoff: 50 * time.Millisecond,
			}))
		})
	})
	return b.Build()
}

func graphEngine() (laboneq.Engine, func(), error) {
	cleanup := func() {}

	var observers []laboneq.Observer
	if graphVerbose {
		observers = append(observers, laboneq.NewLoggingObserver(slog.New(slog.NewTextHandler(os.Stderr, nil))))
	}
	if cfg := telemetry.LoadConfig(); cfg.Enabled {
		obs, err := telemetry.NewObserver(context.Background(), cfg)
		if err != nil {
			return nil, nil, err
		}
		observers = append(observers, obs)
		cleanup = func() { _ = obs.Close(context.Background()) }
	}
	obs := laboneq.NewCompositeObserver(observers...)

	if graphDB == "" {
		return laboneq.NewInMemoryEngineWithObserver(obs), cleanup, nil
	}

	db, err := sql.Open("sqlite", graphDB)
	if err != nil {
		return nil, nil, err
	}
	eng, err := laboneq.NewSQLiteEngineWithObserver(db, obs)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	prev := cleanup
	cleanup = func() {
		prev()
		db.Close()
	}
	return eng, cleanup, nil
}

func runGraph(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	wf, err := tuneupWorkflow()
	if err != nil {
		return err
	}

	if !graphRun && !graphList {
		fmt.Fprint(out, wf.Graph().Tree())
		return nil
	}

	eng, cleanup, err := graphEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	if graphList {
		runs, err := laboneq.ListRuns(ctx, eng, laboneq.RunListOptions{Workflow: wf.Name()})
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Fprintf(out, "%s  %-9s  %d tasks\n", r.ID, r.Status, len(r.Tasks))
		}
		return nil
	}

	if err := eng.Register(wf); err != nil {
		return err
	}
	if n, err := laboneq.RecoverStuckRuns(ctx, eng); err != nil {
		return err
	} else if n > 0 {
		fmt.Fprintf(out, "recovered %d stuck runs\n", n)
	}

	run, err := laboneq.RunWorkflow(ctx, eng, wf.Name(), map[string]any{
		"qubits": []string{graphQubit},
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "run %s: %s\n", run.ID, run.Status)
	for _, task := range run.Tasks {
		fmt.Fprintf(out, "  %-20s it=%d %-9s attempts=%d %v\n",
			task.Name, task.Iteration, task.Status, task.Attempts, task.Output)
	}
	if run.Output != nil {
		fmt.Fprintf(out, "output: %v\n", run.Output)
	}
	return nil
}
