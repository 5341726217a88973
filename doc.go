// Package laboneq provides experiment definition, compilation, and emulated
// execution for quantum control setups, plus a lightweight workflow engine
// for orchestrating calibration procedures.
//
// # Core Concepts
//
// The programming model splits into two halves that share one module:
//
//  1. Experiment DSL and Session (pkg/dsl, pkg/pulse, pkg/device, pkg/session)
//  2. Workflow engine (pkg/workflow, re-exported here)
//
// # Experiments
//
// An Experiment is a tree of sections, sweeps, and acquisition loops built
// with pkg/dsl. Pulses are parametric envelopes from pkg/pulse, mapped onto
// the logical signals of a device Setup (pkg/device). A Session connects to
// the setup, compiles the experiment into an execution recipe and event
// list, and runs it against an emulated controller:
//
//	sess := session.New(setup)
//	if err := sess.Connect(ctx); err != nil { ... }
//	res, err := sess.Run(ctx, exp)
//
// Near-time callbacks registered on the Session run between sweep steps and
// can feed values back into the experiment; pulses can be replaced between
// steps without recompiling as long as the replacement keeps its duration.
//
// # Workflows
//
// The workflow engine executes calibration procedures as graphs of tasks
// with conditionals and loops. Task outputs flow between tasks as lazy
// references that resolve at run time:
//
//	b := laboneq.NewBuilder("tuneup")
//	amp := b.Task("measure", measure, b.Input("qubit"))
//	b.If(laboneq.Gt(amp, 0.5), func(b *laboneq.Builder) {
//	    b.Task("recalibrate", recalibrate, amp)
//	})
//	wf, err := b.Build()
//
// Workflows are registered into an Engine before use. Engines can be backed
// by different storage systems:
//
//   - In-memory (non-durable, best for tests)
//   - SQLite (embedded durability)
//   - Postgres
//   - Redis
//
// Runs persist per-task records, so failed runs can be inspected, listed,
// and resumed. Observers receive run and task lifecycle events; see
// NewLoggingObserver and BasicMetrics, or internal OpenTelemetry export via
// the labq command.
//
// For examples, see the /examples directory or the project README.
package laboneq
