// Package session is the entry point for running experiments on a device
// setup. A session connects to the setup (emulated), compiles experiments
// and hands them to the controller for execution.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/royglick/laboneq/internal/compiler"
	"github.com/royglick/laboneq/internal/controller"
	"github.com/royglick/laboneq/pkg/device"
	"github.com/royglick/laboneq/pkg/dsl"
	"github.com/royglick/laboneq/pkg/pulse"
	"github.com/royglick/laboneq/pkg/result"
)

// CallbackFunc is re-exported so callers registering near-time callbacks do
// not need to import the controller package.
type CallbackFunc = controller.CallbackFunc

// CompiledExperiment is the artifact produced by Compile, accepted by Run.
type CompiledExperiment = compiler.CompiledExperiment

// Session holds the connection to a device setup.
type Session struct {
	setup *device.Setup
	log   *slog.Logger
	sim   controller.Simulator
	ctrl  *controller.Controller

	mu        sync.Mutex
	connected bool
	compiled  *compiler.CompiledExperiment
	results   *result.Results
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithSimulator sets the acquisition model used during emulated execution.
func WithSimulator(sim controller.Simulator) Option {
	return func(s *Session) { s.sim = sim }
}

// New creates a session for the given setup. The session starts
// disconnected; call Connect before Run.
func New(setup *device.Setup, opts ...Option) *Session {
	s := &Session{setup: setup, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	// The controller is built once, after all options, so WithLogger and
	// WithSimulator compose in any order.
	ctrlOpts := []controller.Option{controller.WithLogger(s.log)}
	if s.sim != nil {
		ctrlOpts = append(ctrlOpts, controller.WithSimulator(s.sim))
	}
	s.ctrl = controller.New(ctrlOpts...)
	return s
}

// Connect brings up the emulated connection to every instrument in the
// setup. Connecting twice is a no-op.
func (s *Session) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil
	}
	for _, inst := range s.setup.Instruments() {
		s.log.Info("device connected",
			"uid", inst.UID,
			"kind", string(inst.Kind),
			"sample_rate", inst.EffectiveSampleRate())
	}
	s.connected = true
	return nil
}

// Disconnect drops the emulated connection.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
}

// RegisterNeartimeCallback installs a near-time callback. Every name an
// experiment calls must be registered before Run.
func (s *Session) RegisterNeartimeCallback(name string, fn CallbackFunc) error {
	return s.ctrl.RegisterCallback(name, fn)
}

// ReplacePulse queues a waveform replacement for the named pulse. The swap
// takes effect at the next near-time step of the running (or next)
// experiment; the replacement must keep the pulse duration.
func (s *Session) ReplacePulse(uid string, p pulse.Pulse) {
	s.ctrl.QueueReplacement(uid, p)
}

// Compile turns the experiment into an executable artifact without running
// it. The artifact can be inspected or passed to Run.
func (s *Session) Compile(exp *dsl.Experiment) (*CompiledExperiment, error) {
	ce, err := compiler.Compile(exp, s.setup, compiler.Options{})
	if err != nil {
		return nil, err
	}
	s.log.Info("experiment compiled",
		"experiment", ce.ExperimentUID,
		"nt_steps", len(ce.NtSteps),
		"events", len(ce.Events))
	s.mu.Lock()
	s.compiled = ce
	s.mu.Unlock()
	return ce, nil
}

// Run compiles and executes the experiment, returning the acquired results.
func (s *Session) Run(ctx context.Context, exp *dsl.Experiment) (*result.Results, error) {
	ce, err := s.Compile(exp)
	if err != nil {
		return nil, err
	}
	return s.RunCompiled(ctx, ce)
}

// RunCompiled executes a previously compiled experiment.
func (s *Session) RunCompiled(ctx context.Context, ce *CompiledExperiment) (*result.Results, error) {
	s.mu.Lock()
	connected := s.connected
	s.mu.Unlock()
	if !connected {
		return nil, fmt.Errorf("session: not connected, call Connect first")
	}

	res, err := s.ctrl.Execute(ctx, ce)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.results = res
	s.mu.Unlock()
	return res, nil
}

// Results returns the results of the last successful run, or nil.
func (s *Session) Results() *result.Results {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// Compiled returns the last compiled experiment, or nil.
func (s *Session) Compiled() *CompiledExperiment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compiled
}
