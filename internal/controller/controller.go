// Package controller executes compiled experiments against emulated
// instruments. It drives the near-time loop: for every enumerated step it
// applies queued waveform replacements, invokes the registered near-time
// callbacks with the step's swept values, then produces the acquisition
// data for the real-time portion.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/royglick/laboneq/internal/compiler"
	"github.com/royglick/laboneq/pkg/parameter"
	"github.com/royglick/laboneq/pkg/pulse"
	"github.com/royglick/laboneq/pkg/result"
)

// CallbackFunc is a near-time callback. Args carry the call-site arguments
// with sweep parameters resolved to the current step's values. The returned
// value is collected per step into the run results.
type CallbackFunc func(ctx context.Context, args map[string]any) (any, error)

// Simulator produces acquisition data for one grid point. Coords maps every
// sweep parameter UID to its value at that point.
type Simulator interface {
	Measure(handle string, coords map[string]float64) float64
}

// SimulatorFunc adapts a plain function to the Simulator interface.
type SimulatorFunc func(handle string, coords map[string]float64) float64

func (f SimulatorFunc) Measure(handle string, coords map[string]float64) float64 {
	return f(handle, coords)
}

// echoSimulator returns the innermost swept value, which makes sweep axes
// directly visible in the acquired data.
func echoSimulator(axisOrder []string) Simulator {
	return SimulatorFunc(func(_ string, coords map[string]float64) float64 {
		for i := len(axisOrder) - 1; i >= 0; i-- {
			if v, ok := coords[axisOrder[i]]; ok {
				return v
			}
		}
		return 0
	})
}

// Controller owns the callback table and the replacement queue. A single
// controller can run experiments sequentially; Execute is not reentrant.
type Controller struct {
	log *slog.Logger
	sim Simulator

	mu           sync.Mutex
	callbacks    map[string]CallbackFunc
	replacements map[string]pulse.Pulse
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithSimulator replaces the default acquisition model.
func WithSimulator(sim Simulator) Option {
	return func(c *Controller) { c.sim = sim }
}

func New(opts ...Option) *Controller {
	c := &Controller{
		log:          slog.Default(),
		callbacks:    map[string]CallbackFunc{},
		replacements: map[string]pulse.Pulse{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterCallback installs fn under name. Registering the same name twice
// is an error; callbacks are wired once per session.
func (c *Controller) RegisterCallback(name string, fn CallbackFunc) error {
	if name == "" {
		return fmt.Errorf("controller: callback name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("controller: callback %q is nil", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.callbacks[name]; dup {
		return fmt.Errorf("controller: callback %q already registered", name)
	}
	c.callbacks[name] = fn
	return nil
}

// QueueReplacement schedules a waveform swap. The replacement is applied at
// the start of the next near-time step, so a callback can queue it for the
// remainder of the run. Safe to call from inside a callback.
func (c *Controller) QueueReplacement(uid string, p pulse.Pulse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replacements[uid] = p
}

// Execute runs the compiled experiment through every near-time step and
// returns the collected results.
func (c *Controller) Execute(ctx context.Context, ce *compiler.CompiledExperiment) (*result.Results, error) {
	if err := c.checkCallbacks(ce); err != nil {
		return nil, err
	}

	run := newRunState(ce)
	sim := c.sim
	if sim == nil {
		sim = echoSimulator(run.axisNames)
	}

	c.log.Info("execution started",
		"experiment", ce.ExperimentUID,
		"nt_steps", len(ce.NtSteps),
		"shots", ce.ShotCount)

	res := result.New()
	for _, step := range ce.NtSteps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("controller: execution aborted at step %v: %w", step.Key.Indices, err)
		}

		if err := c.applyReplacements(ce); err != nil {
			return nil, err
		}
		if err := c.invokeCalls(ctx, ce, step, res); err != nil {
			return nil, err
		}
		run.acquireStep(ce, step, sim)

		c.log.Debug("near-time step done", "step", step.Key.Indices)
	}

	run.finish(res)
	c.log.Info("execution finished", "experiment", ce.ExperimentUID)
	return res, nil
}

func (c *Controller) checkCallbacks(ce *compiler.CompiledExperiment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range ce.NtCalls {
		if _, ok := c.callbacks[call.Name]; !ok {
			return fmt.Errorf("controller: experiment calls %q but no such callback is registered", call.Name)
		}
	}
	return nil
}

// applyReplacements swaps queued waveforms into the compiled pulse table.
// A replacement must match the duration of the pulse it replaces; the
// sequencer timing is fixed at compile time.
func (c *Controller) applyReplacements(ce *compiler.CompiledExperiment) error {
	c.mu.Lock()
	pending := c.replacements
	c.replacements = map[string]pulse.Pulse{}
	c.mu.Unlock()

	for uid, p := range pending {
		old, ok := ce.Pulses[uid]
		if !ok {
			return fmt.Errorf("controller: no pulse %q in experiment %q", uid, ce.ExperimentUID)
		}
		if p.Duration() != old.Duration() {
			return fmt.Errorf("controller: replacement for %q changes duration from %s to %s",
				uid, old.Duration(), p.Duration())
		}
		ce.Pulses[uid] = p
		c.log.Debug("pulse replaced", "uid", uid)
	}
	return nil
}

func (c *Controller) invokeCalls(ctx context.Context, ce *compiler.CompiledExperiment, step compiler.NtStep, res *result.Results) error {
	c.mu.Lock()
	table := make(map[string]CallbackFunc, len(c.callbacks))
	for name, fn := range c.callbacks {
		table[name] = fn
	}
	c.mu.Unlock()

	for _, call := range ce.NtCalls {
		args := resolveArgs(call.Args, step.Values)
		out, err := table[call.Name](ctx, args)
		if err != nil {
			return fmt.Errorf("controller: callback %q at step %v: %w", call.Name, step.Key.Indices, err)
		}
		res.AppendNeartime(call.Name, out)
	}
	return nil
}

// resolveArgs substitutes sweep parameters in the call arguments with the
// current step's value for that parameter.
func resolveArgs(args map[string]any, values map[string]float64) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if sw, ok := v.(parameter.Sweep); ok {
			if val, swept := values[sw.UID]; swept {
				out[k] = val
				continue
			}
		}
		out[k] = v
	}
	return out
}

// runState accumulates acquisition data across near-time steps. The result
// for a handle spans the full sweep grid, near-time axes outermost.
type runState struct {
	axisNames []string
	axes      [][]float64

	// ntAxes counts how many leading axes are near-time.
	ntAxes int

	// rtSize is the number of grid points inside one near-time step.
	rtSize int

	data map[string][]float64
}

func newRunState(ce *compiler.CompiledExperiment) *runState {
	rs := &runState{data: map[string][]float64{}}

	for _, sw := range ce.NtSweeps {
		rs.axisNames = append(rs.axisNames, sw.Params[0].UID)
		rs.axes = append(rs.axes, append([]float64(nil), sw.Params[0].Values...))
	}
	rs.ntAxes = len(rs.axes)

	rs.rtSize = 1
	for _, sw := range ce.RtSweeps {
		rs.axisNames = append(rs.axisNames, sw.Params[0].UID)
		rs.axes = append(rs.axes, append([]float64(nil), sw.Params[0].Values...))
		rs.rtSize *= sw.Params[0].Len()
	}
	return rs
}

// acquireStep produces every real-time grid point of one near-time step.
func (rs *runState) acquireStep(ce *compiler.CompiledExperiment, step compiler.NtStep, sim Simulator) {
	rtDims := make([]int, len(rs.axes)-rs.ntAxes)
	for i := range rtDims {
		rtDims[i] = len(rs.axes[rs.ntAxes+i])
	}

	for _, acq := range ce.Acquires {
		for n := 0; n < rs.rtSize; n++ {
			coords := make(map[string]float64, len(rs.axisNames))
			for k, v := range step.Values {
				coords[k] = v
			}
			rem := n
			for i := len(rtDims) - 1; i >= 0; i-- {
				idx := rem % rtDims[i]
				rem /= rtDims[i]
				coords[rs.axisNames[rs.ntAxes+i]] = rs.axes[rs.ntAxes+i][idx]
			}
			rs.data[acq.Handle] = append(rs.data[acq.Handle], sim.Measure(acq.Handle, coords))
		}
	}
}

func (rs *runState) finish(res *result.Results) {
	for handle, data := range rs.data {
		res.Put(&result.AcquiredResult{
			Handle:    handle,
			AxisNames: append([]string(nil), rs.axisNames...),
			Axes:      rs.axes,
			Data:      data,
		})
	}
}
