// Package compiler turns an experiment description plus a device setup into
// a compiled experiment: a device recipe, an enumerated set of near-time
// steps, and a real-time event list on the sample grid.
package compiler

import (
	"fmt"
	"math"

	"github.com/royglick/laboneq/pkg/device"
	"github.com/royglick/laboneq/pkg/dsl"
	"github.com/royglick/laboneq/pkg/parameter"
	"github.com/royglick/laboneq/pkg/pulse"
)

// Options tune compilation.
type Options struct {
	// MaxEventIterations caps how many iterations of each real-time sweep
	// are unrolled into the event list. 0 means DefaultMaxEventIterations.
	MaxEventIterations int
}

// DefaultMaxEventIterations bounds the event list for large sweeps.
const DefaultMaxEventIterations = 64

// SweepSpec is a sweep section with its lockstep parameters.
type SweepSpec struct {
	Section string
	Params  []parameter.Sweep
}

// NtCall is a near-time callback invocation site.
type NtCall struct {
	Section string
	Name    string
	Args    map[string]any
}

// NtStep is one enumerated near-time step with the swept values it applies.
type NtStep struct {
	Key    NtStepKey
	Values map[string]float64
}

// AcquireInfo describes one acquisition handle.
type AcquireInfo struct {
	Handle  string
	Signal  string
	Device  string
	Samples int
}

// CompiledExperiment is the executable artifact produced by Compile.
type CompiledExperiment struct {
	ExperimentUID string
	SetupUID      string

	// SignalMap maps experiment signal UIDs to logical signal paths.
	SignalMap map[string]string

	Recipe Recipe

	// Events is the real-time event list for the first near-time step.
	Events []Event

	NtSweeps []SweepSpec
	RtSweeps []SweepSpec
	NtSteps  []NtStep
	NtCalls  []NtCall
	Acquires []AcquireInfo

	// Pulses indexes every pulse referenced by the experiment by UID, the
	// table near-time waveform replacement operates on.
	Pulses map[string]pulse.Pulse

	GridRate    float64
	ShotCount   int
	Averaging   dsl.AveragingMode
	Acquisition dsl.AcquisitionType

	// Duration of one real-time execution in seconds.
	Duration float64
}

// Compile validates the experiment against the setup and produces the
// compiled artifact. Compilation performs no device I/O.
func Compile(exp *dsl.Experiment, setup *device.Setup, opts Options) (*CompiledExperiment, error) {
	if err := exp.Validate(); err != nil {
		return nil, fmt.Errorf("compiler: invalid experiment %q: %w", exp.UID, err)
	}

	maxIter := opts.MaxEventIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxEventIterations
	}

	c := &compilation{
		exp:    exp,
		setup:  setup,
		out:    &CompiledExperiment{ExperimentUID: exp.UID, SetupUID: setup.UID, Pulses: map[string]pulse.Pulse{}},
		bySig:  map[string]*device.LogicalSignal{},
		params: map[string]parameter.Sweep{},
	}

	if err := c.resolveSignals(); err != nil {
		return nil, err
	}
	if err := c.collectStructure(); err != nil {
		return nil, err
	}
	c.enumerateNtSteps()
	if err := c.buildRecipe(); err != nil {
		return nil, err
	}
	if err := c.scheduleEvents(maxIter); err != nil {
		return nil, err
	}

	return c.out, nil
}

type compilation struct {
	exp   *dsl.Experiment
	setup *device.Setup
	out   *CompiledExperiment

	// bySig maps experiment signal UID to the mapped logical signal.
	bySig map[string]*device.LogicalSignal

	// params collects every sweep parameter seen, by UID.
	params map[string]parameter.Sweep

	acquireLoop *dsl.Section
	rtRoots     []*dsl.Section
	gridRate    float64
}

func (c *compilation) resolveSignals() error {
	c.out.SignalMap = map[string]string{}
	for _, sig := range c.exp.Signals() {
		if sig.Mapped == "" {
			return fmt.Errorf("compiler: signal %q is not mapped to a logical signal", sig.UID)
		}
		ls, err := c.setup.LogicalSignal(sig.Mapped)
		if err != nil {
			return fmt.Errorf("compiler: signal %q: %w", sig.UID, err)
		}
		c.bySig[sig.UID] = ls
		c.out.SignalMap[sig.UID] = sig.Mapped

		inst, err := c.setup.Instrument(ls.Device)
		if err != nil {
			return err
		}
		if r := inst.EffectiveSampleRate(); r > c.gridRate {
			c.gridRate = r
		}
	}
	if c.gridRate == 0 {
		return fmt.Errorf("compiler: experiment %q has no mapped signals", c.exp.UID)
	}
	c.out.GridRate = c.gridRate
	return nil
}

// collectStructure walks the tree once, recording sweeps (near-time outer
// to real-time inner), callback sites, acquisitions and pulses.
func (c *compilation) collectStructure() error {
	var walk func(s *dsl.Section) error
	walk = func(s *dsl.Section) error {
		switch s.Kind() {
		case dsl.KindAcquireLoop:
			c.acquireLoop = s
			c.out.ShotCount = s.LoopCount()
			c.out.Averaging = s.Averaging()
			c.out.Acquisition = s.Acquisition()
		case dsl.KindSweep:
			spec := SweepSpec{Section: s.UID(), Params: s.Parameters()}
			for _, p := range s.Parameters() {
				if prev, dup := c.params[p.UID]; dup && prev.Len() != p.Len() {
					return fmt.Errorf("compiler: sweep parameter %q reused with different lengths", p.UID)
				}
				c.params[p.UID] = p
			}
			if s.Execution() == dsl.ExecNearTime {
				c.out.NtSweeps = append(c.out.NtSweeps, spec)
			} else {
				c.out.RtSweeps = append(c.out.RtSweeps, spec)
			}
		}

		for _, op := range s.Operations() {
			switch op.Kind {
			case dsl.OpPlay:
				c.out.Pulses[op.Pulse.UID()] = op.Pulse
			case dsl.OpAcquire:
				c.out.Pulses[op.Pulse.UID()] = op.Pulse
				ls := c.bySig[op.Signal]
				inst, err := c.setup.Instrument(ls.Device)
				if err != nil {
					return err
				}
				samples := int(math.Round(op.Pulse.Duration().Seconds() * inst.EffectiveSampleRate()))
				c.out.Acquires = append(c.out.Acquires, AcquireInfo{
					Handle:  op.Handle,
					Signal:  op.Signal,
					Device:  ls.Device,
					Samples: samples,
				})
			case dsl.OpCall:
				c.out.NtCalls = append(c.out.NtCalls, NtCall{Section: s.UID(), Name: op.Name, Args: op.Args})
			}
		}

		for _, child := range s.Children() {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}

	for _, s := range c.exp.Sections() {
		if err := walk(s); err != nil {
			return err
		}
	}

	if c.acquireLoop != nil {
		c.rtRoots = []*dsl.Section{c.acquireLoop}
	}
	return nil
}

// enumerateNtSteps builds the cartesian product of the near-time sweeps,
// outermost sweep first. An experiment without near-time sweeps gets a
// single empty step.
func (c *compilation) enumerateNtSteps() {
	dims := make([]int, len(c.out.NtSweeps))
	for i, sw := range c.out.NtSweeps {
		dims[i] = sw.Params[0].Len()
	}

	total := 1
	for _, d := range dims {
		total *= d
	}

	steps := make([]NtStep, 0, total)
	idx := make([]int, len(dims))
	for n := 0; n < total; n++ {
		key := NtStepKey{Indices: append([]int(nil), idx...)}
		values := map[string]float64{}
		for i, sw := range c.out.NtSweeps {
			for _, p := range sw.Params {
				values[p.UID] = p.At(idx[i])
			}
		}
		steps = append(steps, NtStep{Key: key, Values: values})

		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < dims[i] {
				break
			}
			idx[i] = 0
		}
	}
	c.out.NtSteps = steps
}

func (c *compilation) buildRecipe() error {
	r := &c.out.Recipe

	// Device initializations with leader election: a PQSC leads over ZSync;
	// otherwise the first device acts as desktop leader.
	insts := c.setup.Instruments()
	var leader string
	for _, inst := range insts {
		if inst.Kind == device.KindPQSC {
			leader = inst.UID
			break
		}
	}
	viaZSync := leader != ""
	if leader == "" && len(insts) > 0 {
		leader = insts[0].UID
	}
	for _, inst := range insts {
		cfg := InitConfig{SampleRate: inst.EffectiveSampleRate()}
		switch {
		case inst.UID == leader:
			cfg.TriggeringMode = TriggerDesktopLeader
			cfg.Repetitions = 1
		case viaZSync:
			cfg.TriggeringMode = TriggerZSyncFollower
		default:
			cfg.TriggeringMode = TriggerInternalFollow
		}
		r.Initializations = append(r.Initializations, Initialization{
			DeviceUID:  inst.UID,
			DeviceKind: inst.Kind,
			Config:     cfg,
		})
	}

	// Hardware oscillator parameters from the signal calibrations.
	for _, sig := range c.exp.Signals() {
		ls := c.bySig[sig.UID]
		if ls.Calibration == nil || ls.Calibration.Oscillator == nil {
			continue
		}
		osc := ls.Calibration.Oscillator
		if osc.Kind != device.OscillatorHardware {
			continue
		}
		p := OscillatorParam{
			ID:       osc.UID,
			DeviceID: ls.Device,
			Channel:  ls.Channel,
			SignalID: sig.UID,
		}
		if osc.FrequencyParam != "" {
			if _, ok := c.ntParam(osc.FrequencyParam); !ok {
				return fmt.Errorf("compiler: oscillator %q sweeps frequency by %q, which is not a near-time sweep parameter",
					osc.UID, osc.FrequencyParam)
			}
			p.Param = osc.FrequencyParam
		} else {
			f := osc.Frequency
			p.Frequency = &f
		}
		r.OscillatorParams = append(r.OscillatorParams, p)
	}

	// Integrator allocations and acquire lengths.
	seen := map[string]bool{}
	for _, acq := range c.out.Acquires {
		ls := c.bySig[acq.Signal]
		if !seen[acq.Signal] {
			seen[acq.Signal] = true
			threshold := 0.0
			if ls.Calibration != nil {
				threshold = ls.Calibration.Threshold
			}
			r.IntegratorAllocations = append(r.IntegratorAllocations, IntegratorAllocation{
				SignalID:    acq.Signal,
				DeviceID:    ls.Device,
				Channels:    []int{2 * ls.Channel, 2*ls.Channel + 1},
				Thresholds:  []float64{threshold},
				KernelCount: 1,
			})
		}
		r.AcquireLengths = append(r.AcquireLengths, AcquireLength{
			SignalID: acq.Signal,
			Handle:   acq.Handle,
			Samples:  acq.Samples,
		})
	}

	if c.acquireLoop != nil {
		acquireDevice := ""
		if len(c.out.Acquires) > 0 {
			acquireDevice = c.out.Acquires[0].Device
		}
		r.RealtimeInit = RealtimeExecutionInit{
			AcquireDevice: acquireDevice,
			ShotCount:     c.out.ShotCount,
			FirstStep:     NtStepKey{Indices: make([]int, len(c.out.NtSweeps))},
		}
	}
	return nil
}

func (c *compilation) ntParam(uid string) (parameter.Sweep, bool) {
	for _, sw := range c.out.NtSweeps {
		for _, p := range sw.Params {
			if p.UID == uid {
				return p, true
			}
		}
	}
	return parameter.Sweep{}, false
}

func (c *compilation) scheduleEvents(maxIter int) error {
	if len(c.rtRoots) == 0 {
		return nil
	}

	// Near-time parameters take their first-step values in the event list.
	ntValues := map[string]float64{}
	if len(c.out.NtSteps) > 0 {
		ntValues = c.out.NtSteps[0].Values
	}

	sc := newScheduler(c.gridRate, maxIter, ntValues)
	t := 0.0
	for _, root := range c.rtRoots {
		d, err := sc.schedule(root, t, -1, true)
		if err != nil {
			return err
		}
		t += d
	}
	c.out.Events = sc.sorted()
	c.out.Duration = t
	return nil
}
