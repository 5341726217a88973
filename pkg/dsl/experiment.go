// Package dsl provides the experiment description layer: experiments,
// sections, sweeps and the operations played on signal lines. An Experiment
// is a pure description; it is turned into an executable artifact by the
// compiler behind Session.Compile.
package dsl

import (
	"errors"
	"fmt"
)

// ExecutionType distinguishes host-side (near-time) scope from sequencer
// (real-time) scope.
type ExecutionType string

const (
	ExecNearTime ExecutionType = "controller"
	ExecRealTime ExecutionType = "hardware"
)

// Alignment controls where the content of a section sits when the section
// is longer than its content.
type Alignment string

const (
	AlignLeft  Alignment = "left"
	AlignRight Alignment = "right"
)

// AveragingMode selects how shots of a real-time acquire loop are ordered.
type AveragingMode string

const (
	AveragingCyclic     AveragingMode = "cyclic"
	AveragingSequential AveragingMode = "sequential"
	AveragingSingleShot AveragingMode = "single_shot"
)

// AcquisitionType selects the readout processing applied by the acquisition
// unit.
type AcquisitionType string

const (
	AcquireIntegration    AcquisitionType = "integration"
	AcquireSpectroscopy   AcquisitionType = "spectroscopy"
	AcquireRaw            AcquisitionType = "raw"
	AcquireDiscrimination AcquisitionType = "discrimination"
)

// Signal is an experiment signal line. It is mapped to a logical signal of a
// device setup before compilation.
type Signal struct {
	// UID names the line within the experiment, e.g. "drive" or "acquire".
	UID string

	// Mapped is the logical signal path this line plays on, e.g.
	// "q0/drive_line". Empty until MapSignal is called.
	Mapped string
}

// Experiment is a tree of sections with operations on declared signal lines.
type Experiment struct {
	UID string

	signals     map[string]*Signal
	signalOrder []string
	sections    []*Section

	errs []error
}

// NewExperiment creates an experiment with the given signal lines declared.
func NewExperiment(uid string, signals ...string) *Experiment {
	e := &Experiment{
		UID:     uid,
		signals: make(map[string]*Signal, len(signals)),
	}
	for _, s := range signals {
		if s == "" {
			e.errs = append(e.errs, errors.New("dsl: signal uid must not be empty"))
			continue
		}
		if _, dup := e.signals[s]; dup {
			e.errs = append(e.errs, fmt.Errorf("dsl: duplicate signal %q", s))
			continue
		}
		e.signals[s] = &Signal{UID: s}
		e.signalOrder = append(e.signalOrder, s)
	}
	return e
}

// Signals returns the declared signal lines in declaration order.
func (e *Experiment) Signals() []Signal {
	out := make([]Signal, 0, len(e.signalOrder))
	for _, uid := range e.signalOrder {
		out = append(out, *e.signals[uid])
	}
	return out
}

// MapSignal binds an experiment signal line to a logical signal path of the
// device setup, e.g. MapSignal("drive", "q0/drive_line").
func (e *Experiment) MapSignal(signal, logicalPath string) error {
	s, ok := e.signals[signal]
	if !ok {
		return fmt.Errorf("dsl: unknown signal %q", signal)
	}
	if logicalPath == "" {
		return fmt.Errorf("dsl: empty logical signal path for %q", signal)
	}
	s.Mapped = logicalPath
	return nil
}

// Sections returns the top-level sections in definition order.
func (e *Experiment) Sections() []*Section {
	return e.sections
}

// Section appends a top-level near-time section.
func (e *Experiment) Section(uid string) *Section {
	s := newSection(e, uid, KindPlain, ExecNearTime)
	e.sections = append(e.sections, s)
	return s
}

// Sweep appends a top-level near-time sweep over the given parameters.
// Multiple parameters sweep in lockstep and must have equal length.
func (e *Experiment) Sweep(uid string, params ...SweepParameter) *Section {
	s := newSweepSection(e, uid, ExecNearTime, params)
	e.sections = append(e.sections, s)
	return s
}

// AcquireLoopRt appends the real-time acquire loop: count shots, averaged
// according to mode, acquired with the given acquisition type. Everything
// nested below it executes in real time.
func (e *Experiment) AcquireLoopRt(uid string, count int, mode AveragingMode, acq AcquisitionType) *Section {
	if count < 1 {
		e.addErr(fmt.Errorf("dsl: acquire loop %q needs count >= 1, got %d", uid, count))
		count = 1
	}
	s := newSection(e, uid, KindAcquireLoop, ExecRealTime)
	s.count = count
	s.averaging = mode
	s.acquisition = acq
	e.sections = append(e.sections, s)
	return s
}

func (e *Experiment) addErr(err error) {
	e.errs = append(e.errs, err)
}

func (e *Experiment) hasSignal(uid string) bool {
	_, ok := e.signals[uid]
	return ok
}

// Validate reports all construction errors accumulated while building the
// experiment, plus structural checks that need the full tree: acquire loop
// uniqueness and near-time-only placement of Call operations.
func (e *Experiment) Validate() error {
	errs := append([]error{}, e.errs...)

	loops := 0
	var walk func(s *Section, inRealTime bool)
	walk = func(s *Section, inRealTime bool) {
		if s.kind == KindAcquireLoop {
			loops++
			inRealTime = true
		}
		for _, op := range s.ops {
			if op.Kind == OpCall && inRealTime {
				errs = append(errs, fmt.Errorf(
					"dsl: section %q: callback %q cannot run in real-time scope", s.uid, op.Name))
			}
		}
		for _, c := range s.children {
			walk(c, inRealTime)
		}
	}
	for _, s := range e.sections {
		walk(s, false)
	}
	if loops > 1 {
		errs = append(errs, fmt.Errorf("dsl: experiment %q has %d acquire loops, want at most 1", e.UID, loops))
	}

	return errors.Join(errs...)
}
