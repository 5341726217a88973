package dsl

import (
	"fmt"
	"time"

	"github.com/royglick/laboneq/pkg/parameter"
	"github.com/royglick/laboneq/pkg/pulse"
)

// OpKind identifies the operation variants playable inside a section.
type OpKind string

const (
	OpPlay    OpKind = "play"
	OpAcquire OpKind = "acquire"
	OpDelay   OpKind = "delay"
	OpReserve OpKind = "reserve"
	OpCall    OpKind = "call"
)

// Operation is a single instruction on a signal line (or, for OpCall, on the
// host controller). The populated fields depend on Kind.
type Operation struct {
	Kind   OpKind
	Signal string

	// OpPlay: the pulse to play; OpAcquire: the integration kernel.
	Pulse pulse.Pulse

	// Optional play modifiers.
	Amplitude      *float64 // overrides the pulse amplitude
	AmplitudeSweep string   // sweep parameter UID scaling the amplitude
	Phase          float64  // radians

	// OpAcquire
	Handle string

	// OpDelay
	Duration time.Duration

	// OpCall
	Name string
	Args map[string]any
}

// PlayOption modifies a play operation.
type PlayOption func(*Operation)

// WithAmplitude overrides the pulse amplitude for this play only.
func WithAmplitude(a float64) PlayOption {
	return func(op *Operation) { op.Amplitude = &a }
}

// WithAmplitudeSweep scales the played amplitude by the given sweep
// parameter's current value. The play must sit inside a sweep section bound
// to that parameter.
func WithAmplitudeSweep(p parameter.Sweep) PlayOption {
	return func(op *Operation) { op.AmplitudeSweep = p.UID }
}

// WithPhase sets the phase offset in radians.
func WithPhase(phi float64) PlayOption {
	return func(op *Operation) { op.Phase = phi }
}

// Play appends a pulse on the given signal line.
func (s *Section) Play(signal string, p pulse.Pulse, opts ...PlayOption) *Section {
	if !s.exp.hasSignal(signal) {
		s.exp.addErr(fmt.Errorf("dsl: section %q plays on undeclared signal %q", s.uid, signal))
		return s
	}
	if p == nil {
		s.exp.addErr(fmt.Errorf("dsl: section %q plays a nil pulse on %q", s.uid, signal))
		return s
	}
	op := Operation{Kind: OpPlay, Signal: signal, Pulse: p}
	for _, o := range opts {
		o(&op)
	}
	s.ops = append(s.ops, op)
	return s
}

// Acquire appends an acquisition on the given signal line. The handle keys
// the acquired data in the results; kernel is the integration weight pulse
// and also determines the acquire length.
func (s *Section) Acquire(signal, handle string, kernel pulse.Pulse) *Section {
	if !s.exp.hasSignal(signal) {
		s.exp.addErr(fmt.Errorf("dsl: section %q acquires on undeclared signal %q", s.uid, signal))
		return s
	}
	if handle == "" {
		s.exp.addErr(fmt.Errorf("dsl: section %q has an acquire with empty handle", s.uid))
		return s
	}
	if kernel == nil {
		s.exp.addErr(fmt.Errorf("dsl: section %q acquire %q has nil kernel", s.uid, handle))
		return s
	}
	s.ops = append(s.ops, Operation{Kind: OpAcquire, Signal: signal, Handle: handle, Pulse: kernel})
	return s
}

// Delay appends a wait on the given signal line.
func (s *Section) Delay(signal string, d time.Duration) *Section {
	if !s.exp.hasSignal(signal) {
		s.exp.addErr(fmt.Errorf("dsl: section %q delays on undeclared signal %q", s.uid, signal))
		return s
	}
	if d < 0 {
		s.exp.addErr(fmt.Errorf("dsl: section %q has negative delay on %q", s.uid, signal))
		return s
	}
	s.ops = append(s.ops, Operation{Kind: OpDelay, Signal: signal, Duration: d})
	return s
}

// Reserve blocks the signal line for the duration of the section without
// playing anything, preventing concurrent sections from using it.
func (s *Section) Reserve(signal string) *Section {
	if !s.exp.hasSignal(signal) {
		s.exp.addErr(fmt.Errorf("dsl: section %q reserves undeclared signal %q", s.uid, signal))
		return s
	}
	s.ops = append(s.ops, Operation{Kind: OpReserve, Signal: signal})
	return s
}

// Call schedules a near-time callback registered on the session under the
// given name. Argument values of type parameter.Sweep resolve to the
// parameter's value for the current near-time step; other values pass
// through unchanged. Call is only valid in near-time scope.
func (s *Section) Call(name string, args map[string]any) *Section {
	if name == "" {
		s.exp.addErr(fmt.Errorf("dsl: section %q has a callback with empty name", s.uid))
		return s
	}
	cp := make(map[string]any, len(args))
	for k, v := range args {
		cp[k] = v
	}
	s.ops = append(s.ops, Operation{Kind: OpCall, Name: name, Args: cp})
	return s
}
