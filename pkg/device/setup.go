// Package device models the device setup an experiment runs against:
// instruments, logical signals, physical channels and their calibration.
package device

import (
	"fmt"
	"sort"
)

// Kind enumerates the supported instrument families.
type Kind string

const (
	KindHDAWG Kind = "HDAWG"
	KindSHFQA Kind = "SHFQA"
	KindSHFSG Kind = "SHFSG"
	KindUHFQA Kind = "UHFQA"
	KindPQSC  Kind = "PQSC"
)

// SignalType distinguishes output (iq/rf) from input (acquire) signals.
type SignalType string

const (
	SignalIQ      SignalType = "iq"
	SignalRF      SignalType = "rf"
	SignalAcquire SignalType = "acquire"
)

// Instrument is one device of the setup.
type Instrument struct {
	UID     string
	Kind    Kind
	Address string

	// SampleRate in samples per second; defaults per kind when zero.
	SampleRate float64
}

// defaultSampleRate mirrors the native rates of the instrument families.
func (i Instrument) defaultSampleRate() float64 {
	switch i.Kind {
	case KindHDAWG:
		return 2.4e9
	case KindUHFQA:
		return 1.8e9
	default:
		return 2e9
	}
}

// EffectiveSampleRate returns the configured or default sample rate.
func (i Instrument) EffectiveSampleRate() float64 {
	if i.SampleRate > 0 {
		return i.SampleRate
	}
	return i.defaultSampleRate()
}

// LogicalSignal is an addressable signal line of the setup, grouped by
// qubit-like group names ("q0/drive_line"). It references the physical
// channel that carries it.
type LogicalSignal struct {
	// Path is "<group>/<name>".
	Path string

	Type SignalType

	// Device and Channel locate the physical port.
	Device  string
	Channel int

	Calibration *SignalCalibration
}

// IsCalibrated reports whether a calibration is attached.
func (l *LogicalSignal) IsCalibrated() bool { return l.Calibration != nil }

// ResetCalibration detaches the calibration.
func (l *LogicalSignal) ResetCalibration() { l.Calibration = nil }

// PhysicalChannel is a physical port of an instrument.
type PhysicalChannel struct {
	// Path is "<device>/<port>", e.g. "hdawg0/sigouts_0".
	Path    string
	Device  string
	Channel int
	Type    SignalType
}

// PhysicalChannelGroup collects the physical channels of one instrument and
// exposes their calibration as a map keyed by channel path.
type PhysicalChannelGroup struct {
	UID      string
	Channels map[string]*PhysicalChannel

	// calibration per channel path; nil entries mean uncalibrated.
	calibration map[string]*SignalCalibration
}

// Calibration returns the calibration of every channel in the group;
// uncalibrated channels map to nil.
func (g *PhysicalChannelGroup) Calibration() map[string]*SignalCalibration {
	out := make(map[string]*SignalCalibration, len(g.Channels))
	for path := range g.Channels {
		out[path] = g.calibration[path]
	}
	return out
}

// SetCalibration attaches a calibration to the channel with the given path.
func (g *PhysicalChannelGroup) SetCalibration(path string, c *SignalCalibration) error {
	if _, ok := g.Channels[path]; !ok {
		return fmt.Errorf("device: group %q has no channel %q", g.UID, path)
	}
	if g.calibration == nil {
		g.calibration = make(map[string]*SignalCalibration)
	}
	g.calibration[path] = c
	return nil
}

// ResetCalibration clears the calibration of all channels in the group.
func (g *PhysicalChannelGroup) ResetCalibration() {
	g.calibration = nil
}

// Setup is the complete device setup: instruments, logical signals, and the
// physical channels behind them.
type Setup struct {
	UID string

	instruments map[string]*Instrument
	signals     map[string]*LogicalSignal
	groups      map[string]*PhysicalChannelGroup
}

// NewSetup creates an empty setup.
func NewSetup(uid string) *Setup {
	return &Setup{
		UID:         uid,
		instruments: make(map[string]*Instrument),
		signals:     make(map[string]*LogicalSignal),
		groups:      make(map[string]*PhysicalChannelGroup),
	}
}

// AddInstrument registers an instrument.
func (s *Setup) AddInstrument(inst Instrument) error {
	if inst.UID == "" {
		return fmt.Errorf("device: instrument uid must not be empty")
	}
	if _, dup := s.instruments[inst.UID]; dup {
		return fmt.Errorf("device: duplicate instrument %q", inst.UID)
	}
	cp := inst
	s.instruments[inst.UID] = &cp
	s.groups[inst.UID] = &PhysicalChannelGroup{
		UID:      inst.UID,
		Channels: make(map[string]*PhysicalChannel),
	}
	return nil
}

// AddLogicalSignal registers a logical signal carried by a channel of a
// known instrument and records the matching physical channel.
func (s *Setup) AddLogicalSignal(path string, typ SignalType, deviceUID string, channel int) error {
	if path == "" {
		return fmt.Errorf("device: logical signal path must not be empty")
	}
	if _, dup := s.signals[path]; dup {
		return fmt.Errorf("device: duplicate logical signal %q", path)
	}
	if _, ok := s.instruments[deviceUID]; !ok {
		return fmt.Errorf("device: logical signal %q references unknown instrument %q", path, deviceUID)
	}
	if channel < 0 {
		return fmt.Errorf("device: logical signal %q has negative channel", path)
	}

	s.signals[path] = &LogicalSignal{Path: path, Type: typ, Device: deviceUID, Channel: channel}

	pcPath := fmt.Sprintf("%s/ch%d_%s", deviceUID, channel, typ)
	g := s.groups[deviceUID]
	if _, exists := g.Channels[pcPath]; !exists {
		g.Channels[pcPath] = &PhysicalChannel{
			Path:    pcPath,
			Device:  deviceUID,
			Channel: channel,
			Type:    typ,
		}
	}
	return nil
}

// Instrument returns a registered instrument.
func (s *Setup) Instrument(uid string) (*Instrument, error) {
	inst, ok := s.instruments[uid]
	if !ok {
		return nil, fmt.Errorf("device: unknown instrument %q", uid)
	}
	return inst, nil
}

// Instruments returns all instruments sorted by UID.
func (s *Setup) Instruments() []*Instrument {
	out := make([]*Instrument, 0, len(s.instruments))
	for _, inst := range s.instruments {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// LogicalSignal returns the signal with the given path.
func (s *Setup) LogicalSignal(path string) (*LogicalSignal, error) {
	sig, ok := s.signals[path]
	if !ok {
		return nil, fmt.Errorf("device: unknown logical signal %q", path)
	}
	return sig, nil
}

// LogicalSignals returns all logical signals sorted by path.
func (s *Setup) LogicalSignals() []*LogicalSignal {
	out := make([]*LogicalSignal, 0, len(s.signals))
	for _, sig := range s.signals {
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// PhysicalChannelGroup returns the channel group of an instrument.
func (s *Setup) PhysicalChannelGroup(deviceUID string) (*PhysicalChannelGroup, error) {
	g, ok := s.groups[deviceUID]
	if !ok {
		return nil, fmt.Errorf("device: unknown instrument %q", deviceUID)
	}
	return g, nil
}

// GetCalibration returns the calibration of every logical signal, keyed by
// path; uncalibrated signals map to nil.
func (s *Setup) GetCalibration() map[string]*SignalCalibration {
	out := make(map[string]*SignalCalibration, len(s.signals))
	for path, sig := range s.signals {
		out[path] = sig.Calibration
	}
	return out
}

// ResetCalibration clears the calibration of all logical signals and
// channel groups.
func (s *Setup) ResetCalibration() {
	for _, sig := range s.signals {
		sig.ResetCalibration()
	}
	for _, g := range s.groups {
		g.ResetCalibration()
	}
}
