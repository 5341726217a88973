package compiler

import (
	"github.com/royglick/laboneq/pkg/device"
)

// TriggeringMode states how a device is started relative to the setup
// leader.
type TriggeringMode string

const (
	TriggerDesktopLeader  TriggeringMode = "desktop_leader"
	TriggerZSyncFollower  TriggeringMode = "zsync_follower"
	TriggerInternalFollow TriggeringMode = "internal_follower"
)

// InitConfig is the per-device configuration applied at initialization.
type InitConfig struct {
	Repetitions    int
	TriggeringMode TriggeringMode
	SampleRate     float64
}

// Initialization configures one device of the setup for the experiment.
type Initialization struct {
	DeviceUID  string
	DeviceKind device.Kind
	Config     InitConfig
}

// OscillatorParam sets a hardware oscillator frequency. Exactly one of
// Frequency and Param is set: a fixed frequency, or the UID of the sweep
// parameter that drives it per near-time step.
type OscillatorParam struct {
	ID       string
	DeviceID string
	Channel  int
	SignalID string

	Frequency *float64
	Param     string
}

// IntegratorAllocation assigns integration units to an acquire signal.
type IntegratorAllocation struct {
	SignalID string
	DeviceID string
	Channels []int

	// Thresholds for state discrimination, one per kernel pair.
	Thresholds  []float64
	KernelCount int
}

// AcquireLength is the acquisition window of a handle in device samples.
type AcquireLength struct {
	SignalID string
	Handle   string
	Samples  int
}

// NtStepKey addresses one near-time step by its per-sweep indices,
// outermost sweep first.
type NtStepKey struct {
	Indices []int
}

// RealtimeExecutionInit seeds the real-time execution: shot count and the
// first near-time step to run.
type RealtimeExecutionInit struct {
	AcquireDevice string
	ShotCount     int
	FirstStep     NtStepKey
}

// Recipe is the device-facing execution plan derived from an experiment.
type Recipe struct {
	Initializations       []Initialization
	OscillatorParams      []OscillatorParam
	IntegratorAllocations []IntegratorAllocation
	AcquireLengths        []AcquireLength
	RealtimeInit          RealtimeExecutionInit
}
