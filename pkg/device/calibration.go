package device

// OscillatorKind distinguishes software modulation (baseband mixing in the
// waveform generator) from a hardware oscillator on the device.
type OscillatorKind string

const (
	OscillatorSoftware OscillatorKind = "software"
	OscillatorHardware OscillatorKind = "hardware"
)

// Oscillator describes the modulation applied to a signal.
type Oscillator struct {
	UID       string
	Kind      OscillatorKind
	Frequency float64

	// FrequencyParam, when set, names a sweep parameter that drives the
	// frequency instead of the fixed value. Only hardware oscillators can
	// be swept this way.
	FrequencyParam string
}

// SignalCalibration captures the per-signal settings applied before an
// experiment runs.
type SignalCalibration struct {
	Oscillator *Oscillator

	// LocalOscillatorFrequency in Hz; zero means no up-conversion.
	LocalOscillatorFrequency float64

	Range       float64 // output/input range in volts
	PortDelay   float64 // seconds
	Threshold   float64 // state discrimination threshold
	DelaySignal float64 // seconds, lead time on the signal path
}
