package pulse

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Pulse describes a parametric waveform envelope that can be played on a
// signal line. Implementations must be immutable after construction so a
// pulse can be shared between sections and replaced atomically at run time.
type Pulse interface {
	// UID identifies the pulse within an experiment. Replacing a pulse by
	// UID between near-time steps swaps the waveform that is played.
	UID() string

	// Duration is the nominal length of the pulse.
	Duration() time.Duration

	// Amplitude is the peak amplitude in units of full scale (0..1).
	Amplitude() float64

	// Samples renders the envelope at the given sample rate (samples per
	// second). A zero-duration pulse yields an empty slice.
	Samples(rate float64) []float64
}

// base carries the fields shared by all functional pulses.
type base struct {
	uid       string
	length    time.Duration
	amplitude float64
}

func newBase(uid string, length time.Duration, amplitude float64) base {
	if uid == "" {
		uid = "p_" + uuid.NewString()
	}
	return base{uid: uid, length: length, amplitude: amplitude}
}

func (b base) UID() string             { return b.uid }
func (b base) Duration() time.Duration { return b.length }
func (b base) Amplitude() float64      { return b.amplitude }

func (b base) sampleCount(rate float64) int {
	if b.length <= 0 || rate <= 0 {
		return 0
	}
	return int(math.Round(b.length.Seconds() * rate))
}

// render evaluates fn over the normalised pulse time x in [-1, 1) and scales
// by the amplitude.
func (b base) render(rate float64, fn func(x float64) float64) []float64 {
	n := b.sampleCount(rate)
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		x := -1 + 2*(float64(i)+0.5)/float64(n)
		out[i] = b.amplitude * fn(x)
	}
	return out
}

// Const is a rectangular pulse.
type Const struct{ base }

// NewConst creates a constant-envelope pulse.
func NewConst(uid string, length time.Duration, amplitude float64) Const {
	return Const{newBase(uid, length, amplitude)}
}

func (p Const) Samples(rate float64) []float64 {
	return p.render(rate, func(float64) float64 { return 1 })
}

// Gaussian is a Gaussian envelope truncated to the pulse length.
//
// SigmaFraction is the standard deviation relative to half the pulse length;
// the default of 1/3 puts the +-3 sigma points at the pulse edges.
type Gaussian struct {
	base
	SigmaFraction float64
}

// NewGaussian creates a Gaussian pulse with the default sigma of a third of
// the half-length.
func NewGaussian(uid string, length time.Duration, amplitude float64) Gaussian {
	return Gaussian{base: newBase(uid, length, amplitude), SigmaFraction: 1.0 / 3.0}
}

func (p Gaussian) Samples(rate float64) []float64 {
	sigma := p.SigmaFraction
	if sigma <= 0 {
		sigma = 1.0 / 3.0
	}
	return p.render(rate, func(x float64) float64 {
		return math.Exp(-x * x / (2 * sigma * sigma))
	})
}

// GaussianSquare is a flat-top pulse with Gaussian rise and fall.
type GaussianSquare struct {
	base
	// Width is the fraction of the pulse occupied by the flat top (0..1).
	Width float64
	// SigmaFraction as in Gaussian, applied to the rise and fall segments.
	SigmaFraction float64
}

// NewGaussianSquare creates a flat-top pulse; width is the flat fraction.
func NewGaussianSquare(uid string, length time.Duration, amplitude, width float64) GaussianSquare {
	return GaussianSquare{
		base:          newBase(uid, length, amplitude),
		Width:         width,
		SigmaFraction: 1.0 / 3.0,
	}
}

func (p GaussianSquare) Samples(rate float64) []float64 {
	w := p.Width
	if w < 0 {
		w = 0
	}
	if w > 1 {
		w = 1
	}
	sigma := p.SigmaFraction
	if sigma <= 0 {
		sigma = 1.0 / 3.0
	}
	edge := 1 - w // total fraction spent on the two edges, in x units
	return p.render(rate, func(x float64) float64 {
		ax := math.Abs(x)
		if ax <= w {
			return 1
		}
		if edge == 0 {
			return 1
		}
		// Normalised distance into the Gaussian edge.
		d := (ax - w) / edge
		return math.Exp(-d * d / (2 * sigma * sigma))
	})
}

// Drag is a Gaussian pulse with a derivative quadrature component, the
// standard leakage-suppression envelope for weakly anharmonic qubits. Only
// the in-phase component is returned by Samples; Quadrature renders the
// derivative part scaled by Beta.
type Drag struct {
	base
	SigmaFraction float64
	Beta          float64
}

// NewDrag creates a DRAG pulse with the given derivative scale beta.
func NewDrag(uid string, length time.Duration, amplitude, beta float64) Drag {
	return Drag{base: newBase(uid, length, amplitude), SigmaFraction: 1.0 / 3.0, Beta: beta}
}

func (p Drag) Samples(rate float64) []float64 {
	sigma := p.SigmaFraction
	if sigma <= 0 {
		sigma = 1.0 / 3.0
	}
	return p.render(rate, func(x float64) float64 {
		return math.Exp(-x * x / (2 * sigma * sigma))
	})
}

// Quadrature renders the derivative component of the DRAG envelope.
func (p Drag) Quadrature(rate float64) []float64 {
	sigma := p.SigmaFraction
	if sigma <= 0 {
		sigma = 1.0 / 3.0
	}
	return p.render(rate, func(x float64) float64 {
		g := math.Exp(-x * x / (2 * sigma * sigma))
		return -p.Beta * x / (sigma * sigma) * g
	})
}

// Ramp sweeps linearly from Start to Stop amplitude across the pulse.
type Ramp struct {
	base
	Start, Stop float64
}

// NewRamp creates a linear ramp between two relative levels.
func NewRamp(uid string, length time.Duration, amplitude, start, stop float64) Ramp {
	return Ramp{base: newBase(uid, length, amplitude), Start: start, Stop: stop}
}

func (p Ramp) Samples(rate float64) []float64 {
	return p.render(rate, func(x float64) float64 {
		t := (x + 1) / 2
		return p.Start + (p.Stop-p.Start)*t
	})
}

// Sine is a sinusoidal envelope with a frequency in oscillations per pulse.
type Sine struct {
	base
	Oscillations float64
	Phase        float64
}

// NewSine creates a sine pulse completing the given number of oscillations
// over the pulse length.
func NewSine(uid string, length time.Duration, amplitude, oscillations, phase float64) Sine {
	return Sine{base: newBase(uid, length, amplitude), Oscillations: oscillations, Phase: phase}
}

func (p Sine) Samples(rate float64) []float64 {
	return p.render(rate, func(x float64) float64 {
		t := (x + 1) / 2
		return math.Sin(2*math.Pi*p.Oscillations*t + p.Phase)
	})
}

// Sawtooth rises linearly and resets once per oscillation.
type Sawtooth struct {
	base
	Oscillations float64
}

// NewSawtooth creates a sawtooth pulse.
func NewSawtooth(uid string, length time.Duration, amplitude, oscillations float64) Sawtooth {
	return Sawtooth{base: newBase(uid, length, amplitude), Oscillations: oscillations}
}

func (p Sawtooth) Samples(rate float64) []float64 {
	return p.render(rate, func(x float64) float64 {
		t := (x + 1) / 2 * p.Oscillations
		return 2*(t-math.Floor(t)) - 1
	})
}

// Triangle is a symmetric triangular envelope.
type Triangle struct{ base }

// NewTriangle creates a triangle pulse peaking at the centre.
func NewTriangle(uid string, length time.Duration, amplitude float64) Triangle {
	return Triangle{newBase(uid, length, amplitude)}
}

func (p Triangle) Samples(rate float64) []float64 {
	return p.render(rate, func(x float64) float64 {
		return 1 - math.Abs(x)
	})
}

// Sampled wraps an explicit waveform. The duration is derived from the
// sample count and the rate the samples were taken at.
type Sampled struct {
	uid       string
	rate      float64
	amplitude float64
	samples   []float64
}

// NewSampled creates a pulse from raw samples recorded at the given rate.
// The samples are copied.
func NewSampled(uid string, rate float64, samples []float64) Sampled {
	if uid == "" {
		uid = "p_" + uuid.NewString()
	}
	cp := make([]float64, len(samples))
	copy(cp, samples)
	return Sampled{uid: uid, rate: rate, amplitude: 1, samples: cp}
}

func (p Sampled) UID() string        { return p.uid }
func (p Sampled) Amplitude() float64 { return p.amplitude }

func (p Sampled) Duration() time.Duration {
	if p.rate <= 0 {
		return 0
	}
	return time.Duration(float64(len(p.samples)) / p.rate * float64(time.Second))
}

// Samples resamples the waveform to the requested rate using nearest-
// neighbour lookup. Requesting the native rate returns an exact copy.
func (p Sampled) Samples(rate float64) []float64 {
	if len(p.samples) == 0 || rate <= 0 || p.rate <= 0 {
		return nil
	}
	n := int(math.Round(float64(len(p.samples)) * rate / p.rate))
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		src := int(float64(i) * p.rate / rate)
		if src >= len(p.samples) {
			src = len(p.samples) - 1
		}
		out[i] = p.samples[src]
	}
	return out
}
