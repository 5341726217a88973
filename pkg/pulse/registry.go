package pulse

import (
	"fmt"
	"sync"
	"time"
)

// EnvelopeFunc evaluates a custom envelope at the normalised time x in
// [-1, 1) with free parameters supplied at creation time.
type EnvelopeFunc func(x float64, params map[string]float64) float64

// Functional is a pulse backed by a registered envelope function.
type Functional struct {
	base
	name   string
	fn     EnvelopeFunc
	params map[string]float64
}

// Name returns the registered functional name this pulse was created from.
func (p Functional) Name() string { return p.name }

func (p Functional) Samples(rate float64) []float64 {
	return p.render(rate, func(x float64) float64 {
		return p.fn(x, p.params)
	})
}

var (
	registryMu sync.RWMutex
	registry   = map[string]EnvelopeFunc{}
)

// Register makes a custom envelope available under the given name so pulses
// can be created from it by Create. Registering an existing name overwrites
// the previous envelope.
func Register(name string, fn EnvelopeFunc) error {
	if name == "" {
		return fmt.Errorf("pulse: functional name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("pulse: functional %q has nil envelope", name)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
	return nil
}

// Create instantiates a pulse from a registered envelope function.
func Create(name, uid string, length time.Duration, amplitude float64, params map[string]float64) (Functional, error) {
	registryMu.RLock()
	fn, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return Functional{}, fmt.Errorf("pulse: unknown functional %q", name)
	}
	cp := make(map[string]float64, len(params))
	for k, v := range params {
		cp[k] = v
	}
	return Functional{
		base:   newBase(uid, length, amplitude),
		name:   name,
		fn:     fn,
		params: cp,
	}, nil
}
