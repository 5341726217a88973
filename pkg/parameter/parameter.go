// Package parameter defines sweep parameters: ordered value ranges that
// sweep sections iterate over, either in near-time on the host or in
// real-time on the sequencer.
package parameter

import "fmt"

// Sweep is an ordered set of values identified by a UID. Operations inside a
// sweep section reference the parameter by value; the scheduler substitutes
// the value for the current iteration.
type Sweep struct {
	UID    string
	Values []float64
}

// Linear returns a sweep of count values evenly spaced from start to stop,
// both inclusive. count == 1 yields just the start value.
func Linear(uid string, start, stop float64, count int) (Sweep, error) {
	if uid == "" {
		return Sweep{}, fmt.Errorf("parameter: sweep uid must not be empty")
	}
	if count < 1 {
		return Sweep{}, fmt.Errorf("parameter: sweep %q needs at least one value, got count=%d", uid, count)
	}
	values := make([]float64, count)
	if count == 1 {
		values[0] = start
	} else {
		step := (stop - start) / float64(count-1)
		for i := range values {
			values[i] = start + float64(i)*step
		}
	}
	return Sweep{UID: uid, Values: values}, nil
}

// MustLinear is like Linear but panics on error. Intended for experiment
// definitions assembled at startup.
func MustLinear(uid string, start, stop float64, count int) Sweep {
	s, err := Linear(uid, start, stop, count)
	if err != nil {
		panic(err)
	}
	return s
}

// Values returns a sweep over explicitly listed values.
func Values(uid string, values ...float64) (Sweep, error) {
	if uid == "" {
		return Sweep{}, fmt.Errorf("parameter: sweep uid must not be empty")
	}
	if len(values) == 0 {
		return Sweep{}, fmt.Errorf("parameter: sweep %q needs at least one value", uid)
	}
	cp := make([]float64, len(values))
	copy(cp, values)
	return Sweep{UID: uid, Values: cp}, nil
}

// Len returns the number of sweep points.
func (s Sweep) Len() int { return len(s.Values) }

// At returns the value at iteration i.
func (s Sweep) At(i int) float64 { return s.Values[i] }
