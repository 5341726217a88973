package compiler

import (
	"fmt"
	"math"
	"sort"

	"github.com/royglick/laboneq/pkg/dsl"
)

// scheduler walks the real-time section tree, assigns start times on the
// device sample grid and emits the event list.
type scheduler struct {
	rate          float64
	maxIterations int

	// current sweep parameter values, used to annotate play amplitudes.
	sweepValues map[string]float64

	events []Event
}

func newScheduler(rate float64, maxIterations int, ntValues map[string]float64) *scheduler {
	vals := make(map[string]float64, len(ntValues))
	for k, v := range ntValues {
		vals[k] = v
	}
	return &scheduler{rate: rate, maxIterations: maxIterations, sweepValues: vals}
}

func (sc *scheduler) snap(t float64) float64 {
	return math.Round(t*sc.rate) / sc.rate
}

// schedule emits events for the section starting at t0 and returns the
// section duration in seconds. iter is the innermost sweep iteration the
// section belongs to, or -1.
func (sc *scheduler) schedule(s *dsl.Section, t0 float64, iter int, emit bool) (float64, error) {
	switch s.Kind() {
	case dsl.KindSweep:
		return sc.scheduleSweep(s, t0, emit)
	default:
		return sc.scheduleBody(s, t0, iter, emit)
	}
}

// scheduleSweep unrolls a real-time sweep. Every iteration has identical
// timing; event emission is capped at maxIterations to bound the list.
func (sc *scheduler) scheduleSweep(s *dsl.Section, t0 float64, emit bool) (float64, error) {
	params := s.Parameters()
	n := params[0].Len()

	// First pass without emission to learn the iteration length.
	sc.setSweepValues(params, 0)
	iterDur, err := sc.scheduleBody(s, t0, 0, false)
	if err != nil {
		return 0, err
	}

	if emit {
		emitted := n
		if sc.maxIterations > 0 && emitted > sc.maxIterations {
			emitted = sc.maxIterations
		}
		for it := 0; it < emitted; it++ {
			sc.setSweepValues(params, it)
			if _, err := sc.scheduleBody(s, t0+float64(it)*iterDur, it, true); err != nil {
				return 0, err
			}
		}
	}

	// Leave the values at the first iteration for anything scheduled after.
	sc.setSweepValues(params, 0)
	return float64(n) * iterDur, nil
}

func (sc *scheduler) setSweepValues(params []dsl.SweepParameter, it int) {
	for _, p := range params {
		sc.sweepValues[p.UID] = p.At(it)
	}
}

// scheduleBody lays out a section's operations and children: operations run
// on parallel per-signal tracks from the content start; children follow
// sequentially once all operations are done.
func (sc *scheduler) scheduleBody(s *dsl.Section, t0 float64, iter int, emit bool) (float64, error) {
	// Content length first, to place right-aligned content.
	contentDur, err := sc.contentDuration(s)
	if err != nil {
		return 0, err
	}

	dur := contentDur
	offset := 0.0
	if expl := s.Length(); expl > 0 {
		explS := sc.snap(expl.Seconds())
		if contentDur > explS+1/sc.rate/2 {
			return 0, fmt.Errorf("compiler: section %q content (%.3gs) exceeds its explicit length (%.3gs)",
				s.UID(), contentDur, explS)
		}
		dur = explS
		if s.Alignment() == dsl.AlignRight {
			offset = explS - contentDur
		}
	}

	if emit {
		sc.emit(Event{Type: EventSectionStart, Time: sc.snap(t0), Section: s.UID(), Iteration: iter})
	}

	if err := sc.placeOps(s, t0+offset, iter, emit); err != nil {
		return 0, err
	}

	cursor := t0 + offset + sc.opsDuration(s)
	if err := sc.checkPlayAfter(s); err != nil {
		return 0, err
	}
	for _, c := range s.Children() {
		d, err := sc.schedule(c, cursor, iter, emit)
		if err != nil {
			return 0, err
		}
		cursor += d
	}

	if emit {
		sc.emit(Event{Type: EventSectionEnd, Time: sc.snap(t0 + dur), Section: s.UID(), Iteration: iter})
	}
	return dur, nil
}

// contentDuration computes the duration of ops plus sequential children
// without emitting events.
func (sc *scheduler) contentDuration(s *dsl.Section) (float64, error) {
	total := sc.opsDuration(s)
	for _, c := range s.Children() {
		d, err := sc.schedule(c, 0, 0, false)
		if err != nil {
			return 0, err
		}
		total += d
	}
	return sc.snap(total), nil
}

// opsDuration is the length of the longest per-signal operation track.
func (sc *scheduler) opsDuration(s *dsl.Section) float64 {
	tracks := map[string]float64{}
	for _, op := range s.Operations() {
		tracks[op.Signal] += sc.opDuration(op)
	}
	longest := 0.0
	for _, d := range tracks {
		if d > longest {
			longest = d
		}
	}
	return sc.snap(longest)
}

func (sc *scheduler) opDuration(op dsl.Operation) float64 {
	switch op.Kind {
	case dsl.OpPlay, dsl.OpAcquire:
		return sc.snap(op.Pulse.Duration().Seconds())
	case dsl.OpDelay:
		return sc.snap(op.Duration.Seconds())
	default:
		return 0
	}
}

func (sc *scheduler) placeOps(s *dsl.Section, t0 float64, iter int, emit bool) error {
	tracks := map[string]float64{}
	for _, op := range s.Operations() {
		start := t0 + tracks[op.Signal]
		d := sc.opDuration(op)
		tracks[op.Signal] += d
		if !emit {
			continue
		}
		switch op.Kind {
		case dsl.OpPlay:
			amp, err := sc.playAmplitude(s, op)
			if err != nil {
				return err
			}
			sc.emit(Event{
				Type: EventPlayStart, Time: sc.snap(start), Section: s.UID(), Signal: op.Signal,
				PulseUID: op.Pulse.UID(), Amplitude: amp, Iteration: iter,
			})
			sc.emit(Event{
				Type: EventPlayEnd, Time: sc.snap(start + d), Section: s.UID(), Signal: op.Signal,
				PulseUID: op.Pulse.UID(), Amplitude: amp, Iteration: iter,
			})
		case dsl.OpAcquire:
			sc.emit(Event{
				Type: EventAcquireStart, Time: sc.snap(start), Section: s.UID(), Signal: op.Signal,
				PulseUID: op.Pulse.UID(), Handle: op.Handle, Iteration: iter,
			})
			sc.emit(Event{
				Type: EventAcquireEnd, Time: sc.snap(start + d), Section: s.UID(), Signal: op.Signal,
				PulseUID: op.Pulse.UID(), Handle: op.Handle, Iteration: iter,
			})
		case dsl.OpDelay:
			sc.emit(Event{Type: EventDelayStart, Time: sc.snap(start), Section: s.UID(), Signal: op.Signal, Iteration: iter})
			sc.emit(Event{Type: EventDelayEnd, Time: sc.snap(start + d), Section: s.UID(), Signal: op.Signal, Iteration: iter})
		}
	}
	return nil
}

func (sc *scheduler) playAmplitude(s *dsl.Section, op dsl.Operation) (float64, error) {
	amp := op.Pulse.Amplitude()
	if op.Amplitude != nil {
		amp = *op.Amplitude
	}
	if op.AmplitudeSweep != "" {
		v, ok := sc.sweepValues[op.AmplitudeSweep]
		if !ok {
			return 0, fmt.Errorf("compiler: section %q sweeps amplitude by %q, which no enclosing sweep defines",
				s.UID(), op.AmplitudeSweep)
		}
		amp *= v
	}
	return amp, nil
}

// checkPlayAfter verifies that every play-after reference names an earlier
// sibling, the ordering the sequential layout already guarantees.
func (sc *scheduler) checkPlayAfter(s *dsl.Section) error {
	seen := map[string]bool{}
	for _, c := range s.Children() {
		for _, after := range c.PlayAfterSections() {
			if !seen[after] {
				return fmt.Errorf("compiler: section %q plays after %q, which is not an earlier sibling", c.UID(), after)
			}
		}
		seen[c.UID()] = true
	}
	return nil
}

func (sc *scheduler) emit(ev Event) {
	sc.events = append(sc.events, ev)
}

// sorted returns the event list ordered by time, with ends before starts at
// equal times.
func (sc *scheduler) sorted() []Event {
	evs := sc.events
	sort.SliceStable(evs, func(i, j int) bool {
		if evs[i].Time != evs[j].Time {
			return evs[i].Time < evs[j].Time
		}
		return eventOrder(evs[i].Type) < eventOrder(evs[j].Type)
	})
	return evs
}
