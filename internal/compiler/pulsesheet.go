package compiler

import (
	"encoding/json"
	"sort"
)

// PulseSheet is the serializable view of a compiled experiment used for
// waveform inspection: the event list plus the rendered envelopes.
type PulseSheet struct {
	Experiment string               `json:"experiment"`
	SampleRate float64              `json:"sample_rate"`
	Duration   float64              `json:"duration"`
	Events     []SheetEvent         `json:"events"`
	Waveforms  map[string][]float64 `json:"waveforms"`
}

// SheetEvent is one event row of the pulse sheet.
type SheetEvent struct {
	Type      string  `json:"type"`
	Time      float64 `json:"time"`
	Section   string  `json:"section"`
	Signal    string  `json:"signal,omitempty"`
	Pulse     string  `json:"pulse,omitempty"`
	Handle    string  `json:"handle,omitempty"`
	Amplitude float64 `json:"amplitude,omitempty"`
	Iteration int     `json:"iteration"`
}

// MaxSheetEvents bounds the exported event count; long sweeps are truncated
// beyond it.
const MaxSheetEvents = 4096

// Sheet builds the pulse sheet for a compiled experiment.
func (ce *CompiledExperiment) Sheet() PulseSheet {
	evs := ce.Events
	if len(evs) > MaxSheetEvents {
		evs = evs[:MaxSheetEvents]
	}

	sheet := PulseSheet{
		Experiment: ce.ExperimentUID,
		SampleRate: ce.GridRate,
		Duration:   ce.Duration,
		Waveforms:  map[string][]float64{},
	}
	for _, ev := range evs {
		sheet.Events = append(sheet.Events, SheetEvent{
			Type:      string(ev.Type),
			Time:      ev.Time,
			Section:   ev.Section,
			Signal:    ev.Signal,
			Pulse:     ev.PulseUID,
			Handle:    ev.Handle,
			Amplitude: ev.Amplitude,
			Iteration: ev.Iteration,
		})
	}

	uids := make([]string, 0, len(ce.Pulses))
	for uid := range ce.Pulses {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	for _, uid := range uids {
		sheet.Waveforms[uid] = ce.Pulses[uid].Samples(ce.GridRate)
	}
	return sheet
}

// SheetJSON renders the pulse sheet as indented JSON.
func (ce *CompiledExperiment) SheetJSON() ([]byte, error) {
	return json.MarshalIndent(ce.Sheet(), "", "  ")
}
