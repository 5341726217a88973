package device

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// descriptor mirrors the YAML device descriptor layout:
//
//	instruments:
//	  HDAWG:
//	    - uid: hdawg0
//	      address: dev8001
//	  SHFQA:
//	    - uid: shfqa0
//	      address: dev12001
//	connections:
//	  hdawg0:
//	    - iq_signal: q0/drive_line
//	      channel: 0
//	  shfqa0:
//	    - iq_signal: q0/measure_line
//	      channel: 0
//	    - acquire_signal: q0/acquire_line
//	      channel: 0
type descriptor struct {
	Instruments map[string][]descriptorInstrument `yaml:"instruments"`
	Connections map[string][]descriptorConnection `yaml:"connections"`
}

type descriptorInstrument struct {
	UID        string  `yaml:"uid"`
	Address    string  `yaml:"address"`
	SampleRate float64 `yaml:"sample_rate"`
}

type descriptorConnection struct {
	IQSignal      string `yaml:"iq_signal"`
	RFSignal      string `yaml:"rf_signal"`
	AcquireSignal string `yaml:"acquire_signal"`
	Channel       int    `yaml:"channel"`
}

// FromDescriptor builds a Setup from a YAML descriptor.
func FromDescriptor(uid string, yamlText []byte) (*Setup, error) {
	var d descriptor
	if err := yaml.Unmarshal(yamlText, &d); err != nil {
		return nil, fmt.Errorf("device: parsing descriptor: %w", err)
	}
	if len(d.Instruments) == 0 {
		return nil, fmt.Errorf("device: descriptor has no instruments")
	}

	setup := NewSetup(uid)

	for kind, list := range d.Instruments {
		k := Kind(kind)
		switch k {
		case KindHDAWG, KindSHFQA, KindSHFSG, KindUHFQA, KindPQSC:
		default:
			return nil, fmt.Errorf("device: unknown instrument kind %q", kind)
		}
		for _, di := range list {
			if err := setup.AddInstrument(Instrument{
				UID:        di.UID,
				Kind:       k,
				Address:    di.Address,
				SampleRate: di.SampleRate,
			}); err != nil {
				return nil, err
			}
		}
	}

	for deviceUID, conns := range d.Connections {
		for _, c := range conns {
			path, typ, err := c.signal()
			if err != nil {
				return nil, fmt.Errorf("device: connection on %q: %w", deviceUID, err)
			}
			if err := setup.AddLogicalSignal(path, typ, deviceUID, c.Channel); err != nil {
				return nil, err
			}
		}
	}

	return setup, nil
}

func (c descriptorConnection) signal() (string, SignalType, error) {
	set := 0
	var path string
	var typ SignalType
	if c.IQSignal != "" {
		set++
		path, typ = c.IQSignal, SignalIQ
	}
	if c.RFSignal != "" {
		set++
		path, typ = c.RFSignal, SignalRF
	}
	if c.AcquireSignal != "" {
		set++
		path, typ = c.AcquireSignal, SignalAcquire
	}
	if set != 1 {
		return "", "", fmt.Errorf("exactly one of iq_signal, rf_signal, acquire_signal must be set")
	}
	return path, typ, nil
}
