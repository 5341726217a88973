package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/royglick/laboneq/pkg/device"
	"github.com/royglick/laboneq/pkg/dsl"
	"github.com/royglick/laboneq/pkg/parameter"
	"github.com/royglick/laboneq/pkg/pulse"
)

// defaultDescriptor is the bundled single-qubit setup used when no
// descriptor file is given.
const defaultDescriptor = `
instruments:
  HDAWG:
    - uid: hdawg0
      address: dev8001
  SHFQA:
    - uid: shfqa0
      address: dev12001
connections:
  hdawg0:
    - iq_signal: q0/drive_line
      channel: 0
  shfqa0:
    - iq_signal: q0/measure_line
      channel: 0
    - acquire_signal: q0/acquire_line
      channel: 0
`

// loadSetup builds the device setup from a descriptor file, or the bundled
// single-qubit setup when path is empty.
func loadSetup(path string) (*device.Setup, error) {
	text := []byte(defaultDescriptor)
	uid := "labq-demo"
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read descriptor: %w", err)
		}
		text = data
		uid = path
	}
	return device.FromDescriptor(uid, text)
}

// rabiExperiment builds the bundled amplitude Rabi experiment: a near-time
// frequency sweep around a real-time amplitude sweep.
func rabiExperiment(shots, freqPoints, ampPoints int) (*dsl.Experiment, parameter.Sweep, parameter.Sweep, error) {
	freq, err := parameter.Linear("freq", 5e9, 5.1e9, freqPoints)
	if err != nil {
		return nil, parameter.Sweep{}, parameter.Sweep{}, err
	}
	amp, err := parameter.Linear("amp", 0, 1, ampPoints)
	if err != nil {
		return nil, parameter.Sweep{}, parameter.Sweep{}, err
	}

	drive := pulse.NewGaussian("x180", 32*time.Nanosecond, 1)
	readout := pulse.NewConst("readout", 100*time.Nanosecond, 0.4)
	kernel := pulse.NewConst("kernel", 100*time.Nanosecond, 1)

	exp := dsl.NewExperiment("rabi", "drive", "measure", "acquire")
	for sig, path := range map[string]string{
		"drive":   "q0/drive_line",
		"measure": "q0/measure_line",
		"acquire": "q0/acquire_line",
	} {
		if err := exp.MapSignal(sig, path); err != nil {
			return nil, parameter.Sweep{}, parameter.Sweep{}, err
		}
	}

	nt := exp.Sweep("freq-sweep", freq)
	nt.Call("set_frequency", map[string]any{"frequency": freq})

	rt := nt.AcquireLoopRt("shots", shots, dsl.AveragingCyclic, dsl.AcquireIntegration)
	sw := rt.Sweep("amp-sweep", amp)
	sw.Section("excite").Play("drive", drive, dsl.WithAmplitudeSweep(amp))
	sw.Section("readout").PlayAfter("excite").
		Play("measure", readout).
		Acquire("acquire", "rabi", kernel)

	return exp, freq, amp, nil
}
