package compiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/royglick/laboneq/pkg/device"
	"github.com/royglick/laboneq/pkg/dsl"
	"github.com/royglick/laboneq/pkg/parameter"
	"github.com/royglick/laboneq/pkg/pulse"
)

func testSetup(t *testing.T) *device.Setup {
	t.Helper()

	setup := device.NewSetup("test-setup")
	require.NoError(t, setup.AddInstrument(device.Instrument{UID: "hdawg0", Kind: device.KindHDAWG, SampleRate: 2e9}))
	require.NoError(t, setup.AddInstrument(device.Instrument{UID: "shfqa0", Kind: device.KindSHFQA, SampleRate: 2e9}))
	require.NoError(t, setup.AddLogicalSignal("q0/drive_line", device.SignalIQ, "hdawg0", 0))
	require.NoError(t, setup.AddLogicalSignal("q0/measure_line", device.SignalIQ, "shfqa0", 0))
	require.NoError(t, setup.AddLogicalSignal("q0/acquire_line", device.SignalAcquire, "shfqa0", 0))
	return setup
}

func mapSignals(t *testing.T, exp *dsl.Experiment) {
	t.Helper()
	require.NoError(t, exp.MapSignal("drive", "q0/drive_line"))
	require.NoError(t, exp.MapSignal("measure", "q0/measure_line"))
	require.NoError(t, exp.MapSignal("acquire", "q0/acquire_line"))
}

// rabiExperiment builds a near-time frequency sweep around a real-time
// amplitude sweep, the canonical two-level structure.
func rabiExperiment(t *testing.T) (*dsl.Experiment, parameter.Sweep, parameter.Sweep) {
	t.Helper()

	freq := parameter.MustLinear("freq", 5e9, 5.1e9, 3)
	amp := parameter.MustLinear("amp", 0, 1, 5)

	drive := pulse.NewGaussian("x180", 32*time.Nanosecond, 1)
	readout := pulse.NewConst("readout", 100*time.Nanosecond, 0.4)
	kernel := pulse.NewConst("kernel", 100*time.Nanosecond, 1)

	exp := dsl.NewExperiment("rabi", "drive", "measure", "acquire")
	mapSignals(t, exp)

	nt := exp.Sweep("freq-sweep", freq)
	nt.Call("set_frequency", map[string]any{"frequency": freq})

	rt := nt.AcquireLoopRt("shots", 128, dsl.AveragingCyclic, dsl.AcquireIntegration)
	sw := rt.Sweep("amp-sweep", amp)
	sw.Section("excite").Play("drive", drive, dsl.WithAmplitudeSweep(amp))
	sw.Section("readout").PlayAfter("excite").
		Play("measure", readout).
		Acquire("acquire", "rabi", kernel)

	return exp, freq, amp
}

func TestCompileRabi(t *testing.T) {
	t.Parallel()

	exp, _, _ := rabiExperiment(t)
	ce, err := Compile(exp, testSetup(t), Options{})
	require.NoError(t, err)

	assert.Equal(t, "rabi", ce.ExperimentUID)
	assert.Equal(t, 128, ce.ShotCount)
	assert.Equal(t, dsl.AveragingCyclic, ce.Averaging)
	assert.InDelta(t, 2e9, ce.GridRate, 1)

	// 3 near-time steps, one per frequency.
	require.Len(t, ce.NtSteps, 3)
	assert.Equal(t, []int{0}, ce.NtSteps[0].Key.Indices)
	assert.InDelta(t, 5e9, ce.NtSteps[0].Values["freq"], 1)
	assert.InDelta(t, 5.1e9, ce.NtSteps[2].Values["freq"], 1)

	require.Len(t, ce.NtCalls, 1)
	assert.Equal(t, "set_frequency", ce.NtCalls[0].Name)

	require.Len(t, ce.RtSweeps, 1)
	assert.Equal(t, "amp-sweep", ce.RtSweeps[0].Section)

	// Pulses indexed for replacement.
	assert.Contains(t, ce.Pulses, "x180")
	assert.Contains(t, ce.Pulses, "readout")
	assert.Contains(t, ce.Pulses, "kernel")

	// One real-time iteration: 32ns excite + 100ns readout, 5 iterations.
	assert.InDelta(t, 5*132e-9, ce.Duration, 1e-12)
}

func TestCompileRecipe(t *testing.T) {
	t.Parallel()

	exp, freq, _ := rabiExperiment(t)
	setup := testSetup(t)

	measure, err := setup.LogicalSignal("q0/measure_line")
	require.NoError(t, err)
	measure.Calibration = &device.SignalCalibration{
		Oscillator: &device.Oscillator{
			UID:            "measure_osc",
			Kind:           device.OscillatorHardware,
			FrequencyParam: freq.UID,
		},
	}

	ce, err := Compile(exp, setup, Options{})
	require.NoError(t, err)

	r := ce.Recipe
	require.Len(t, r.Initializations, 2)
	// No PQSC: the first device (sorted) leads.
	assert.Equal(t, "hdawg0", r.Initializations[0].DeviceUID)
	assert.Equal(t, TriggerDesktopLeader, r.Initializations[0].Config.TriggeringMode)
	assert.Equal(t, 1, r.Initializations[0].Config.Repetitions)
	assert.Equal(t, TriggerInternalFollow, r.Initializations[1].Config.TriggeringMode)

	require.Len(t, r.OscillatorParams, 1)
	assert.Equal(t, "measure_osc", r.OscillatorParams[0].ID)
	assert.Equal(t, "freq", r.OscillatorParams[0].Param)
	assert.Nil(t, r.OscillatorParams[0].Frequency)

	require.Len(t, r.IntegratorAllocations, 1)
	assert.Equal(t, "acquire", r.IntegratorAllocations[0].SignalID)
	assert.Equal(t, []int{0, 1}, r.IntegratorAllocations[0].Channels)

	require.Len(t, r.AcquireLengths, 1)
	assert.Equal(t, 200, r.AcquireLengths[0].Samples) // 100ns at 2GS/s

	assert.Equal(t, 128, r.RealtimeInit.ShotCount)
	assert.Equal(t, "shfqa0", r.RealtimeInit.AcquireDevice)
	assert.Equal(t, []int{0}, r.RealtimeInit.FirstStep.Indices)
}

func TestCompilePQSCLeads(t *testing.T) {
	t.Parallel()

	exp, _, _ := rabiExperiment(t)
	setup := testSetup(t)
	require.NoError(t, setup.AddInstrument(device.Instrument{UID: "pqsc0", Kind: device.KindPQSC}))

	ce, err := Compile(exp, setup, Options{})
	require.NoError(t, err)

	byUID := map[string]Initialization{}
	for _, init := range ce.Recipe.Initializations {
		byUID[init.DeviceUID] = init
	}
	assert.Equal(t, TriggerDesktopLeader, byUID["pqsc0"].Config.TriggeringMode)
	assert.Equal(t, TriggerZSyncFollower, byUID["hdawg0"].Config.TriggeringMode)
	assert.Equal(t, TriggerZSyncFollower, byUID["shfqa0"].Config.TriggeringMode)
}

func TestEventListWellFormed(t *testing.T) {
	t.Parallel()

	exp, _, amp := rabiExperiment(t)
	ce, err := Compile(exp, testSetup(t), Options{})
	require.NoError(t, err)
	require.NotEmpty(t, ce.Events)

	// Sorted by time.
	for i := 1; i < len(ce.Events); i++ {
		assert.LessOrEqual(t, ce.Events[i-1].Time, ce.Events[i].Time)
	}

	// Every start has a matching end, per type.
	starts := map[EventType]int{}
	for _, ev := range ce.Events {
		switch ev.Type {
		case EventPlayStart, EventAcquireStart, EventSectionStart, EventDelayStart:
			starts[ev.Type]++
		case EventPlayEnd:
			starts[EventPlayStart]--
		case EventAcquireEnd:
			starts[EventAcquireStart]--
		case EventSectionEnd:
			starts[EventSectionStart]--
		case EventDelayEnd:
			starts[EventDelayStart]--
		}
	}
	for typ, n := range starts {
		assert.Zero(t, n, "unbalanced %s", typ)
	}

	// Swept amplitude: first iteration plays at 0, last at full scale.
	var playAmps []float64
	for _, ev := range ce.Events {
		if ev.Type == EventPlayStart && ev.PulseUID == "x180" {
			playAmps = append(playAmps, ev.Amplitude)
		}
	}
	require.Len(t, playAmps, amp.Len())
	assert.InDelta(t, 0.0, playAmps[0], 1e-12)
	assert.InDelta(t, 1.0, playAmps[len(playAmps)-1], 1e-12)
}

func TestEventIterationCap(t *testing.T) {
	t.Parallel()

	amp := parameter.MustLinear("amp", 0, 1, 100)
	drive := pulse.NewConst("d", 16*time.Nanosecond, 1)
	kernel := pulse.NewConst("k", 16*time.Nanosecond, 1)

	exp := dsl.NewExperiment("big-sweep", "drive", "measure", "acquire")
	mapSignals(t, exp)
	rt := exp.AcquireLoopRt("shots", 1, dsl.AveragingCyclic, dsl.AcquireIntegration)
	sw := rt.Sweep("amp-sweep", amp)
	sw.Section("body").Play("drive", drive).Acquire("acquire", "h", kernel)

	ce, err := Compile(exp, testSetup(t), Options{MaxEventIterations: 4})
	require.NoError(t, err)

	iters := map[int]bool{}
	for _, ev := range ce.Events {
		if ev.Type == EventPlayStart {
			iters[ev.Iteration] = true
		}
	}
	assert.Len(t, iters, 4)
	// Duration still covers the full sweep.
	assert.InDelta(t, 100*16e-9, ce.Duration, 1e-12)
}

func TestExplicitLengthRightAlignment(t *testing.T) {
	t.Parallel()

	drive := pulse.NewConst("d", 20*time.Nanosecond, 1)

	exp := dsl.NewExperiment("aligned", "drive", "measure", "acquire")
	mapSignals(t, exp)
	rt := exp.AcquireLoopRt("shots", 1, dsl.AveragingCyclic, dsl.AcquireIntegration)
	rt.Section("padded").
		WithLength(100 * time.Nanosecond).
		WithAlignment(dsl.AlignRight).
		Play("drive", drive)

	ce, err := Compile(exp, testSetup(t), Options{})
	require.NoError(t, err)

	var playStart, sectionEnd float64
	for _, ev := range ce.Events {
		if ev.Type == EventPlayStart {
			playStart = ev.Time
		}
		if ev.Type == EventSectionEnd && ev.Section == "padded" {
			sectionEnd = ev.Time
		}
	}
	// Right-aligned: play ends exactly at the section end.
	assert.InDelta(t, 80e-9, playStart, 1e-12)
	assert.InDelta(t, 100e-9, sectionEnd, 1e-12)
}

func TestExplicitLengthTooShort(t *testing.T) {
	t.Parallel()

	drive := pulse.NewConst("d", 200*time.Nanosecond, 1)

	exp := dsl.NewExperiment("short", "drive", "measure", "acquire")
	mapSignals(t, exp)
	rt := exp.AcquireLoopRt("shots", 1, dsl.AveragingCyclic, dsl.AcquireIntegration)
	rt.Section("tight").WithLength(50 * time.Nanosecond).Play("drive", drive)

	_, err := Compile(exp, testSetup(t), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds its explicit length")
}

func TestPlayAfterMustNameEarlierSibling(t *testing.T) {
	t.Parallel()

	drive := pulse.NewConst("d", 10*time.Nanosecond, 1)

	exp := dsl.NewExperiment("order", "drive", "measure", "acquire")
	mapSignals(t, exp)
	rt := exp.AcquireLoopRt("shots", 1, dsl.AveragingCyclic, dsl.AcquireIntegration)
	rt.Section("a").PlayAfter("b").Play("drive", drive)
	rt.Section("b").Play("drive", drive)

	_, err := Compile(exp, testSetup(t), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an earlier sibling")
}

func TestUnmappedSignalFailsCompile(t *testing.T) {
	t.Parallel()

	exp := dsl.NewExperiment("unmapped", "drive")
	exp.Section("s").Play("drive", pulse.NewConst("d", time.Nanosecond, 1))

	_, err := Compile(exp, testSetup(t), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not mapped")
}

func TestEmptySweepParameterFailsCompile(t *testing.T) {
	t.Parallel()

	exp := dsl.NewExperiment("empty-sweep", "drive", "measure", "acquire")
	mapSignals(t, exp)

	rt := exp.AcquireLoopRt("shots", 16, dsl.AveragingCyclic, dsl.AcquireIntegration)
	sw := rt.Sweep("amp-sweep", parameter.Sweep{UID: "amp"})
	sw.Section("excite").Play("drive", pulse.NewConst("d", time.Nanosecond, 1))

	_, err := Compile(exp, testSetup(t), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `parameter "amp" has no values`)
}

func TestUnknownAmplitudeSweepFails(t *testing.T) {
	t.Parallel()

	ghost := parameter.MustLinear("ghost", 0, 1, 2)
	drive := pulse.NewConst("d", 10*time.Nanosecond, 1)

	exp := dsl.NewExperiment("ghost-sweep", "drive", "measure", "acquire")
	mapSignals(t, exp)
	rt := exp.AcquireLoopRt("shots", 1, dsl.AveragingCyclic, dsl.AcquireIntegration)
	rt.Section("s").Play("drive", drive, dsl.WithAmplitudeSweep(ghost))

	_, err := Compile(exp, testSetup(t), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no enclosing sweep")
}

func TestSheetJSON(t *testing.T) {
	t.Parallel()

	exp, _, _ := rabiExperiment(t)
	ce, err := Compile(exp, testSetup(t), Options{})
	require.NoError(t, err)

	sheet := ce.Sheet()
	assert.Equal(t, "rabi", sheet.Experiment)
	assert.NotEmpty(t, sheet.Events)
	assert.Contains(t, sheet.Waveforms, "x180")
	assert.Len(t, sheet.Waveforms["x180"], 64) // 32ns at 2GS/s

	data, err := ce.SheetJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"experiment\": \"rabi\"")
}
