package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDescriptor = `
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

func TestFromDescriptor(t *testing.T) {
	t.Parallel()

	setup, err := FromDescriptor("single-qubit", []byte(testDescriptor))
	require.NoError(t, err)

	insts := setup.Instruments()
	require.Len(t, insts, 2)
	assert.Equal(t, "hdawg0", insts[0].UID)
	assert.Equal(t, KindHDAWG, insts[0].Kind)
	assert.InDelta(t, 2.4e9, insts[0].EffectiveSampleRate(), 1)

	sig, err := setup.LogicalSignal("q0/acquire_line")
	require.NoError(t, err)
	assert.Equal(t, SignalAcquire, sig.Type)
	assert.Equal(t, "shfqa0", sig.Device)

	require.Len(t, setup.LogicalSignals(), 3)
}

func TestFromDescriptorRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := FromDescriptor("bad", []byte("instruments:\n  TOASTER:\n    - uid: t0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown instrument kind")
}

func TestFromDescriptorRejectsAmbiguousConnection(t *testing.T) {
	t.Parallel()

	const d = `
instruments:
  HDAWG:
    - uid: hdawg0
connections:
  hdawg0:
    - iq_signal: q0/drive_line
      rf_signal: q0/flux_line
`
	_, err := FromDescriptor("bad", []byte(d))
	require.Error(t, err)
}

func TestCalibrationRoundTrip(t *testing.T) {
	t.Parallel()

	setup, err := FromDescriptor("cal", []byte(testDescriptor))
	require.NoError(t, err)

	sig, err := setup.LogicalSignal("q0/drive_line")
	require.NoError(t, err)
	require.False(t, sig.IsCalibrated())

	sig.Calibration = &SignalCalibration{
		Oscillator: &Oscillator{UID: "drive_osc", Kind: OscillatorHardware, Frequency: 100e6},
		Range:      0.5,
	}
	require.True(t, sig.IsCalibrated())

	cal := setup.GetCalibration()
	require.NotNil(t, cal["q0/drive_line"])
	assert.Nil(t, cal["q0/measure_line"])

	setup.ResetCalibration()
	assert.False(t, sig.IsCalibrated())
	assert.Nil(t, setup.GetCalibration()["q0/drive_line"])
}

func TestPhysicalChannelGroup(t *testing.T) {
	t.Parallel()

	setup, err := FromDescriptor("pcg", []byte(testDescriptor))
	require.NoError(t, err)

	g, err := setup.PhysicalChannelGroup("shfqa0")
	require.NoError(t, err)
	require.Len(t, g.Channels, 2)

	require.Error(t, g.SetCalibration("no/such", &SignalCalibration{}))

	require.NoError(t, g.SetCalibration("shfqa0/ch0_acquire", &SignalCalibration{PortDelay: 40e-9}))
	cal := g.Calibration()
	require.NotNil(t, cal["shfqa0/ch0_acquire"])
	assert.Nil(t, cal["shfqa0/ch0_iq"])

	g.ResetCalibration()
	assert.Nil(t, g.Calibration()["shfqa0/ch0_acquire"])
}

func TestSetupValidation(t *testing.T) {
	t.Parallel()

	s := NewSetup("v")
	require.NoError(t, s.AddInstrument(Instrument{UID: "a", Kind: KindSHFSG}))
	require.Error(t, s.AddInstrument(Instrument{UID: "a", Kind: KindSHFSG}))
	require.Error(t, s.AddInstrument(Instrument{Kind: KindSHFSG}))

	require.Error(t, s.AddLogicalSignal("q0/drive_line", SignalIQ, "missing", 0))
	require.Error(t, s.AddLogicalSignal("", SignalIQ, "a", 0))
	require.NoError(t, s.AddLogicalSignal("q0/drive_line", SignalIQ, "a", 1))
	require.Error(t, s.AddLogicalSignal("q0/drive_line", SignalIQ, "a", 1))
}
