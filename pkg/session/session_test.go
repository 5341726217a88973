package session

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/royglick/laboneq/internal/controller"
	"github.com/royglick/laboneq/pkg/device"
	"github.com/royglick/laboneq/pkg/dsl"
	"github.com/royglick/laboneq/pkg/parameter"
	"github.com/royglick/laboneq/pkg/pulse"
)

const descriptor = `
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

func testSetup(t *testing.T) *device.Setup {
	t.Helper()
	setup, err := device.FromDescriptor("test-setup", []byte(descriptor))
	require.NoError(t, err)
	return setup
}

func rampsey(t *testing.T) (*dsl.Experiment, parameter.Sweep) {
	t.Helper()

	delay := parameter.MustLinear("delay", 0, 1e-6, 4)

	exp := dsl.NewExperiment("ramsey", "drive", "measure", "acquire")
	require.NoError(t, exp.MapSignal("drive", "q0/drive_line"))
	require.NoError(t, exp.MapSignal("measure", "q0/measure_line"))
	require.NoError(t, exp.MapSignal("acquire", "q0/acquire_line"))

	nt := exp.Sweep("delay-sweep", delay)
	nt.Call("set_delay", map[string]any{"delay": delay})

	rt := nt.AcquireLoopRt("shots", 32, dsl.AveragingCyclic, dsl.AcquireIntegration)
	rt.Section("pulses").
		Play("drive", pulse.NewGaussian("x90", 16*time.Nanosecond, 0.5)).
		Play("drive", pulse.NewGaussian("x90b", 16*time.Nanosecond, 0.5))
	rt.Section("readout").PlayAfter("pulses").
		Play("measure", pulse.NewConst("readout", 80*time.Nanosecond, 0.3)).
		Acquire("acquire", "ramsey", pulse.NewConst("kernel", 80*time.Nanosecond, 1))

	return exp, delay
}

func TestRunRequiresConnect(t *testing.T) {
	t.Parallel()

	s := New(testSetup(t))
	exp, _ := rampsey(t)
	require.NoError(t, s.RegisterNeartimeCallback("set_delay", func(_ context.Context, _ map[string]any) (any, error) {
		return nil, nil
	}))

	_, err := s.Run(context.Background(), exp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestRunCollectsResults(t *testing.T) {
	t.Parallel()

	s := New(testSetup(t))
	require.NoError(t, s.Connect(context.Background()))

	exp, _ := rampsey(t)
	var delays []float64
	require.NoError(t, s.RegisterNeartimeCallback("set_delay", func(_ context.Context, args map[string]any) (any, error) {
		delays = append(delays, args["delay"].(float64))
		return nil, nil
	}))

	res, err := s.Run(context.Background(), exp)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Same(t, res, s.Results())

	assert.Len(t, delays, 4)
	assert.InDelta(t, 1e-6, delays[3], 1e-15)

	acq, err := res.Acquired("ramsey")
	require.NoError(t, err)
	assert.Equal(t, []int{4}, acq.Shape())
}

func TestCompileThenRunCompiled(t *testing.T) {
	t.Parallel()

	s := New(testSetup(t))
	require.NoError(t, s.Connect(context.Background()))

	exp, _ := rampsey(t)
	require.NoError(t, s.RegisterNeartimeCallback("set_delay", func(_ context.Context, _ map[string]any) (any, error) {
		return nil, nil
	}))

	ce, err := s.Compile(exp)
	require.NoError(t, err)
	assert.Same(t, ce, s.Compiled())
	assert.NotEmpty(t, ce.Events)

	res, err := s.RunCompiled(context.Background(), ce)
	require.NoError(t, err)
	require.Len(t, res.Neartime("set_delay"), 4)
}

func TestReplacePulseMidRun(t *testing.T) {
	t.Parallel()

	s := New(testSetup(t))
	require.NoError(t, s.Connect(context.Background()))

	exp, _ := rampsey(t)
	ce, err := s.Compile(exp)
	require.NoError(t, err)

	var step int
	require.NoError(t, s.RegisterNeartimeCallback("set_delay", func(_ context.Context, _ map[string]any) (any, error) {
		step++
		if step == 2 {
			s.ReplacePulse("x90", pulse.NewDrag("x90-drag", 16*time.Nanosecond, 0.5, 0.1))
		}
		return nil, nil
	}))

	_, err = s.RunCompiled(context.Background(), ce)
	require.NoError(t, err)
	assert.Equal(t, "x90-drag", ce.Pulses["x90"].UID())
}

func TestOptionsComposeInAnyOrder(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	// WithSimulator before WithLogger: the controller must still use the
	// configured logger and the configured simulator.
	s := New(testSetup(t),
		WithSimulator(controller.SimulatorFunc(func(string, map[string]float64) float64 { return 7 })),
		WithLogger(logger),
	)
	require.NoError(t, s.Connect(context.Background()))

	exp, _ := rampsey(t)
	require.NoError(t, s.RegisterNeartimeCallback("set_delay", func(_ context.Context, _ map[string]any) (any, error) {
		return nil, nil
	}))

	res, err := s.Run(context.Background(), exp)
	require.NoError(t, err)

	acq, err := res.Acquired("ramsey")
	require.NoError(t, err)
	v, err := acq.At(0)
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)

	assert.Contains(t, buf.String(), "execution started")
}

func TestConnectIdempotent(t *testing.T) {
	t.Parallel()

	s := New(testSetup(t))
	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.Connect(context.Background()))
	s.Disconnect()

	exp, _ := rampsey(t)
	require.NoError(t, s.RegisterNeartimeCallback("set_delay", func(_ context.Context, _ map[string]any) (any, error) {
		return nil, nil
	}))
	_, err := s.Run(context.Background(), exp)
	require.Error(t, err)
}
