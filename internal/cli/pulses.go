package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/royglick/laboneq/pkg/pulse"
)

var pulsesCmd = &cobra.Command{
	Use:   "pulses",
	Short: "Render a pulse envelope and print its samples as JSON",
	Long: `Render one of the built-in pulse shapes at a given sample rate.

Examples:
  labq pulses --shape gaussian --length 32ns
  labq pulses --shape drag --beta 0.2 --amplitude 0.5
  labq pulses --shape sine --oscillations 2 --rate 1e9`,
	RunE: runPulses,
}

// Flags
var (
	pulseShape        string
	pulseLength       time.Duration
	pulseAmplitude    float64
	pulseRate         float64
	pulseWidth        float64
	pulseBeta         float64
	pulseOscillations float64
	pulsePhase        float64
)

func init() {
	rootCmd.AddCommand(pulsesCmd)

	pulsesCmd.Flags().StringVarP(&pulseShape, "shape", "s", "gaussian", "Pulse shape: const, gaussian, gaussian_square, drag, ramp, sine, sawtooth, triangle")
	pulsesCmd.Flags().DurationVarP(&pulseLength, "length", "l", 32*time.Nanosecond, "Pulse length")
	pulsesCmd.Flags().Float64VarP(&pulseAmplitude, "amplitude", "a", 1.0, "Peak amplitude")
	pulsesCmd.Flags().Float64VarP(&pulseRate, "rate", "r", 2e9, "Sample rate in Hz")
	pulsesCmd.Flags().Float64Var(&pulseWidth, "width", 0.8, "Flat-top fraction for gaussian_square")
	pulsesCmd.Flags().Float64Var(&pulseBeta, "beta", 0.2, "DRAG correction coefficient")
	pulsesCmd.Flags().Float64Var(&pulseOscillations, "oscillations", 1, "Full periods for sine and sawtooth")
	pulsesCmd.Flags().Float64Var(&pulsePhase, "phase", 0, "Phase offset in radians for sine")
}

type pulseDump struct {
	UID        string    `json:"uid"`
	Shape      string    `json:"shape"`
	LengthNs   float64   `json:"length_ns"`
	RateHz     float64   `json:"rate_hz"`
	Samples    []float64 `json:"samples"`
	Quadrature []float64 `json:"quadrature,omitempty"`
}

func runPulses(cmd *cobra.Command, args []string) error {
	uid := pulseShape

	var p pulse.Pulse
	var quadrature []float64
	switch pulseShape {
	case "const":
		p = pulse.NewConst(uid, pulseLength, pulseAmplitude)
	case "gaussian":
		p = pulse.NewGaussian(uid, pulseLength, pulseAmplitude)
	case "gaussian_square":
		p = pulse.NewGaussianSquare(uid, pulseLength, pulseAmplitude, pulseWidth)
	case "drag":
		d := pulse.NewDrag(uid, pulseLength, pulseAmplitude, pulseBeta)
		quadrature = d.Quadrature(pulseRate)
		p = d
	case "ramp":
		p = pulse.NewRamp(uid, pulseLength, pulseAmplitude, 0, 1)
	case "sine":
		p = pulse.NewSine(uid, pulseLength, pulseAmplitude, pulseOscillations, pulsePhase)
	case "sawtooth":
		p = pulse.NewSawtooth(uid, pulseLength, pulseAmplitude, pulseOscillations)
	case "triangle":
		p = pulse.NewTriangle(uid, pulseLength, pulseAmplitude)
	default:
		return fmt.Errorf("unknown pulse shape: %s", pulseShape)
	}

	dump := pulseDump{
		UID:        p.UID(),
		Shape:      pulseShape,
		LengthNs:   float64(pulseLength) / float64(time.Nanosecond),
		RateHz:     pulseRate,
		Samples:    p.Samples(pulseRate),
		Quadrature: quadrature,
	}
	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
