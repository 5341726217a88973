package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/royglick/laboneq/pkg/session"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Compile and run the bundled Rabi experiment on the emulated controller",
	Long: `Compile the bundled amplitude Rabi experiment against a device setup and
run it on the emulated controller.

Examples:
  labq simulate                          # Bundled single-qubit setup
  labq simulate --descriptor setup.yaml  # Setup from a descriptor file
  labq simulate --shots 256 --amp-points 11
  labq simulate --sheet                  # Dump the pulse sheet as JSON`,
	RunE: runSimulate,
}

// Flags
var (
	simDescriptor string
	simShots      int
	simFreqPoints int
	simAmpPoints  int
	simSheet      bool
	simVerbose    bool
)

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVarP(&simDescriptor, "descriptor", "d", "", "Device descriptor YAML file")
	simulateCmd.Flags().IntVar(&simShots, "shots", 128, "Real-time averaging count")
	simulateCmd.Flags().IntVar(&simFreqPoints, "freq-points", 3, "Near-time frequency sweep points")
	simulateCmd.Flags().IntVar(&simAmpPoints, "amp-points", 5, "Real-time amplitude sweep points")
	simulateCmd.Flags().BoolVar(&simSheet, "sheet", false, "Print the compiled pulse sheet as JSON and exit")
	simulateCmd.Flags().BoolVarP(&simVerbose, "verbose", "v", false, "Log session activity")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	setup, err := loadSetup(simDescriptor)
	if err != nil {
		return err
	}

	exp, freq, amp, err := rabiExperiment(simShots, simFreqPoints, simAmpPoints)
	if err != nil {
		return err
	}

	var opts []session.Option
	if simVerbose {
		opts = append(opts, session.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, nil))))
	}
	sess := session.New(setup, opts...)

	if err := sess.Connect(ctx); err != nil {
		return err
	}
	defer sess.Disconnect()

	err = sess.RegisterNeartimeCallback("set_frequency", func(ctx context.Context, args map[string]any) (any, error) {
		return args["frequency"], nil
	})
	if err != nil {
		return err
	}

	ce, err := sess.Compile(exp)
	if err != nil {
		return err
	}

	if simSheet {
		data, err := ce.SheetJSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	res, err := sess.RunCompiled(ctx, ce)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "experiment:      %s\n", ce.ExperimentUID)
	fmt.Fprintf(out, "setup:           %s\n", ce.SetupUID)
	fmt.Fprintf(out, "near-time steps: %d\n", len(ce.NtSteps))
	fmt.Fprintf(out, "events per step: %d\n", len(ce.Events))
	fmt.Fprintf(out, "shot duration:   %.1f ns\n", ce.Duration*1e9)

	acq, err := res.Acquired("rabi")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "acquired shape:  %v\n", acq.Shape())
	for i := 0; i < freq.Len(); i++ {
		fmt.Fprintf(out, "freq %.4g GHz:", freq.At(i)/1e9)
		for j := 0; j < amp.Len(); j++ {
			v, err := acq.At(i, j)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, " %.3f", v)
		}
		fmt.Fprintln(out)
	}
	return nil
}
