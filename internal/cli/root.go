package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "labq",
	Short: "Quantum control experiments and calibration workflows",
	Long: `labq compiles pulse-level experiments against a device setup, runs them
on an emulated controller, and executes calibration workflows as task graphs.

Define experiments with the dsl package, devices with a YAML descriptor, and
calibration procedures with the workflow builder.`,
}

func Execute() {
	// A missing .env file is fine; environment variables still apply.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
