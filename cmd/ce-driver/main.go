package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	version = "dev" // set by build flags
)

var rootCmd = &cobra.Command{
	Use:   "ce-driver",
	Short: "Concolic-execution driver for a hybrid fuzzer",
	Long: `ce-driver pops seeds off a multi-source priority queue, feeds them to an
instrumented target through a forkserver, and hands each input to an
external constraint solver in parallel via shared memory and named
pipes, publishing newly discovered inputs back into the depot.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ce-driver.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(gradeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
