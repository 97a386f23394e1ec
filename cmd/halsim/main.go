package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	verbose    bool

	halsimCmd = &cobra.Command{
		Use:   "halsim",
		Short: "Run applications on a simulated Cortex-M core",
		Long: `halsim runs the demo applications on a hosted Cortex-M core: the
scheduler, the critical sections and the synchronisation primitives run
unmodified while SysTick, PendSV and the NVIC are simulated.`,
		SilenceUsage: true,
	}
)

func init() {
	halsimCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML file overriding the simulator defaults")
	halsimCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log the core's progress")
	halsimCmd.AddCommand(runCmd, targetsCmd, vectorsCmd, appsCmd)
}

func main() {
	if err := halsimCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
