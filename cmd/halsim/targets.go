package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"omibyte.io/halos/demo"
	"omibyte.io/halos/targets"
)

var (
	targetsCmd = &cobra.Command{
		Use:   "targets",
		Short: "List the chips that can be simulated",
		Run: func(cmd *cobra.Command, args []string) {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(tw, "SERIES\tCORE\tIRQS\tSRAM\tCLOCK\tCHIPS")
			for _, t := range targets.All().Sorted() {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d KiB @ 0x%08x\t%d MHz\t%s\n",
					t.Series, t.Core, t.NumIRQ, t.SRAMSize/1024, t.SRAMBase, t.ClockHz/1_000_000, strings.Join(t.Chips, ", "))
			}
			tw.Flush()
		},
	}

	appsCmd = &cobra.Command{
		Use:   "apps",
		Short: "List the demo applications",
		Run: func(cmd *cobra.Command, args []string) {
			for _, app := range demo.All() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", app.Name, app.Description)
			}
		},
	}
)
