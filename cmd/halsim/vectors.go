package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"omibyte.io/halos/src/runtime/arm/cortexm"
	"omibyte.io/halos/targets"
)

var vectorsCmd = &cobra.Command{
	Use:   "vectors <chip>",
	Short: "Print the vector table layout of a chip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := targets.All().Find(args[0])
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		v := cortexm.NewVectorTable(target.NumIRQ)
		fmt.Fprintf(w, "%s: %d vectors, %d priority levels\n", target.Series, v.Len(), 1<<target.PriorityBits)
		for i := 1; i < v.Len(); i++ {
			exc := cortexm.Exception(i)
			name := exc.String()
			if strings.HasPrefix(name, "Reserved") {
				continue
			}
			fmt.Fprintf(w, "0x%03x  %3d  %s\n", 4*i, i, name)
		}
		return nil
	},
}
