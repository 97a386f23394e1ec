package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"omibyte.io/halos/demo"
	"omibyte.io/halos/src/runtime/fault"
	"omibyte.io/halos/src/runtime/hosted"
)

var (
	chip      string
	traceTail int

	runCmd = &cobra.Command{
		Use:   "run <app>",
		Short: "Run a demo application",
		Long:  "Run a demo application on the simulated core of a chip and report how the tasks shared it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("chip") {
				cfg.Chip = chip
			}
			if cmd.Flags().Changed("trace") {
				cfg.Trace = traceTail
			}
			return run(cmd.Context(), cmd.OutOrStdout(), args[0], cfg)
		},
	}
)

func init() {
	runCmd.Flags().StringVarP(&chip, "chip", "t", defaultChip, "chip or series to simulate")
	runCmd.Flags().IntVar(&traceTail, "trace", 0, "print the last N scheduler events")
}

func run(ctx context.Context, w io.Writer, name string, cfg simConfig) error {
	app, err := demo.Lookup(name)
	if err != nil {
		return err
	}
	coreCfg, target, err := cfg.coreConfig(newLogger(w))
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	fmt.Fprintf(w, "%s on %s (%s, %d MHz)\n", app.Name, coreCfg.Name, target.Core, target.ClockHz/1_000_000)
	s, report, err := demo.Run(ctx, app, coreCfg)
	if s == nil {
		return err
	}

	if report != nil {
		report(w)
	}
	printTasks(w, s)
	if cfg.Trace > 0 {
		printTrace(w, s, cfg.Trace)
	}

	var trap *fault.Trap
	if errors.As(err, &trap) {
		fmt.Fprintf(w, "core halted: %s\n", trap.Reason)
	}
	return err
}

func printTasks(w io.Writer, s *hosted.System) {
	tasks := s.Tasks()
	ticks := make([]float64, len(tasks))
	for i, t := range tasks {
		ticks[i] = float64(t.Ticks)
	}

	total := floats.Sum(ticks)
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tSTATE\tSTACK\tTICKS\tSHARE")
	shares := make([]float64, len(tasks))
	for i, t := range tasks {
		if total > 0 {
			shares[i] = ticks[i] / total
		}
		fmt.Fprintf(tw, "%s\t%s\t0x%08x-0x%08x\t%d\t%.1f%%\n", t.Name, t.State, t.StackEnd, t.StackStart, t.Ticks, 100*shares[i])
	}
	tw.Flush()

	fmt.Fprintf(w, "%d ticks, %d context switches, %d exceptions\n", s.Port.Ticks(), s.Sched.Switches(), s.Core.Exceptions())
	if total > 0 && len(shares) > 1 {
		mean, std := stat.MeanStdDev(shares, nil)
		fmt.Fprintf(w, "tick share: mean %.1f%%, stddev %.1f%%\n", 100*mean, 100*std)
	}
}

func printTrace(w io.Writer, s *hosted.System, n int) {
	events := s.Trace.Snapshot(nil)
	if len(events) > n {
		events = events[len(events)-n:]
	}
	for _, e := range events {
		fmt.Fprintln(w, e)
	}
	if d := s.Trace.Dropped(); d > 0 {
		fmt.Fprintf(w, "(%d older events dropped)\n", d)
	}
}
