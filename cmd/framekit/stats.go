package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/framekit/pkg/inspect"
)

func newStatsCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [report.json]",
		Short: "Summarize a saved report, or a fresh demo run",
		Long: `Print per-type pool counters and per-machine states as a table.
With an argument, the JSON report written by "demo --output" is read;
without one, a demo simulation is run first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var report *inspect.Report
			if len(args) == 1 {
				data, err := os.ReadFile(args[0]) //nolint:gosec // G304: path is supplied by the operator
				if err != nil {
					return fmt.Errorf("failed to read report %s: %w", args[0], err)
				}
				if report, err = inspect.Decode(data); err != nil {
					return err
				}
			} else {
				var err error
				if report, err = c.runDemo(cmd.Context(), defaultDemoFrames, 3); err != nil {
					return err
				}
			}
			printStats(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func printStats(w io.Writer, r *inspect.Report) {
	s := r.Summary
	fmt.Fprintf(w, "Pools: %d collections, %d unused, %d in use, %d created, %d discarded (balanced: %v)\n",
		s.Collections, s.Unused, s.Using, s.Created, s.Discarded, s.Balanced)
	for _, p := range r.Pools {
		fmt.Fprintf(w, "  %-32s unused=%-4d using=%-4d spawn=%-6d unspawn=%-6d created=%-4d discarded=%d\n",
			p.TypeName, p.UnusedCount, p.UsingCount, p.SpawnCount, p.UnspawnCount, p.CreatedCount, p.DiscardedCount)
	}

	fmt.Fprintf(w, "Machines: %d live, %d running\n", s.Machines, s.RunningMachines)
	for _, m := range r.Machines {
		state := m.CurrentState
		if state == "" {
			state = "-"
		}
		fmt.Fprintf(w, "  %-32s state=%-24s time=%s\n", m.FullName, state, m.CurrentStateTime)
	}
}
