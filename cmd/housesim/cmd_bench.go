package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/housesim/internal/bench"
	"github.com/talgya/housesim/internal/persistence"
)

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark simulation cost across population sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("max-agents") {
				cfg.Bench.MaxAgents, _ = cmd.Flags().GetInt("max-agents")
			}
			if cmd.Flags().Changed("step") {
				cfg.Bench.Step, _ = cmd.Flags().GetInt("step")
			}
			if cmd.Flags().Changed("runs") {
				cfg.Bench.Runs, _ = cmd.Flags().GetInt("runs")
			}
			if cmd.Flags().Changed("days") {
				cfg.Bench.Days, _ = cmd.Flags().GetInt("days")
			}

			bc, err := cfg.ToBench()
			if err != nil {
				return err
			}

			results, err := bench.Sweep(bc)
			if err != nil {
				return err
			}

			for _, r := range results {
				fmt.Fprintln(os.Stdout, r.String())
			}

			if cfg.Database != "" {
				db, err := persistence.Open(cfg.Database)
				if err != nil {
					return err
				}
				defer db.Close()

				rows := make([]persistence.BenchRow, len(results))
				for i, r := range results {
					rows[i] = persistence.BenchRow{
						BenchID:  r.BenchID,
						Agents:   r.Agents,
						Policy:   r.Policy.String(),
						Runs:     r.Runs,
						MeanMS:   r.MeanMS,
						StddevMS: r.StddevMS,
						MeanM1:   r.MeanM1,
					}
				}
				if err := db.SaveBench(rows); err != nil {
					return fmt.Errorf("save bench: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().Int("max-agents", 100, "Largest population in the sweep")
	cmd.Flags().Int("step", 20, "Population increment between cells")
	cmd.Flags().Int("runs", 3, "Repetitions per cell")
	cmd.Flags().Int("days", 30, "Days per run")
	return cmd
}
