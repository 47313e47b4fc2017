package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/housesim/internal/batch"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run the scenario across many seeds and compare policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg)

			if cmd.Flags().Changed("seeds") {
				seeds, _ := cmd.Flags().GetInt64Slice("seeds")
				cfg.Batch.Seeds = seeds
			}
			if cmd.Flags().Changed("workers") {
				cfg.Batch.Workers, _ = cmd.Flags().GetInt("workers")
			}
			if cmd.Flags().Changed("score") {
				cfg.Batch.Score, _ = cmd.Flags().GetString("score")
			}

			bc, err := cfg.ToBatch()
			if err != nil {
				return err
			}

			res, err := batch.Run(bc)
			if err != nil {
				return err
			}

			for _, agg := range res.Aggregates {
				fmt.Fprintf(os.Stdout, "policy=%s seeds=%d mean=%.4f stddev=%.4f min=%.4f max=%.4f\n",
					agg.Policy, agg.Seeds, agg.Mean, agg.Stddev, agg.Min, agg.Max)
			}
			fmt.Fprintf(os.Stdout, "batch complete: %d runs in %s\n", len(res.Scores), res.Elapsed)
			return nil
		},
	}

	addRunFlags(cmd)
	cmd.Flags().Int64Slice("seeds", nil, "Seeds to replay the scenario over")
	cmd.Flags().Int("workers", 0, "Concurrent runs (0 = unbounded)")
	cmd.Flags().String("score", "", "Score reduction: final or mean_tail")
	return cmd
}
