package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/housesim/internal/annealing"
	"github.com/talgya/housesim/internal/engine"
	"github.com/talgya/housesim/internal/persistence"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single simulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg)

			rc, err := cfg.ToRun()
			if err != nil {
				return err
			}
			if n, _ := cmd.Flags().GetInt("sa-sample"); cmd.Flags().Changed("sa-sample") {
				rc.Sampling = annealing.SamplingFromLegacyFlag(n)
			}

			run, err := engine.NewRun(rc)
			if err != nil {
				return err
			}
			res, err := run.Execute()
			if err != nil {
				return err
			}

			if cfg.Database != "" {
				db, err := persistence.Open(cfg.Database)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := db.SaveRun(res); err != nil {
					return fmt.Errorf("save run: %w", err)
				}
			}

			final := res.Snapshots[len(res.Snapshots)-1]
			fmt.Fprintf(os.Stdout, "run %s: days=%d m1=%.4f objective=%.4f best=%.4f elapsed=%s\n",
				res.Config.RunID, len(res.Snapshots), final.M1, final.Objective,
				res.BestObjective, res.Elapsed)
			return nil
		},
	}

	addRunFlags(cmd)
	return cmd
}
