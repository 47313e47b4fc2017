package main

import (
	"github.com/spf13/cobra"

	"github.com/talgya/housesim/internal/config"
)

// addRunFlags registers the scenario flags shared by run and batch.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("seed", 1, "Random seed")
	cmd.Flags().Int("agents", 20, "Number of agents")
	cmd.Flags().Int("houses", 10, "Number of houses")
	cmd.Flags().Int("days", 50, "Number of simulated days")
	cmd.Flags().String("share", "none", "Share policy: none or meet")
	cmd.Flags().Int("capacity", 0, "Per-house capacity under meet (0 = derived)")
	cmd.Flags().Float64("noise", 0, "Noise level")
	cmd.Flags().String("noise-model", "", "Noise model: gaussian or simplex")
	cmd.Flags().String("noise-target", "", "Noise target: utility, proposal, or both")
	cmd.Flags().Int("sa-sample", 1, "Legacy sampling flag: >0 per-day, 0 final-only, <0 off")
	cmd.Flags().Bool("verbose", false, "Record a per-agent daily trace")
}

// applyRunFlags copies explicitly set scenario flags over the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("seed") {
		cfg.Run.Seed, _ = cmd.Flags().GetInt64("seed")
	}
	if cmd.Flags().Changed("agents") {
		cfg.Run.Agents, _ = cmd.Flags().GetInt("agents")
	}
	if cmd.Flags().Changed("houses") {
		cfg.Run.Houses, _ = cmd.Flags().GetInt("houses")
	}
	if cmd.Flags().Changed("days") {
		cfg.Run.Days, _ = cmd.Flags().GetInt("days")
	}
	if cmd.Flags().Changed("share") {
		cfg.Run.Share, _ = cmd.Flags().GetString("share")
	}
	if cmd.Flags().Changed("capacity") {
		cfg.Run.Capacity, _ = cmd.Flags().GetInt("capacity")
	}
	if cmd.Flags().Changed("noise") {
		cfg.Run.Noise, _ = cmd.Flags().GetFloat64("noise")
	}
	if cmd.Flags().Changed("noise-model") {
		cfg.Run.NoiseModel, _ = cmd.Flags().GetString("noise-model")
	}
	if cmd.Flags().Changed("noise-target") {
		cfg.Run.NoiseTarget, _ = cmd.Flags().GetString("noise-target")
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Run.Verbose, _ = cmd.Flags().GetBool("verbose")
	}
}
