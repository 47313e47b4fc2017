// Package config provides unified configuration loading for housesim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/talgya/housesim/internal/agents"
	"github.com/talgya/housesim/internal/annealing"
	"github.com/talgya/housesim/internal/batch"
	"github.com/talgya/housesim/internal/bench"
	"github.com/talgya/housesim/internal/engine"
	"github.com/talgya/housesim/internal/housing"
	"github.com/talgya/housesim/internal/metrics"
)

// Config contains all housesim configuration settings. Enumerated options
// are carried as strings and parsed when a section is turned into its
// typed counterpart.
type Config struct {
	// Run configures single simulation runs.
	Run RunSection `json:"run" yaml:"run"`

	// Bench configures the benchmark sweep.
	Bench BenchSection `json:"bench" yaml:"bench"`

	// Batch configures cross-seed batches.
	Batch BatchSection `json:"batch" yaml:"batch"`

	// Database is the SQLite path for stored results. Empty disables
	// persistence.
	Database string `json:"database,omitempty" yaml:"database,omitempty"`

	// Logging configures log verbosity: "info" (default) or "debug".
	Logging LoggingSection `json:"logging" yaml:"logging"`
}

// LoggingSection configures housesim's logging behavior.
type LoggingSection struct {
	Level string `json:"level" yaml:"level"`
}

// RunSection holds the parameters of a single run.
type RunSection struct {
	Seed   int64 `json:"seed" yaml:"seed"`
	Agents int   `json:"agents" yaml:"agents"`
	Houses int   `json:"houses" yaml:"houses"`
	Days   int   `json:"days" yaml:"days"`

	// Share selects the share policy: "none" or "meet".
	Share string `json:"share" yaml:"share"`

	// Capacity overrides per-house capacity under "meet". 0 derives a
	// default from the population size.
	Capacity int `json:"capacity,omitempty" yaml:"capacity,omitempty"`

	Noise float64 `json:"noise" yaml:"noise"`

	// NoiseModel is "gaussian" or "simplex".
	NoiseModel string `json:"noise_model,omitempty" yaml:"noise_model,omitempty"`

	// NoiseTarget is "utility", "proposal", or "both".
	NoiseTarget string `json:"noise_target,omitempty" yaml:"noise_target,omitempty"`

	// Sampling is "per_day", "final", or "off".
	Sampling string `json:"sampling,omitempty" yaml:"sampling,omitempty"`

	ProposalsPerDay int     `json:"proposals_per_day,omitempty" yaml:"proposals_per_day,omitempty"`
	TempStart       float64 `json:"temp_start,omitempty" yaml:"temp_start,omitempty"`
	TempDecay       float64 `json:"temp_decay,omitempty" yaml:"temp_decay,omitempty"`
	TempFloor       float64 `json:"temp_floor,omitempty" yaml:"temp_floor,omitempty"`
	CompatWeight    float64 `json:"compat_weight,omitempty" yaml:"compat_weight,omitempty"`

	Verbose bool `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// BenchSection holds the benchmark sweep parameters.
type BenchSection struct {
	MaxAgents  int     `json:"max_agents" yaml:"max_agents"`
	Step       int     `json:"step" yaml:"step"`
	Runs       int     `json:"runs" yaml:"runs"`
	Days       int     `json:"days" yaml:"days"`
	HouseRatio float64 `json:"house_ratio,omitempty" yaml:"house_ratio,omitempty"`
	Seed       int64   `json:"seed" yaml:"seed"`
	Noise      float64 `json:"noise" yaml:"noise"`
}

// BatchSection holds the cross-seed batch parameters.
type BatchSection struct {
	Seeds []int64 `json:"seeds" yaml:"seeds"`

	// Score is "final" or "mean_tail".
	Score string `json:"score,omitempty" yaml:"score,omitempty"`
	Tail  int    `json:"tail,omitempty" yaml:"tail,omitempty"`

	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Run: RunSection{
			Seed:        1,
			Agents:      20,
			Houses:      10,
			Days:        50,
			Share:       "none",
			Noise:       0,
			NoiseModel:  "gaussian",
			NoiseTarget: "utility",
			Sampling:    "per_day",
		},
		Bench: BenchSection{
			MaxAgents: 100,
			Step:      20,
			Runs:      3,
			Days:      30,
			Seed:      1,
		},
		Batch: BatchSection{
			Seeds: []int64{1, 2, 3, 4, 5},
			Score: "final",
			Tail:  10,
		},
		Logging: LoggingSection{Level: "info"},
	}
}

// Load loads configuration: defaults, then the given YAML file (if any),
// then environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.Database = os.ExpandEnv(cfg.Database)
	return cfg, nil
}

// ToRun converts the run section into a validated engine configuration.
func (c *Config) ToRun() (engine.RunConfig, error) {
	r := c.Run

	policy, err := housing.ParsePolicy(r.Share)
	if err != nil {
		return engine.RunConfig{}, err
	}
	model, err := agents.ParseNoiseModel(orDefault(r.NoiseModel, "gaussian"))
	if err != nil {
		return engine.RunConfig{}, err
	}
	target, err := agents.ParseNoiseTarget(orDefault(r.NoiseTarget, "utility"))
	if err != nil {
		return engine.RunConfig{}, err
	}
	sampling, err := annealing.ParseSamplingMode(orDefault(r.Sampling, "per_day"))
	if err != nil {
		return engine.RunConfig{}, err
	}

	rc := engine.RunConfig{
		Seed:            r.Seed,
		Agents:          r.Agents,
		Houses:          r.Houses,
		Days:            r.Days,
		Policy:          policy,
		Capacity:        r.Capacity,
		NoiseLevel:      r.Noise,
		NoiseModel:      model,
		NoiseTarget:     target,
		Sampling:        sampling,
		ProposalsPerDay: r.ProposalsPerDay,
		TempStart:       r.TempStart,
		TempDecay:       r.TempDecay,
		TempFloor:       r.TempFloor,
		CompatWeight:    r.CompatWeight,
		Verbose:         r.Verbose,
	}
	if err := rc.Validate(); err != nil {
		return engine.RunConfig{}, err
	}
	return rc, nil
}

// ToBench converts the bench section into a validated sweep configuration.
func (c *Config) ToBench() (bench.Config, error) {
	bc := bench.Config{
		MaxAgents:  c.Bench.MaxAgents,
		Step:       c.Bench.Step,
		Runs:       c.Bench.Runs,
		Days:       c.Bench.Days,
		HouseRatio: c.Bench.HouseRatio,
		Seed:       c.Bench.Seed,
		NoiseLevel: c.Bench.Noise,
	}
	if err := bc.Validate(); err != nil {
		return bench.Config{}, err
	}
	return bc, nil
}

// ToBatch converts the batch section, reusing the run section as the base
// scenario. The batch replays it across seeds and both policies.
func (c *Config) ToBatch() (batch.Config, error) {
	base, err := c.ToRun()
	if err != nil {
		return batch.Config{}, err
	}
	mode, err := metrics.ParseScoreMode(orDefault(c.Batch.Score, "final"))
	if err != nil {
		return batch.Config{}, err
	}
	return batch.Config{
		Base:     base,
		Seeds:    c.Batch.Seeds,
		Policies: []housing.Policy{housing.Exclusive, housing.Shared},
		Score:    mode,
		Tail:     c.Batch.Tail,
		Workers:  c.Batch.Workers,
	}, nil
}

// Validate checks the cross-cutting settings.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"": true, "info": true, "debug": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, or empty for default)", c.Logging.Level)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HOUSESIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Run.Seed = n
		}
	}
	if v := os.Getenv("HOUSESIM_AGENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Run.Agents = n
		}
	}
	if v := os.Getenv("HOUSESIM_HOUSES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Run.Houses = n
		}
	}
	if v := os.Getenv("HOUSESIM_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Run.Days = n
		}
	}
	if v := os.Getenv("HOUSESIM_SHARE"); v != "" {
		cfg.Run.Share = v
	}
	if v := os.Getenv("HOUSESIM_NOISE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Run.Noise = f
		}
	}
	if v := os.Getenv("HOUSESIM_DB"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("HOUSESIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
