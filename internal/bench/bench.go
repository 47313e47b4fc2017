// Package bench measures simulation wall-clock cost and solution quality
// across a sweep of population sizes and share policies.
package bench

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/housesim/internal/engine"
	"github.com/talgya/housesim/internal/housing"
	"github.com/talgya/housesim/internal/metrics"
)

// Config describes one benchmark sweep: agent counts Step, 2*Step, ... up
// to MaxAgents, each repeated Runs times per policy.
type Config struct {
	MaxAgents int `yaml:"max_agents" json:"max_agents"`
	Step      int `yaml:"step" json:"step"`
	Runs      int `yaml:"runs" json:"runs"`
	Days      int `yaml:"days" json:"days"`

	// HouseRatio sets houses as a fraction of agents. 0 means one house
	// per agent.
	HouseRatio float64 `yaml:"house_ratio" json:"house_ratio,omitempty"`

	Seed       int64   `yaml:"seed" json:"seed"`
	NoiseLevel float64 `yaml:"noise" json:"noise"`

	Policies []housing.Policy `yaml:"-" json:"-"`
}

// Validate checks the sweep parameters.
func (c Config) Validate() error {
	if c.MaxAgents <= 0 {
		return fmt.Errorf("%w: max_agents must be positive, got %d", engine.ErrInvalidConfig, c.MaxAgents)
	}
	if c.Step <= 0 || c.Step > c.MaxAgents {
		return fmt.Errorf("%w: step must be in [1, max_agents], got %d", engine.ErrInvalidConfig, c.Step)
	}
	if c.Runs <= 0 {
		return fmt.Errorf("%w: runs must be positive, got %d", engine.ErrInvalidConfig, c.Runs)
	}
	if c.Days <= 0 {
		return fmt.Errorf("%w: days must be positive, got %d", engine.ErrInvalidConfig, c.Days)
	}
	if c.HouseRatio < 0 {
		return fmt.Errorf("%w: house_ratio must be >= 0, got %v", engine.ErrInvalidConfig, c.HouseRatio)
	}
	return nil
}

// Result aggregates the repetitions of one (agents, policy) cell.
type Result struct {
	BenchID string
	Agents  int
	Houses  int
	Policy  housing.Policy
	Runs    int

	MeanMS   float64
	StddevMS float64
	MeanM1   float64
	MeanBest float64
}

func (r Result) String() string {
	return fmt.Sprintf("agents=%s policy=%s runs=%d mean=%.2fms stddev=%.2fms m1=%.4f best=%.4f",
		humanize.Comma(int64(r.Agents)), r.Policy, r.Runs, r.MeanMS, r.StddevMS, r.MeanM1, r.MeanBest)
}

// Sweep runs the full benchmark grid sequentially. Wall-clock timing only
// makes sense without concurrent runs competing for cores.
func Sweep(cfg Config) ([]Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policies := cfg.Policies
	if len(policies) == 0 {
		policies = []housing.Policy{housing.Exclusive, housing.Shared}
	}

	benchID := uuid.NewString()
	slog.Info("benchmark sweep starting",
		"bench_id", benchID,
		"max_agents", cfg.MaxAgents,
		"step", cfg.Step,
		"runs", cfg.Runs,
	)

	var results []Result
	for agents := cfg.Step; agents <= cfg.MaxAgents; agents += cfg.Step {
		houses := housesFor(agents, cfg.HouseRatio)
		for _, policy := range policies {
			res, err := cell(cfg, benchID, agents, houses, policy)
			if err != nil {
				return nil, err
			}
			slog.Info("benchmark cell complete", "result", res.String())
			results = append(results, res)
		}
	}
	return results, nil
}

// cell runs the repetitions of one grid cell and aggregates them.
func cell(cfg Config, benchID string, agents, houses int, policy housing.Policy) (Result, error) {
	elapsed := make([]float64, 0, cfg.Runs)
	m1s := make([]float64, 0, cfg.Runs)
	bests := make([]float64, 0, cfg.Runs)

	for rep := 0; rep < cfg.Runs; rep++ {
		rc := engine.RunConfig{
			RunID:      fmt.Sprintf("%s-a%d-%s-r%d", benchID, agents, policy, rep),
			Seed:       cfg.Seed + int64(rep),
			Agents:     agents,
			Houses:     houses,
			Days:       cfg.Days,
			Policy:     policy,
			NoiseLevel: cfg.NoiseLevel,
		}

		run, err := engine.NewRun(rc)
		if err != nil {
			return Result{}, fmt.Errorf("benchmark cell (agents %d, policy %s): %w", agents, policy, err)
		}

		start := time.Now()
		res, err := run.Execute()
		if err != nil {
			return Result{}, err
		}

		elapsed = append(elapsed, float64(time.Since(start).Microseconds())/1000.0)
		m1s = append(m1s, res.FinalM1)
		bests = append(bests, res.BestObjective)
	}

	return Result{
		BenchID:  benchID,
		Agents:   agents,
		Houses:   houses,
		Policy:   policy,
		Runs:     cfg.Runs,
		MeanMS:   metrics.Mean(elapsed),
		StddevMS: metrics.Stddev(elapsed),
		MeanM1:   metrics.Mean(m1s),
		MeanBest: metrics.Mean(bests),
	}, nil
}

func housesFor(agents int, ratio float64) int {
	if ratio == 0 {
		return agents
	}
	h := int(float64(agents)*ratio + 0.5)
	if h < 1 {
		h = 1
	}
	return h
}
