// Package batch runs the same scenario across many seeds, in parallel, and
// aggregates the per-seed scores by share policy.
package batch

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/talgya/housesim/internal/engine"
	"github.com/talgya/housesim/internal/housing"
	"github.com/talgya/housesim/internal/metrics"
)

// Config describes one batch: a base run configuration replayed over Seeds
// for each policy in Policies.
type Config struct {
	Base  engine.RunConfig
	Seeds []int64

	Policies []housing.Policy

	// Score selects how a run's snapshot series reduces to one number.
	Score metrics.ScoreMode
	// Tail is the window size for the mean-tail score mode.
	Tail int

	// Workers caps concurrent runs. 0 means one worker per run.
	Workers int
}

// SeedScore is one completed run inside a batch.
type SeedScore struct {
	Seed   int64
	Policy housing.Policy
	Score  float64
}

// PolicyAggregate summarizes all seeds of one policy.
type PolicyAggregate struct {
	Policy housing.Policy
	Seeds  int
	Mean   float64
	Stddev float64
	Min    float64
	Max    float64
}

// Result is the outcome of a batch.
type Result struct {
	Scores     []SeedScore
	Aggregates []PolicyAggregate
	Elapsed    time.Duration
}

// Run executes the whole batch. Each run owns its state, so runs proceed
// fully in parallel; results are ordered by policy then seed regardless of
// completion order.
func Run(cfg Config) (*Result, error) {
	if len(cfg.Seeds) == 0 {
		return nil, fmt.Errorf("%w: batch needs at least one seed", engine.ErrInvalidConfig)
	}
	policies := cfg.Policies
	if len(policies) == 0 {
		policies = []housing.Policy{cfg.Base.Policy}
	}

	type job struct {
		seed   int64
		policy housing.Policy
	}
	jobs := make([]job, 0, len(cfg.Seeds)*len(policies))
	for _, p := range policies {
		for _, s := range cfg.Seeds {
			jobs = append(jobs, job{seed: s, policy: p})
		}
	}

	// Validate once up front so a bad config never launches workers.
	probe := cfg.Base
	probe.Seed = jobs[0].seed
	probe.Policy = jobs[0].policy
	if err := probe.Validate(); err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers <= 0 || workers > len(jobs) {
		workers = len(jobs)
	}

	slog.Info("batch starting",
		"seeds", len(cfg.Seeds),
		"policies", len(policies),
		"runs", len(jobs),
		"workers", workers,
	)
	start := time.Now()

	scores := make([]SeedScore, len(jobs))
	errs := make([]error, len(jobs))
	work := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				j := jobs[i]
				rc := cfg.Base
				rc.RunID = fmt.Sprintf("batch-%s-seed%d", j.policy, j.seed)
				rc.Seed = j.seed
				rc.Policy = j.policy

				run, err := engine.NewRun(rc)
				if err != nil {
					errs[i] = err
					continue
				}
				res, err := run.Execute()
				if err != nil {
					errs[i] = err
					continue
				}
				scores[i] = SeedScore{
					Seed:   j.seed,
					Policy: j.policy,
					Score:  metrics.Score(res.Snapshots, cfg.Score, cfg.Tail),
				}
			}
		}()
	}
	for i := range jobs {
		work <- i
	}
	close(work)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("batch run failed: %w", err)
		}
	}

	out := &Result{
		Scores:     scores,
		Aggregates: aggregate(scores, policies),
		Elapsed:    time.Since(start),
	}
	for _, agg := range out.Aggregates {
		slog.Info("batch policy summary",
			"policy", agg.Policy.String(),
			"seeds", agg.Seeds,
			"mean", fmt.Sprintf("%.4f", agg.Mean),
			"stddev", fmt.Sprintf("%.4f", agg.Stddev),
		)
	}
	return out, nil
}

func aggregate(scores []SeedScore, policies []housing.Policy) []PolicyAggregate {
	byPolicy := make(map[housing.Policy][]float64)
	for _, s := range scores {
		byPolicy[s.Policy] = append(byPolicy[s.Policy], s.Score)
	}

	aggs := make([]PolicyAggregate, 0, len(policies))
	for _, p := range policies {
		vals := byPolicy[p]
		if len(vals) == 0 {
			continue
		}
		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)
		aggs = append(aggs, PolicyAggregate{
			Policy: p,
			Seeds:  len(vals),
			Mean:   metrics.Mean(vals),
			Stddev: metrics.Stddev(vals),
			Min:    sorted[0],
			Max:    sorted[len(sorted)-1],
		})
	}
	return aggs
}
