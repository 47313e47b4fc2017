package batch

import (
	"errors"
	"testing"

	"github.com/talgya/housesim/internal/engine"
	"github.com/talgya/housesim/internal/housing"
	"github.com/talgya/housesim/internal/metrics"
)

func baseConfig() engine.RunConfig {
	return engine.RunConfig{
		Agents: 6,
		Houses: 6,
		Days:   10,
	}
}

func TestBatchAcrossSeeds(t *testing.T) {
	cfg := Config{
		Base:     baseConfig(),
		Seeds:    []int64{1, 2, 3},
		Policies: []housing.Policy{housing.Exclusive, housing.Shared},
		Score:    metrics.ScoreFinal,
	}

	res, err := Run(cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Scores) != 6 {
		t.Fatalf("expected 6 scores, got %d", len(res.Scores))
	}
	// Policy-major, seed order within.
	want := []struct {
		seed   int64
		policy housing.Policy
	}{
		{1, housing.Exclusive}, {2, housing.Exclusive}, {3, housing.Exclusive},
		{1, housing.Shared}, {2, housing.Shared}, {3, housing.Shared},
	}
	for i, w := range want {
		if res.Scores[i].Seed != w.seed || res.Scores[i].Policy != w.policy {
			t.Fatalf("score %d: got (%d, %s), want (%d, %s)",
				i, res.Scores[i].Seed, res.Scores[i].Policy, w.seed, w.policy)
		}
	}

	if len(res.Aggregates) != 2 {
		t.Fatalf("expected 2 aggregates, got %d", len(res.Aggregates))
	}
	for _, agg := range res.Aggregates {
		if agg.Seeds != 3 {
			t.Fatalf("policy %s aggregates %d seeds, want 3", agg.Policy, agg.Seeds)
		}
		if agg.Min > agg.Mean || agg.Mean > agg.Max {
			t.Fatalf("policy %s: min %v mean %v max %v out of order", agg.Policy, agg.Min, agg.Mean, agg.Max)
		}
	}
}

func TestBatchMatchesSequentialRuns(t *testing.T) {
	cfg := Config{
		Base:     baseConfig(),
		Seeds:    []int64{7, 8},
		Policies: []housing.Policy{housing.Shared},
		Score:    metrics.ScoreFinal,
		Workers:  2,
	}

	res, err := Run(cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, sc := range res.Scores {
		rc := baseConfig()
		rc.RunID = "sequential"
		rc.Seed = sc.Seed
		rc.Policy = housing.Shared

		run, err := engine.NewRun(rc)
		if err != nil {
			t.Fatalf("NewRun: %v", err)
		}
		single, err := run.Execute()
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if single.FinalM1 != sc.Score {
			t.Fatalf("seed %d: batch score %v, sequential %v", sc.Seed, sc.Score, single.FinalM1)
		}
	}
}

func TestBatchMeanTailScore(t *testing.T) {
	cfg := Config{
		Base:     baseConfig(),
		Seeds:    []int64{1},
		Policies: []housing.Policy{housing.Shared},
		Score:    metrics.ScoreMeanTail,
		Tail:     5,
	}

	res, err := Run(cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s := res.Scores[0].Score; s < 0 || s > 1 {
		t.Fatalf("mean-tail score %v outside [0, 1]", s)
	}
}

func TestBatchRejectsEmptySeeds(t *testing.T) {
	if _, err := Run(Config{Base: baseConfig()}); !errors.Is(err, engine.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestBatchRejectsBadBase(t *testing.T) {
	cfg := Config{
		Base:  engine.RunConfig{Agents: 0, Houses: 1, Days: 1},
		Seeds: []int64{1},
	}
	if _, err := Run(cfg); !errors.Is(err, engine.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
