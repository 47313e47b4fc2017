package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/talgya/housesim/internal/agents"
	"github.com/talgya/housesim/internal/annealing"
	"github.com/talgya/housesim/internal/housing"
	"github.com/talgya/housesim/internal/metrics"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	rc, err := cfg.ToRun()
	if err != nil {
		t.Fatalf("ToRun: %v", err)
	}
	if rc.Agents != 20 || rc.Houses != 10 || rc.Days != 50 {
		t.Fatalf("unexpected run defaults: %+v", rc)
	}
	if rc.Policy != housing.Exclusive {
		t.Fatalf("default share policy: got %s", rc.Policy)
	}
	if rc.Sampling != annealing.SamplingPerDay {
		t.Fatalf("default sampling: got %s", rc.Sampling)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
run:
  seed: 42
  agents: 12
  houses: 4
  days: 25
  share: meet
  noise: 0.3
  noise_model: simplex
  noise_target: both
  sampling: final
bench:
  max_agents: 40
  step: 10
  runs: 2
  days: 15
  seed: 7
batch:
  seeds: [10, 11]
  score: mean_tail
  tail: 5
database: /tmp/results.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	rc, err := cfg.ToRun()
	if err != nil {
		t.Fatalf("ToRun: %v", err)
	}
	if rc.Seed != 42 || rc.Agents != 12 || rc.Houses != 4 || rc.Days != 25 {
		t.Fatalf("run section not applied: %+v", rc)
	}
	if rc.Policy != housing.Shared {
		t.Fatalf("share: got %s, want meet", rc.Policy)
	}
	if rc.NoiseModel != agents.NoiseSimplex || rc.NoiseTarget != agents.NoiseBoth {
		t.Fatalf("noise options not applied: model %s target %s", rc.NoiseModel, rc.NoiseTarget)
	}
	if rc.Sampling != annealing.SamplingFinal {
		t.Fatalf("sampling: got %s, want final", rc.Sampling)
	}

	bc, err := cfg.ToBench()
	if err != nil {
		t.Fatalf("ToBench: %v", err)
	}
	if bc.MaxAgents != 40 || bc.Step != 10 || bc.Runs != 2 || bc.Seed != 7 {
		t.Fatalf("bench section not applied: %+v", bc)
	}

	bt, err := cfg.ToBatch()
	if err != nil {
		t.Fatalf("ToBatch: %v", err)
	}
	if len(bt.Seeds) != 2 || bt.Seeds[0] != 10 {
		t.Fatalf("batch seeds not applied: %v", bt.Seeds)
	}
	if bt.Score != metrics.ScoreMeanTail || bt.Tail != 5 {
		t.Fatalf("batch score not applied: %v tail %d", bt.Score, bt.Tail)
	}

	if cfg.Database != "/tmp/results.db" {
		t.Fatalf("database path not applied: %q", cfg.Database)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOUSESIM_AGENTS", "33")
	t.Setenv("HOUSESIM_SHARE", "meet")
	t.Setenv("HOUSESIM_NOISE", "0.7")
	t.Setenv("HOUSESIM_DB", "/tmp/env.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rc, err := cfg.ToRun()
	if err != nil {
		t.Fatalf("ToRun: %v", err)
	}
	if rc.Agents != 33 || rc.Policy != housing.Shared || rc.NoiseLevel != 0.7 {
		t.Fatalf("env overrides not applied: %+v", rc)
	}
	if cfg.Database != "/tmp/env.db" {
		t.Fatalf("HOUSESIM_DB not applied: %q", cfg.Database)
	}
}

func TestInvalidShare(t *testing.T) {
	path := writeConfig(t, "run:\n  share: communal\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := cfg.ToRun(); err == nil {
		t.Fatal("expected an error for an unknown share policy")
	}
}

func TestInvalidSampling(t *testing.T) {
	path := writeConfig(t, "run:\n  sampling: hourly\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := cfg.ToRun(); err == nil {
		t.Fatal("expected an error for an unknown sampling mode")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestValidateLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "debug"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("debug level rejected: %v", err)
	}
	cfg.Logging.Level = "trace"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an unknown log level")
	}
}
