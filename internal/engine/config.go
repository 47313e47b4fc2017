// Package engine provides the run configuration and the day-by-day
// simulation clock that drives agents, optimizer, and metric collection.
package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/talgya/housesim/internal/agents"
	"github.com/talgya/housesim/internal/annealing"
	"github.com/talgya/housesim/internal/housing"
)

// ErrInvalidConfig reports a configuration a run must never start with.
var ErrInvalidConfig = errors.New("invalid run configuration")

// Default optimizer parameters. A zero value in RunConfig picks these up.
const (
	DefaultTempStart    = 1.0
	DefaultTempDecay    = 0.95
	DefaultCompatWeight = 0.5
)

// RunConfig is the explicit identity and parameter record of a single run.
// It replaces filename-encoded run identity: every snapshot carries the
// RunID, and a config can be compared, stored, and replayed as data.
type RunConfig struct {
	RunID string `yaml:"run_id" json:"run_id"`
	Seed  int64  `yaml:"seed" json:"seed"`

	Agents int `yaml:"agents" json:"agents"`
	Houses int `yaml:"houses" json:"houses"`
	Days   int `yaml:"days" json:"days"`

	Policy housing.Policy `yaml:"-" json:"-"`

	// Capacity overrides the per-house capacity under Shared. 0 derives
	// a default from the population size. Ignored under Exclusive.
	Capacity int `yaml:"capacity" json:"capacity,omitempty"`

	NoiseLevel  float64            `yaml:"noise" json:"noise"`
	NoiseModel  agents.NoiseModel  `yaml:"-" json:"-"`
	NoiseTarget agents.NoiseTarget `yaml:"-" json:"-"`

	Sampling        annealing.SamplingMode `yaml:"-" json:"-"`
	ProposalsPerDay int                    `yaml:"proposals_per_day" json:"proposals_per_day,omitempty"`

	TempStart float64 `yaml:"temp_start" json:"temp_start,omitempty"`
	TempDecay float64 `yaml:"temp_decay" json:"temp_decay,omitempty"`
	TempFloor float64 `yaml:"temp_floor" json:"temp_floor,omitempty"`

	CompatWeight float64 `yaml:"compat_weight" json:"compat_weight,omitempty"`

	// Verbose enables the per-agent-per-day trace.
	Verbose bool `yaml:"verbose" json:"verbose,omitempty"`
}

// Validate checks the configuration. A failing config surfaces immediately;
// the run never starts.
func (c RunConfig) Validate() error {
	if c.Agents <= 0 {
		return fmt.Errorf("%w: agents must be positive, got %d", ErrInvalidConfig, c.Agents)
	}
	if c.Houses <= 0 {
		return fmt.Errorf("%w: houses must be positive, got %d", ErrInvalidConfig, c.Houses)
	}
	if c.Days <= 0 {
		return fmt.Errorf("%w: days must be positive, got %d", ErrInvalidConfig, c.Days)
	}
	if c.NoiseLevel < 0 {
		return fmt.Errorf("%w: noise level must be >= 0, got %v", ErrInvalidConfig, c.NoiseLevel)
	}
	if c.TempFloor < 0 {
		return fmt.Errorf("%w: temperature floor must be >= 0, got %v", ErrInvalidConfig, c.TempFloor)
	}
	if c.TempDecay != 0 && (c.TempDecay <= 0 || c.TempDecay > 1) {
		return fmt.Errorf("%w: temperature decay must be in (0, 1], got %v", ErrInvalidConfig, c.TempDecay)
	}
	if c.Capacity != 0 && c.Policy == housing.Shared && c.Capacity < 2 {
		return fmt.Errorf("%w: shared capacity must be >= 2, got %d", ErrInvalidConfig, c.Capacity)
	}
	return nil
}

// WithDefaults returns a copy with unset fields filled: a fresh RunID, the
// default proposal budget, and the default temperature schedule.
func (c RunConfig) WithDefaults() RunConfig {
	out := c
	if out.RunID == "" {
		out.RunID = uuid.NewString()
	}
	if out.ProposalsPerDay == 0 {
		out.ProposalsPerDay = defaultProposals(out.Agents, out.Houses)
	}
	if out.TempStart == 0 {
		out.TempStart = DefaultTempStart
	}
	if out.TempDecay == 0 {
		out.TempDecay = DefaultTempDecay
	}
	if out.CompatWeight == 0 {
		out.CompatWeight = DefaultCompatWeight
	}
	if out.Capacity == 0 {
		out.Capacity = out.Policy.DefaultCapacity(out.Agents, out.Houses)
	}
	return out
}

// defaultProposals sizes the daily proposal budget so every agent sees a
// handful of move opportunities per day regardless of scale.
func defaultProposals(agents, houses int) int {
	n := agents
	if houses > n {
		n = houses
	}
	return n * 8
}

// Schedule builds the cooling schedule described by the config.
func (c RunConfig) Schedule() annealing.Schedule {
	return annealing.GeometricSchedule{
		Start: c.TempStart,
		Decay: c.TempDecay,
		Floor: c.TempFloor,
	}
}
