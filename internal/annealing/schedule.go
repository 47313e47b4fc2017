// Package annealing provides the simulated-annealing optimizer that searches
// the housing assignment space: random proposals, Metropolis acceptance, a
// cooling schedule, and best-assignment tracking.
package annealing

import (
	"fmt"
	"math"
)

// Schedule provides the temperature for a simulated day. Implementations
// must be monotonic non-increasing in day and never return a negative value.
type Schedule interface {
	Temperature(day int) float64
}

// GeometricSchedule decays temperature as Start·Decay^day, clamped at Floor.
type GeometricSchedule struct {
	Start float64 // initial temperature, > 0
	Decay float64 // per-day factor in (0, 1]
	Floor float64 // lowest temperature, >= 0
}

// Temperature implements Schedule.
func (g GeometricSchedule) Temperature(day int) float64 {
	t := g.Start * math.Pow(g.Decay, float64(day))
	if t < g.Floor {
		return g.Floor
	}
	return t
}

// Validate checks the schedule parameters.
func (g GeometricSchedule) Validate() error {
	if g.Start <= 0 {
		return fmt.Errorf("geometric schedule start must be > 0, got %v", g.Start)
	}
	if g.Decay <= 0 || g.Decay > 1 {
		return fmt.Errorf("geometric schedule decay must be in (0, 1], got %v", g.Decay)
	}
	if g.Floor < 0 {
		return fmt.Errorf("geometric schedule floor must be >= 0, got %v", g.Floor)
	}
	return nil
}

// LinearSchedule cools from Start to End across Days days, holding at End
// afterwards.
type LinearSchedule struct {
	Start float64
	End   float64
	Days  int
}

// Temperature implements Schedule.
func (l LinearSchedule) Temperature(day int) float64 {
	if l.Days <= 1 || day >= l.Days-1 {
		return l.End
	}
	frac := float64(day) / float64(l.Days-1)
	return l.Start + frac*(l.End-l.Start)
}

// SamplingMode states when the optimizer runs during a simulation. It is an
// explicit enum rather than an overloaded numeric flag.
type SamplingMode uint8

const (
	// SamplingPerDay runs the full proposal budget every simulated day.
	SamplingPerDay SamplingMode = iota
	// SamplingFinal restricts the optimizer to a single end-of-run pass.
	SamplingFinal
	// SamplingOff disables the optimizer; agents keep their initial
	// assignment for the whole run.
	SamplingOff
)

// ParseSamplingMode maps "per_day", "final" and "off" to a mode.
func ParseSamplingMode(s string) (SamplingMode, error) {
	switch s {
	case "", "per_day":
		return SamplingPerDay, nil
	case "final":
		return SamplingFinal, nil
	case "off":
		return SamplingOff, nil
	default:
		return 0, fmt.Errorf("invalid sampling mode %q (want \"per_day\", \"final\" or \"off\")", s)
	}
}

// String returns the wire name of the mode.
func (m SamplingMode) String() string {
	switch m {
	case SamplingPerDay:
		return "per_day"
	case SamplingFinal:
		return "final"
	case SamplingOff:
		return "off"
	default:
		return fmt.Sprintf("sampling(%d)", uint8(m))
	}
}

// SamplingFromLegacyFlag maps the historical numeric sampling flag onto the
// enum: a positive value samples every day, zero means a single end-of-run
// pass, and a negative value disables the optimizer.
func SamplingFromLegacyFlag(n int) SamplingMode {
	switch {
	case n > 0:
		return SamplingPerDay
	case n == 0:
		return SamplingFinal
	default:
		return SamplingOff
	}
}
