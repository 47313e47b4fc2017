// Package agents provides the agent data model: housing preferences, current
// assignment, and day-by-day utility accumulation.
package agents

import (
	"fmt"

	"github.com/talgya/housesim/internal/housing"
	"github.com/talgya/housesim/internal/rng"
)

// Agent is a unit competing for housing.
type Agent struct {
	ID    int
	Prefs []float64 // static preference per house, in [0, 1)
	House int       // current house index, or housing.Unassigned

	// Accumulated is the running sum of daily attained utility.
	Accumulated float64
}

// Population holds all agents of a single run. Created once per run at
// initialization and destroyed at run end; nothing persists across runs.
type Population struct {
	Agents []*Agent
	houses int

	// maxStaticSum is the sum over agents of their best static preference,
	// the normalizer for the m1 metric.
	maxStaticSum float64
}

// NewPopulation creates n agents with preference vectors drawn from the run
// stream. All agents start unassigned.
func NewPopulation(n, houses int, stream *rng.Stream) *Population {
	p := &Population{
		Agents: make([]*Agent, n),
		houses: houses,
	}
	for i := 0; i < n; i++ {
		prefs := make([]float64, houses)
		best := 0.0
		for h := range prefs {
			prefs[h] = stream.Float64()
			if prefs[h] > best {
				best = prefs[h]
			}
		}
		p.Agents[i] = &Agent{ID: i, Prefs: prefs, House: housing.Unassigned}
		p.maxStaticSum += best
	}
	return p
}

// Houses returns the number of houses agents hold preferences over.
func (p *Population) Houses() int { return p.houses }

// MaxStaticSum returns the best achievable noise-free utility sum, assuming
// every agent could live in its favorite house.
func (p *Population) MaxStaticSum() float64 { return p.maxStaticSum }

// Prefs returns the static preference matrix indexed [agent][house].
func (p *Population) Prefs() [][]float64 {
	out := make([][]float64, len(p.Agents))
	for i, a := range p.Agents {
		out[i] = a.Prefs
	}
	return out
}

// AssignInitial places agents round-robin across houses through the
// registry, respecting capacity. Agents that find no admittable house stay
// unassigned (expected under Exclusive when agents outnumber houses).
func (p *Population) AssignInitial(reg *housing.Registry) error {
	for i, a := range p.Agents {
		home := i % p.houses
		placed := false
		for off := 0; off < p.houses; off++ {
			h := (home + off) % p.houses
			if !reg.CanAdmit(h, a.ID) {
				continue
			}
			if err := reg.Admit(a.ID, h); err != nil {
				return fmt.Errorf("initial assignment of agent %d: %w", a.ID, err)
			}
			a.House = h
			placed = true
			break
		}
		if !placed {
			a.House = housing.Unassigned
		}
	}
	return nil
}

// Utility combines the agent's static preference for a house with a noise
// perturbation (already scaled by the configured level). An unassigned agent
// has utility 0.
func (p *Population) Utility(a *Agent, house int, noise float64) float64 {
	if house == housing.Unassigned {
		return 0
	}
	return a.Prefs[house] + noise
}

// TotalUtility sums per-agent utility under the current assignment, using
// the given noise field for per-agent perturbations. A nil field means
// noise-free static utility.
func (p *Population) TotalUtility(field *Field) float64 {
	total := 0.0
	for _, a := range p.Agents {
		total += p.Utility(a, a.House, field.Sample(a.ID, a.House))
	}
	return total
}

// StaticUtility sums noise-free utility under the current assignment.
func (p *Population) StaticUtility() float64 {
	total := 0.0
	for _, a := range p.Agents {
		total += p.Utility(a, a.House, 0)
	}
	return total
}

// Accumulate adds the day's attained noise-free utility to every agent and
// returns the day's total.
func (p *Population) Accumulate() float64 {
	total := 0.0
	for _, a := range p.Agents {
		u := p.Utility(a, a.House, 0)
		a.Accumulated += u
		total += u
	}
	return total
}

// SyncFrom aligns every agent's House field with the registry. Used after
// the registry is restored to a recorded assignment.
func (p *Population) SyncFrom(reg *housing.Registry) {
	for _, a := range p.Agents {
		a.House = reg.HouseOf(a.ID)
	}
}
