package annealing

import (
	"fmt"
	"math"

	"github.com/talgya/housesim/internal/agents"
	"github.com/talgya/housesim/internal/housing"
	"github.com/talgya/housesim/internal/rng"
)

// maxProposalRetries bounds the re-propose loop when a drawn move is not
// admissible. Exhausting the retries counts as a stall, never an error.
const maxProposalRetries = 8

// Config holds the optimizer parameters for one run.
type Config struct {
	// ProposalsPerDay is the number of proposal attempts per pass.
	ProposalsPerDay int

	// Schedule provides the per-day temperature.
	Schedule Schedule

	// CompatWeight scales the compatibility term of the objective under
	// the Shared policy. Ignored under Exclusive.
	CompatWeight float64

	// ProposalNoiseLevel > 0 perturbs the candidate-house distribution
	// instead of drawing uniformly. 0 keeps proposals uniform.
	ProposalNoiseLevel float64
}

// PassStats summarizes one optimizer pass.
type PassStats struct {
	Day       int
	Proposals int
	Accepted  int
	Uphill    int // accepted objective-decreasing moves
	Swaps     int
	Stalls    int // proposals abandoned after retry exhaustion

	Temperature   float64
	Objective     float64 // objective after the pass
	BestObjective float64
}

// AcceptanceRate returns accepted/proposals, 0 for an empty pass.
func (s PassStats) AcceptanceRate() float64 {
	if s.Proposals == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(s.Proposals)
}

// Optimizer searches reassignments of agents to houses to improve the
// global objective. It owns no randomness beyond the stream it is handed
// and keeps no hidden state: the objective is recomputable from the
// registry, the preference matrix, and the day's noise field.
type Optimizer struct {
	cfg    Config
	reg    *housing.Registry
	pop    *agents.Population
	stream *rng.Stream
	prefs  [][]float64

	temp    float64
	best    map[int]int
	bestObj float64
	started bool
}

// New creates an optimizer over the given registry and population.
func New(cfg Config, reg *housing.Registry, pop *agents.Population, stream *rng.Stream) (*Optimizer, error) {
	if cfg.ProposalsPerDay <= 0 {
		return nil, fmt.Errorf("optimizer needs a positive proposal budget, got %d", cfg.ProposalsPerDay)
	}
	if cfg.Schedule == nil {
		return nil, fmt.Errorf("optimizer needs a cooling schedule")
	}
	return &Optimizer{
		cfg:    cfg,
		reg:    reg,
		pop:    pop,
		stream: stream,
		prefs:  pop.Prefs(),
		temp:   cfg.Schedule.Temperature(0),
	}, nil
}

// Temperature returns the temperature of the most recent pass.
func (o *Optimizer) Temperature() float64 { return o.temp }

// Best returns the best assignment seen so far and its objective value.
// The map is a copy.
func (o *Optimizer) Best() (map[int]int, float64) {
	out := make(map[int]int, len(o.best))
	for a, h := range o.best {
		out[a] = h
	}
	return out, o.bestObj
}

// BestObjective returns the best objective value seen so far.
func (o *Optimizer) BestObjective() float64 { return o.bestObj }

// Objective computes the full objective from scratch: the sum of agent
// utilities under the current assignment plus, under Shared, the weighted
// compatibility score of every house. field may be nil for noise-free
// evaluation.
func (o *Optimizer) Objective(field *agents.Field) float64 {
	total := o.pop.TotalUtility(field)
	if o.reg.Policy() == housing.Shared {
		for h := 0; h < o.reg.Houses(); h++ {
			total += o.cfg.CompatWeight * o.reg.CompatibilityScore(h, o.prefs)
		}
	}
	return total
}

// move is a single proposed reassignment. swapWith >= 0 means the agent
// trades places with an occupant of the target house.
type move struct {
	agent    int
	from     int // housing.Unassigned allowed
	to       int
	swapWith int // -1 for a plain move
}

// Pass runs one optimization pass for the given day: ProposalsPerDay
// propose/evaluate/accept iterations at the day's temperature. field holds
// the day's utility noise (nil when utility noise is off). The only error
// path is a registry mutation failure, which indicates an optimizer bug and
// must abort the run.
func (o *Optimizer) Pass(day int, field *agents.Field) (PassStats, error) {
	o.temp = o.cfg.Schedule.Temperature(day)

	// The noisy objective moves between days; re-anchor at pass start.
	current := o.Objective(field)
	if !o.started {
		o.best = o.reg.Assignment()
		o.bestObj = current
		o.started = true
	}

	stats := PassStats{Day: day, Temperature: o.temp}

	for i := 0; i < o.cfg.ProposalsPerDay; i++ {
		stats.Proposals++

		m, ok := o.propose()
		if !ok {
			stats.Stalls++
			continue
		}

		delta := o.evaluate(m, field)

		accepted := delta >= 0
		uphill := false
		if !accepted {
			// Metropolis criterion. The draw happens unconditionally so
			// the stream sequence is independent of the temperature.
			p := 0.0
			if o.temp > 0 {
				p = math.Exp(delta / o.temp)
			}
			if o.stream.Float64() < p {
				accepted = true
				uphill = true
			}
		}
		if !accepted {
			continue
		}

		if err := o.apply(m); err != nil {
			return stats, fmt.Errorf("day %d proposal %d: %w", day, i, err)
		}

		current += delta
		stats.Accepted++
		if uphill {
			stats.Uphill++
		}
		if m.swapWith >= 0 {
			stats.Swaps++
		}
		if current > o.bestObj {
			o.bestObj = current
			o.best = o.reg.Assignment()
		}
	}

	stats.Objective = current
	stats.BestObjective = o.bestObj
	return stats, nil
}

// propose draws one candidate move: an agent uniformly at random and a
// target house, either uniformly or weighted by proposal noise. A full
// target house yields a swap with one of its occupants. Inadmissible draws
// are retried a bounded number of times.
func (o *Optimizer) propose() (move, bool) {
	n := len(o.pop.Agents)
	houses := o.reg.Houses()

	for try := 0; try < maxProposalRetries; try++ {
		a := o.pop.Agents[o.stream.Intn(n)]
		from := a.House

		var to int
		if o.cfg.ProposalNoiseLevel > 0 {
			weights := make([]float64, houses)
			for h := range weights {
				weights[h] = math.Exp(o.cfg.ProposalNoiseLevel * o.stream.Gaussian(0, 1))
			}
			if from != housing.Unassigned {
				weights[from] = 0
			}
			to = o.stream.Choice(weights)
		} else {
			to = o.stream.Intn(houses)
		}
		if to == from {
			continue
		}

		if o.reg.CanAdmit(to, a.ID) {
			return move{agent: a.ID, from: from, to: to, swapWith: -1}, true
		}

		// Target at capacity: swap with a uniformly chosen occupant.
		occ := o.reg.OccupantsOf(to)
		if len(occ) == 0 {
			continue
		}
		k := occ[o.stream.Intn(len(occ))]
		return move{agent: a.ID, from: from, to: to, swapWith: k}, true
	}
	return move{}, false
}

// evaluate computes Δ = objective(candidate) − objective(current) without
// mutating any state.
func (o *Optimizer) evaluate(m move, field *agents.Field) float64 {
	a := o.pop.Agents[m.agent]

	delta := o.pop.Utility(a, m.to, field.Sample(m.agent, m.to)) -
		o.pop.Utility(a, m.from, field.Sample(m.agent, m.from))

	if m.swapWith >= 0 {
		k := o.pop.Agents[m.swapWith]
		// The displaced occupant takes the proposer's old house, or
		// becomes unassigned when the proposer had none.
		delta += o.pop.Utility(k, m.from, field.Sample(m.swapWith, m.from)) -
			o.pop.Utility(k, m.to, field.Sample(m.swapWith, m.to))
	}

	if o.reg.Policy() == housing.Shared && o.cfg.CompatWeight != 0 {
		delta += o.cfg.CompatWeight * o.compatDelta(m)
	}
	return delta
}

// compatDelta computes the change in compatibility contributions of the two
// affected houses under the candidate occupant sets.
func (o *Optimizer) compatDelta(m move) float64 {
	before := housing.PairwiseAlignment(m.to, o.reg.OccupantsOf(m.to), o.prefs)
	if m.from != housing.Unassigned {
		before += housing.PairwiseAlignment(m.from, o.reg.OccupantsOf(m.from), o.prefs)
	}

	toAfter := replaceOrAdd(o.reg.OccupantsOf(m.to), m.swapWith, m.agent)
	after := housing.PairwiseAlignment(m.to, toAfter, o.prefs)
	if m.from != housing.Unassigned {
		fromAfter := replaceOrAdd(o.reg.OccupantsOf(m.from), m.agent, m.swapWith)
		after += housing.PairwiseAlignment(m.from, fromAfter, o.prefs)
	}
	return after - before
}

// replaceOrAdd returns occupants with `out` replaced by `in`. out < 0 means
// append only; in < 0 means remove only.
func replaceOrAdd(occupants []int, out, in int) []int {
	result := occupants[:0:0]
	for _, id := range occupants {
		if id == out {
			continue
		}
		result = append(result, id)
	}
	if in >= 0 {
		result = append(result, in)
	}
	return result
}

// apply commits an accepted move to the registry and the agents. Any
// registry error here is a capacity-invariant violation: the proposal was
// checked, so failure means the optimizer state is corrupt.
func (o *Optimizer) apply(m move) error {
	a := o.pop.Agents[m.agent]

	if m.swapWith >= 0 {
		k := o.pop.Agents[m.swapWith]
		o.reg.Evict(k.ID)
		if err := o.reg.Admit(a.ID, m.to); err != nil {
			return fmt.Errorf("swap admit: %w", err)
		}
		a.House = m.to
		if m.from != housing.Unassigned {
			if err := o.reg.Admit(k.ID, m.from); err != nil {
				return fmt.Errorf("swap backfill: %w", err)
			}
			k.House = m.from
		} else {
			k.House = housing.Unassigned
		}
		return nil
	}

	if err := o.reg.Admit(a.ID, m.to); err != nil {
		return fmt.Errorf("move admit: %w", err)
	}
	a.House = m.to
	return nil
}
