package housing

import (
	"errors"
	"fmt"
)

// ErrCapacityExceeded reports an admit that would break the occupancy
// invariant. It never surfaces from the optimizer's proposal loop; if a
// committed move trips it, that is a bug and the run aborts loudly.
var ErrCapacityExceeded = errors.New("house capacity exceeded")

// Unassigned marks an agent with no current house.
const Unassigned = -1

// Registry tracks a fixed set of houses 0..n-1 with finite capacity and
// mutually exclusive occupancy. A Registry is owned by a single run and is
// never accessed concurrently.
type Registry struct {
	policy    Policy
	capacity  int
	occupants [][]int     // house -> occupant agent IDs
	houseOf   map[int]int // agent -> house
}

// NewRegistry creates a registry of n houses under the given policy.
// capacity <= 0 means "not yet sized"; use Policy.DefaultCapacity.
// Exclusive forces capacity 1 regardless of the argument.
func NewRegistry(houses int, policy Policy, capacity int) (*Registry, error) {
	if houses <= 0 {
		return nil, fmt.Errorf("registry needs at least one house, got %d", houses)
	}
	if policy == Exclusive {
		capacity = 1
	} else if capacity < 2 {
		return nil, fmt.Errorf("shared policy needs capacity >= 2, got %d", capacity)
	}
	return &Registry{
		policy:    policy,
		capacity:  capacity,
		occupants: make([][]int, houses),
		houseOf:   make(map[int]int),
	}, nil
}

// Houses returns the number of houses.
func (r *Registry) Houses() int { return len(r.occupants) }

// Policy returns the sharing policy.
func (r *Registry) Policy() Policy { return r.policy }

// CapacityOf returns the capacity of a house.
func (r *Registry) CapacityOf(house int) int {
	if house < 0 || house >= len(r.occupants) {
		return 0
	}
	return r.capacity
}

// OccupancyOf returns the current occupant count of a house.
func (r *Registry) OccupancyOf(house int) int {
	if house < 0 || house >= len(r.occupants) {
		return 0
	}
	return len(r.occupants[house])
}

// OccupantsOf returns a copy of a house's occupant set.
func (r *Registry) OccupantsOf(house int) []int {
	if house < 0 || house >= len(r.occupants) {
		return nil
	}
	out := make([]int, len(r.occupants[house]))
	copy(out, r.occupants[house])
	return out
}

// HouseOf returns the agent's current house, or Unassigned.
func (r *Registry) HouseOf(agent int) int {
	if h, ok := r.houseOf[agent]; ok {
		return h
	}
	return Unassigned
}

// CanAdmit reports whether the agent could move into the house right now.
// False when the house is at capacity or the agent already lives there.
func (r *Registry) CanAdmit(house, agent int) bool {
	if house < 0 || house >= len(r.occupants) {
		return false
	}
	if h, ok := r.houseOf[agent]; ok && h == house {
		return false
	}
	return len(r.occupants[house]) < r.capacity
}

// Admit moves the agent into the house, evicting it from its previous house
// first. Returns ErrCapacityExceeded if the house is full.
func (r *Registry) Admit(agent, house int) error {
	if house < 0 || house >= len(r.occupants) {
		return fmt.Errorf("admit agent %d: house %d out of range", agent, house)
	}
	if len(r.occupants[house]) >= r.capacity {
		return fmt.Errorf("admit agent %d into house %d (occupancy %d/%d, policy %s): %w",
			agent, house, len(r.occupants[house]), r.capacity, r.policy, ErrCapacityExceeded)
	}
	r.Evict(agent)
	r.occupants[house] = append(r.occupants[house], agent)
	r.houseOf[agent] = house
	return nil
}

// Evict removes the agent from its current house, if any. Reports whether
// the agent was housed.
func (r *Registry) Evict(agent int) bool {
	h, ok := r.houseOf[agent]
	if !ok {
		return false
	}
	occ := r.occupants[h]
	for i, id := range occ {
		if id == agent {
			r.occupants[h] = append(occ[:i], occ[i+1:]...)
			break
		}
	}
	delete(r.houseOf, agent)
	return true
}

// Assignment returns a copy of the agent -> house map.
func (r *Registry) Assignment() map[int]int {
	out := make(map[int]int, len(r.houseOf))
	for a, h := range r.houseOf {
		out[a] = h
	}
	return out
}

// Restore replaces the current occupancy with the given assignment.
// Used to install a best-found assignment at the end of a run.
func (r *Registry) Restore(assignment map[int]int) error {
	for i := range r.occupants {
		r.occupants[i] = r.occupants[i][:0]
	}
	r.houseOf = make(map[int]int, len(assignment))
	for agent, house := range assignment {
		if house == Unassigned {
			continue
		}
		if err := r.Admit(agent, house); err != nil {
			return fmt.Errorf("restore assignment: %w", err)
		}
	}
	return nil
}

// CompatibilityScore aggregates pairwise preference alignment among a
// house's current occupants, in [0, 1]. Houses with fewer than two
// occupants score 0, as does any house under Exclusive.
// prefs[agent][house] is the static preference matrix.
func (r *Registry) CompatibilityScore(house int, prefs [][]float64) float64 {
	if r.policy == Exclusive {
		return 0
	}
	if house < 0 || house >= len(r.occupants) {
		return 0
	}
	return PairwiseAlignment(house, r.occupants[house], prefs)
}

// PairwiseAlignment scores an explicit occupant set for a house: the mean
// over unordered occupant pairs of 1 − |preference difference|, in [0, 1].
// Fewer than two occupants score 0. The optimizer uses this to evaluate
// hypothetical occupant sets without mutating the registry.
func PairwiseAlignment(house int, occupants []int, prefs [][]float64) float64 {
	if len(occupants) < 2 {
		return 0
	}

	sum := 0.0
	pairs := 0
	for i := 0; i < len(occupants); i++ {
		for j := i + 1; j < len(occupants); j++ {
			pi := prefs[occupants[i]][house]
			pj := prefs[occupants[j]][house]
			d := pi - pj
			if d < 0 {
				d = -d
			}
			sum += 1 - d
			pairs++
		}
	}
	return sum / float64(pairs)
}

// CheckInvariants verifies occupancy consistency: every occupant list within
// capacity, every houseOf entry backed by a list membership, and no agent in
// two houses. Returns nil when all invariants hold.
func (r *Registry) CheckInvariants() error {
	seen := make(map[int]int)
	for h, occ := range r.occupants {
		if len(occ) > r.capacity {
			return fmt.Errorf("house %d holds %d occupants, capacity %d (policy %s): %w",
				h, len(occ), r.capacity, r.policy, ErrCapacityExceeded)
		}
		for _, agent := range occ {
			if prev, dup := seen[agent]; dup {
				return fmt.Errorf("agent %d occupies both house %d and house %d", agent, prev, h)
			}
			seen[agent] = h
			if r.houseOf[agent] != h {
				return fmt.Errorf("agent %d listed in house %d but mapped to %d", agent, h, r.houseOf[agent])
			}
		}
	}
	if len(seen) != len(r.houseOf) {
		return fmt.Errorf("occupancy lists cover %d agents, map covers %d", len(seen), len(r.houseOf))
	}
	return nil
}
