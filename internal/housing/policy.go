// Package housing provides the house registry, occupancy invariants, and the
// sharing-policy variant type.
package housing

import (
	"errors"
	"fmt"
)

// ErrInvalidPolicy is returned when an unrecognized share policy name is
// supplied. It is fatal: a run never starts with an unknown policy.
var ErrInvalidPolicy = errors.New("invalid share policy")

// Policy is the closed set of resource-sharing rules.
type Policy uint8

const (
	// Exclusive gives every house capacity 1 (share "none").
	Exclusive Policy = iota
	// Shared allows capacity-bounded co-occupancy with compatibility
	// scoring (share "meet").
	Shared
)

// ParsePolicy maps the wire names "none" and "meet" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "none":
		return Exclusive, nil
	case "meet":
		return Shared, nil
	default:
		return 0, fmt.Errorf("%w: %q (want \"none\" or \"meet\")", ErrInvalidPolicy, s)
	}
}

// String returns the wire name of the policy.
func (p Policy) String() string {
	switch p {
	case Exclusive:
		return "none"
	case Shared:
		return "meet"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// DefaultCapacity returns the per-house capacity for a population of the
// given size. Exclusive is always 1. Shared leaves one seat of slack above
// an even split so a feasible full assignment always exists.
func (p Policy) DefaultCapacity(agents, houses int) int {
	if p == Exclusive {
		return 1
	}
	if houses <= 0 {
		return 1
	}
	cap := (agents + houses - 1) / houses // ceil
	if cap < 2 {
		cap = 2
	}
	return cap + 1
}
