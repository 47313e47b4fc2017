// Package metrics provides run-scoped metric collection: per-day snapshots,
// the m1 comparison series, and the optional per-agent trace.
package metrics

import (
	"fmt"
)

// Snapshot is one day's metric row. Snapshots carry the full run identity so
// downstream consumers never have to recover it from file names.
type Snapshot struct {
	RunID      string  `db:"run_id" json:"run_id"`
	Day        int     `db:"day" json:"day"`
	Agents     int     `db:"agents" json:"agents"`
	Policy     string  `db:"policy" json:"policy"`
	NoiseLevel float64 `db:"noise" json:"noise"`

	// M1 is the cross-run comparison metric: mean attained static utility
	// normalized by the best achievable preference sum, in [0, 1].
	M1 float64 `db:"m1" json:"m1"`

	Objective      float64 `db:"objective" json:"objective"`
	BestObjective  float64 `db:"best_objective" json:"best_objective"`
	Temperature    float64 `db:"temperature" json:"temperature"`
	AcceptanceRate float64 `db:"acceptance_rate" json:"acceptance_rate"`

	// Churn counts accepted reassignments during the day's pass.
	Churn int `db:"churn" json:"churn"`
}

// State is the read-only view of simulation state a snapshot is computed
// from. It is assembled by the clock; the collector never touches live
// simulation structures.
type State struct {
	StaticUtility  float64
	MaxStaticSum   float64
	Objective      float64
	BestObjective  float64
	Temperature    float64
	AcceptanceRate float64
	Churn          int
}

// TraceEvent is one verbose per-agent-per-day record.
type TraceEvent struct {
	Day     int     `json:"day"`
	Agent   int     `json:"agent"`
	House   int     `json:"house"`
	Utility float64 `json:"utility"`
}

// Collector aggregates an append-only, day-ordered snapshot series for a
// single run. It observes state and never mutates it.
type Collector struct {
	runID   string
	agents  int
	policy  string
	noise   float64
	verbose bool

	snaps []Snapshot
	trace []TraceEvent
}

// NewCollector creates a collector bound to one run's identity.
func NewCollector(runID string, agents int, policy string, noise float64, verbose bool) *Collector {
	return &Collector{
		runID:   runID,
		agents:  agents,
		policy:  policy,
		noise:   noise,
		verbose: verbose,
	}
}

// Snapshot computes the day's row from the given state and appends it.
// Days must arrive in strict order starting at 0.
func (c *Collector) Snapshot(day int, st State) (Snapshot, error) {
	if day != len(c.snaps) {
		return Snapshot{}, fmt.Errorf("snapshot day %d out of order, expected %d", day, len(c.snaps))
	}

	m1 := 0.0
	if st.MaxStaticSum > 0 {
		m1 = st.StaticUtility / st.MaxStaticSum
	}

	s := Snapshot{
		RunID:          c.runID,
		Day:            day,
		Agents:         c.agents,
		Policy:         c.policy,
		NoiseLevel:     c.noise,
		M1:             m1,
		Objective:      st.Objective,
		BestObjective:  st.BestObjective,
		Temperature:    st.Temperature,
		AcceptanceRate: st.AcceptanceRate,
		Churn:          st.Churn,
	}
	c.snaps = append(c.snaps, s)
	return s, nil
}

// Trace appends a verbose per-agent event. No-op unless verbose.
func (c *Collector) Trace(ev TraceEvent) {
	if !c.verbose {
		return
	}
	c.trace = append(c.trace, ev)
}

// Verbose reports whether per-agent tracing is enabled.
func (c *Collector) Verbose() bool { return c.verbose }

// Len returns the number of collected snapshots.
func (c *Collector) Len() int { return len(c.snaps) }

// Export returns a copy of the snapshot series, ordered by day.
func (c *Collector) Export() []Snapshot {
	out := make([]Snapshot, len(c.snaps))
	copy(out, c.snaps)
	return out
}

// ExportTrace returns a copy of the verbose trace.
func (c *Collector) ExportTrace() []TraceEvent {
	out := make([]TraceEvent, len(c.trace))
	copy(out, c.trace)
	return out
}
