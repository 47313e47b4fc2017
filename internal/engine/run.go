package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/housesim/internal/agents"
	"github.com/talgya/housesim/internal/annealing"
	"github.com/talgya/housesim/internal/housing"
	"github.com/talgya/housesim/internal/metrics"
	"github.com/talgya/housesim/internal/rng"
)

// Run owns the complete state of one simulation: stream, registry,
// population, optimizer, and collector. Runs share nothing, so independent
// runs may execute in parallel without synchronization.
type Run struct {
	cfg RunConfig

	stream    *rng.Stream
	reg       *housing.Registry
	pop       *agents.Population
	opt       *annealing.Optimizer
	collector *metrics.Collector
	utilNoise *agents.Field
}

// Result is the outcome of a completed run.
type Result struct {
	Config    RunConfig
	Snapshots []metrics.Snapshot
	Trace     []metrics.TraceEvent

	BestObjective  float64
	BestAssignment map[int]int
	FinalM1        float64
	Elapsed        time.Duration
}

// NewRun validates the config, fills defaults, and builds all per-run
// state. Construction draws from the stream (preferences), so two runs
// built from the same config are byte-for-byte identical.
func NewRun(cfg RunConfig) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()

	stream := rng.New(cfg.Seed)
	pop := agents.NewPopulation(cfg.Agents, cfg.Houses, stream)

	reg, err := housing.NewRegistry(cfg.Houses, cfg.Policy, cfg.Capacity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := pop.AssignInitial(reg); err != nil {
		return nil, err
	}

	optCfg := annealing.Config{
		ProposalsPerDay: cfg.ProposalsPerDay,
		Schedule:        cfg.Schedule(),
		CompatWeight:    cfg.CompatWeight,
	}
	if cfg.NoiseTarget.PerturbsProposal() {
		optCfg.ProposalNoiseLevel = cfg.NoiseLevel
	}
	opt, err := annealing.New(optCfg, reg, pop, stream.Child("optimizer"))
	if err != nil {
		return nil, err
	}

	var utilNoise *agents.Field
	if cfg.NoiseTarget.PerturbsUtility() {
		utilNoise = agents.NewField(cfg.NoiseModel, cfg.NoiseLevel, cfg.Agents, cfg.Houses, stream.Child("noise"))
	}

	return &Run{
		cfg:       cfg,
		stream:    stream,
		reg:       reg,
		pop:       pop,
		opt:       opt,
		collector: metrics.NewCollector(cfg.RunID, cfg.Agents, cfg.Policy.String(), cfg.NoiseLevel, cfg.Verbose),
		utilNoise: utilNoise,
	}, nil
}

// Config returns the effective (default-filled) configuration.
func (r *Run) Config() RunConfig { return r.cfg }

// Assignment returns the current agent-to-house assignment. After Execute
// this is the best assignment found during the run.
func (r *Run) Assignment() map[int]int { return r.reg.Assignment() }

// Execute advances the clock through all configured days. Each day, in
// strict order: refresh noisy utilities, run the optimizer pass, snapshot
// metrics. Day N+1 never starts before day N completes — noise and
// temperature state carry forward. A run is atomic once started; the only
// failure mode is an internal invariant violation, which aborts loudly.
func (r *Run) Execute() (*Result, error) {
	start := time.Now()

	slog.Debug("run starting",
		"run_id", r.cfg.RunID,
		"seed", r.cfg.Seed,
		"agents", r.cfg.Agents,
		"houses", r.cfg.Houses,
		"days", r.cfg.Days,
		"share", r.cfg.Policy.String(),
		"noise", r.cfg.NoiseLevel,
		"sampling", r.cfg.Sampling.String(),
	)

	for day := 0; day < r.cfg.Days; day++ {
		if err := r.step(day); err != nil {
			return nil, fmt.Errorf("run %s (share %s, seed %d) aborted at day %d: %w",
				r.cfg.RunID, r.cfg.Policy, r.cfg.Seed, day, err)
		}

		// A positive floor is a hard stop for the whole run.
		if r.cfg.TempFloor > 0 && r.opt.Temperature() <= r.cfg.TempFloor {
			slog.Debug("temperature floor reached", "run_id", r.cfg.RunID, "day", day)
			break
		}
	}

	best, bestObj := r.opt.Best()
	// The run ends holding its best-found assignment, not whatever the
	// final pass happened to leave in place.
	if len(best) > 0 {
		if err := r.reg.Restore(best); err != nil {
			return nil, fmt.Errorf("run %s: install best assignment: %w", r.cfg.RunID, err)
		}
		r.pop.SyncFrom(r.reg)
	}
	snaps := r.collector.Export()

	res := &Result{
		Config:         r.cfg,
		Snapshots:      snaps,
		Trace:          r.collector.ExportTrace(),
		BestObjective:  bestObj,
		BestAssignment: best,
		FinalM1:        metrics.Score(snaps, metrics.ScoreFinal, 0),
		Elapsed:        time.Since(start),
	}

	slog.Info("run complete",
		"run_id", r.cfg.RunID,
		"days", len(res.Snapshots),
		"final_m1", fmt.Sprintf("%.4f", res.FinalM1),
		"best_objective", fmt.Sprintf("%.4f", res.BestObjective),
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// step runs one simulated day.
func (r *Run) step(day int) error {
	// (1) Utilities move first: the optimizer chases today's landscape.
	if r.utilNoise != nil {
		r.utilNoise.Refresh(day)
	}

	// (2) Optimizer pass, governed by the sampling mode.
	var stats annealing.PassStats
	runPass := false
	switch r.cfg.Sampling {
	case annealing.SamplingPerDay:
		runPass = true
	case annealing.SamplingFinal:
		runPass = day == r.cfg.Days-1
	}
	if runPass {
		var err error
		stats, err = r.opt.Pass(day, r.utilNoise)
		if err != nil {
			return err
		}
		if err := r.reg.CheckInvariants(); err != nil {
			return err
		}
	} else {
		stats = annealing.PassStats{Day: day, Temperature: r.opt.Temperature(), BestObjective: r.opt.BestObjective()}
	}

	// (3) Utility accrues under the day's final assignment.
	r.pop.Accumulate()

	// (4) Snapshot.
	_, err := r.collector.Snapshot(day, metrics.State{
		StaticUtility:  r.pop.StaticUtility(),
		MaxStaticSum:   r.pop.MaxStaticSum(),
		Objective:      r.opt.Objective(r.utilNoise),
		BestObjective:  r.opt.BestObjective(),
		Temperature:    r.opt.Temperature(),
		AcceptanceRate: stats.AcceptanceRate(),
		Churn:          stats.Accepted,
	})
	if err != nil {
		return err
	}

	slog.Debug("day complete",
		"run_id", r.cfg.RunID,
		"day", day,
		"temp", fmt.Sprintf("%.4f", stats.Temperature),
		"accepted", stats.Accepted,
		"uphill", stats.Uphill,
		"swaps", stats.Swaps,
		"best", fmt.Sprintf("%.4f", r.opt.BestObjective()),
	)

	if r.collector.Verbose() {
		for _, a := range r.pop.Agents {
			r.collector.Trace(metrics.TraceEvent{
				Day:     day,
				Agent:   a.ID,
				House:   a.House,
				Utility: r.pop.Utility(a, a.House, 0),
			})
		}
	}
	return nil
}
