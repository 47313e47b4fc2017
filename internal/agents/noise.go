package agents

import (
	"fmt"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/housesim/internal/rng"
)

// NoiseModel selects how per-day utility perturbations are generated.
type NoiseModel uint8

const (
	// NoiseGaussian draws independent white noise per agent per day.
	NoiseGaussian NoiseModel = iota
	// NoiseSimplex evaluates a smooth simplex field over (agent, day), so
	// consecutive days see correlated perturbations.
	NoiseSimplex
)

// ParseNoiseModel maps the wire names "gaussian" and "simplex" to a model.
func ParseNoiseModel(s string) (NoiseModel, error) {
	switch s {
	case "", "gaussian":
		return NoiseGaussian, nil
	case "simplex":
		return NoiseSimplex, nil
	default:
		return 0, fmt.Errorf("invalid noise model %q (want \"gaussian\" or \"simplex\")", s)
	}
}

// String returns the wire name of the model.
func (m NoiseModel) String() string {
	switch m {
	case NoiseGaussian:
		return "gaussian"
	case NoiseSimplex:
		return "simplex"
	default:
		return fmt.Sprintf("noise(%d)", uint8(m))
	}
}

// NoiseTarget selects which randomness source the noise level feeds:
// utility evaluation, the optimizer's proposal distribution, or both.
type NoiseTarget uint8

const (
	NoiseUtility NoiseTarget = iota
	NoiseProposal
	NoiseBoth
)

// ParseNoiseTarget maps "utility", "proposal", "both" to a target.
func ParseNoiseTarget(s string) (NoiseTarget, error) {
	switch s {
	case "", "utility":
		return NoiseUtility, nil
	case "proposal":
		return NoiseProposal, nil
	case "both":
		return NoiseBoth, nil
	default:
		return 0, fmt.Errorf("invalid noise target %q (want \"utility\", \"proposal\" or \"both\")", s)
	}
}

// String returns the wire name of the target.
func (t NoiseTarget) String() string {
	switch t {
	case NoiseUtility:
		return "utility"
	case NoiseProposal:
		return "proposal"
	case NoiseBoth:
		return "both"
	default:
		return fmt.Sprintf("target(%d)", uint8(t))
	}
}

// PerturbsUtility reports whether utility evaluation sees noise.
func (t NoiseTarget) PerturbsUtility() bool { return t == NoiseUtility || t == NoiseBoth }

// PerturbsProposal reports whether the proposal distribution sees noise.
func (t NoiseTarget) PerturbsProposal() bool { return t == NoiseProposal || t == NoiseBoth }

// Simplex field spacing: agents and houses are spread far apart so their
// samples are effectively uncorrelated, while the day axis stays smooth.
const (
	simplexAgentStep = 17.31
	simplexHouseStep = 23.77
	simplexDayStep   = 0.05
)

// Field holds the current day's noise samples over agent × house. Samples
// are re-drawn every day — day-to-day utility is a moving target the
// optimizer has to track. A nil Field samples as 0 everywhere.
type Field struct {
	model   NoiseModel
	level   float64
	stream  *rng.Stream
	simplex opensimplex.Noise

	day     int
	houses  int
	samples []float64 // agent-major, len agents*houses
}

// NewField creates a noise field for n agents over the given house count.
// level 0 produces an inert field: Sample always returns 0 and Refresh
// draws nothing, so a noise-free run consumes no stream samples for noise.
func NewField(model NoiseModel, level float64, n, houses int, stream *rng.Stream) *Field {
	f := &Field{
		model:   model,
		level:   level,
		stream:  stream,
		houses:  houses,
		samples: make([]float64, n*houses),
	}
	if model == NoiseSimplex && level > 0 {
		f.simplex = opensimplex.New(stream.Seed())
	}
	return f
}

// Level returns the configured noise level.
func (f *Field) Level() float64 {
	if f == nil {
		return 0
	}
	return f.level
}

// Refresh re-samples the field for the given day.
func (f *Field) Refresh(day int) {
	if f == nil || f.level == 0 {
		return
	}
	f.day = day
	switch f.model {
	case NoiseSimplex:
		for i := range f.samples {
			agent, house := i/f.houses, i%f.houses
			f.samples[i] = f.level * f.simplex.Eval3(
				float64(agent)*simplexAgentStep,
				float64(house)*simplexHouseStep,
				float64(day)*simplexDayStep,
			)
		}
	default:
		for i := range f.samples {
			f.samples[i] = f.stream.Gaussian(0, f.level)
		}
	}
}

// Sample returns the current perturbation for an (agent, house) pair.
// Zero for a nil or noise-free field, and for an unassigned house.
func (f *Field) Sample(agent, house int) float64 {
	if f == nil || f.level == 0 || house < 0 {
		return 0
	}
	return f.samples[agent*f.houses+house]
}
