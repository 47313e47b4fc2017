package metrics

import (
	"fmt"
	"math"
)

// ScoreMode selects how an m1 series is reduced to a single comparison
// score across seeds.
type ScoreMode uint8

const (
	// ScoreFinal takes the last day's m1.
	ScoreFinal ScoreMode = iota
	// ScoreMeanTail averages m1 over the last Tail days.
	ScoreMeanTail
)

// ParseScoreMode maps "final" and "mean_tail" to a mode.
func ParseScoreMode(s string) (ScoreMode, error) {
	switch s {
	case "", "final":
		return ScoreFinal, nil
	case "mean_tail":
		return ScoreMeanTail, nil
	default:
		return 0, fmt.Errorf("invalid score mode %q (want \"final\" or \"mean_tail\")", s)
	}
}

// String returns the wire name of the mode.
func (m ScoreMode) String() string {
	switch m {
	case ScoreFinal:
		return "final"
	case ScoreMeanTail:
		return "mean_tail"
	default:
		return fmt.Sprintf("score(%d)", uint8(m))
	}
}

// Score reduces a snapshot series to a scalar m1 score. tail is only used
// by ScoreMeanTail and is clamped to the series length. An empty series
// scores 0.
func Score(snaps []Snapshot, mode ScoreMode, tail int) float64 {
	if len(snaps) == 0 {
		return 0
	}
	switch mode {
	case ScoreMeanTail:
		k := tail
		if k <= 0 || k > len(snaps) {
			k = len(snaps)
		}
		sum := 0.0
		for _, s := range snaps[len(snaps)-k:] {
			sum += s.M1
		}
		return sum / float64(k)
	default:
		return snaps[len(snaps)-1].M1
	}
}

// Mean returns the arithmetic mean of xs, 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Stddev returns the sample standard deviation of xs, 0 below two samples.
func Stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	varSum := 0.0
	for _, x := range xs {
		d := x - m
		varSum += d * d
	}
	return math.Sqrt(varSum / float64(len(xs)-1))
}
