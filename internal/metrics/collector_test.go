package metrics

import (
	"math"
	"testing"
)

func TestSnapshotOrdering(t *testing.T) {
	c := NewCollector("run-1", 6, "meet", 0.0, false)

	for day := 0; day < 5; day++ {
		s, err := c.Snapshot(day, State{StaticUtility: 3, MaxStaticSum: 6})
		if err != nil {
			t.Fatalf("day %d: %v", day, err)
		}
		if s.Day != day {
			t.Errorf("snapshot day = %d, want %d", s.Day, day)
		}
		if s.RunID != "run-1" || s.Policy != "meet" || s.Agents != 6 {
			t.Errorf("run identity not attached: %+v", s)
		}
	}

	if _, err := c.Snapshot(3, State{}); err == nil {
		t.Error("expected error for out-of-order day")
	}
	if _, err := c.Snapshot(6, State{}); err == nil {
		t.Error("expected error for skipped day")
	}
	if c.Len() != 5 {
		t.Errorf("Len = %d, want 5", c.Len())
	}
}

func TestM1Normalization(t *testing.T) {
	c := NewCollector("r", 2, "none", 0, false)

	s, err := c.Snapshot(0, State{StaticUtility: 1.5, MaxStaticSum: 2.0})
	if err != nil {
		t.Fatal(err)
	}
	if s.M1 != 0.75 {
		t.Errorf("M1 = %v, want 0.75", s.M1)
	}

	s, err = c.Snapshot(1, State{StaticUtility: 1.0, MaxStaticSum: 0})
	if err != nil {
		t.Fatal(err)
	}
	if s.M1 != 0 {
		t.Errorf("M1 with zero normalizer = %v, want 0", s.M1)
	}
}

func TestExportCopies(t *testing.T) {
	c := NewCollector("r", 1, "none", 0, false)
	if _, err := c.Snapshot(0, State{}); err != nil {
		t.Fatal(err)
	}

	out := c.Export()
	out[0].M1 = 99

	if got := c.Export()[0].M1; got == 99 {
		t.Error("Export leaked internal storage")
	}
}

func TestTraceGatedByVerbose(t *testing.T) {
	quiet := NewCollector("r", 1, "none", 0, false)
	quiet.Trace(TraceEvent{Day: 0, Agent: 0, House: 1})
	if len(quiet.ExportTrace()) != 0 {
		t.Error("non-verbose collector recorded a trace event")
	}

	verbose := NewCollector("r", 1, "none", 0, true)
	verbose.Trace(TraceEvent{Day: 0, Agent: 0, House: 1, Utility: 0.3})
	got := verbose.ExportTrace()
	if len(got) != 1 || got[0].House != 1 {
		t.Errorf("verbose trace = %+v, want one event with house 1", got)
	}
}

func TestScore(t *testing.T) {
	snaps := []Snapshot{
		{Day: 0, M1: 0.1},
		{Day: 1, M1: 0.2},
		{Day: 2, M1: 0.6},
		{Day: 3, M1: 0.7},
	}

	tests := []struct {
		name string
		mode ScoreMode
		tail int
		want float64
	}{
		{"final", ScoreFinal, 0, 0.7},
		{"mean tail 2", ScoreMeanTail, 2, 0.65},
		{"tail clamped", ScoreMeanTail, 100, 0.4},
		{"tail zero means all", ScoreMeanTail, 0, 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(snaps, tt.mode, tt.tail)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Score = %v, want %v", got, tt.want)
			}
		})
	}

	if got := Score(nil, ScoreFinal, 0); got != 0 {
		t.Errorf("empty series score = %v, want 0", got)
	}
}

func TestParseScoreMode(t *testing.T) {
	for in, want := range map[string]ScoreMode{
		"":          ScoreFinal,
		"final":     ScoreFinal,
		"mean_tail": ScoreMeanTail,
	} {
		got, err := ParseScoreMode(in)
		if err != nil {
			t.Errorf("ParseScoreMode(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseScoreMode(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseScoreMode("median"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestMeanStddev(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if got := Mean(xs); got != 5 {
		t.Errorf("Mean = %v, want 5", got)
	}
	if got := Stddev(xs); math.Abs(got-2.138089935299395) > 1e-12 {
		t.Errorf("Stddev = %v, want ~2.138", got)
	}
	if got := Stddev([]float64{1}); got != 0 {
		t.Errorf("Stddev of one sample = %v, want 0", got)
	}
	if got := Mean(nil); got != 0 {
		t.Errorf("Mean(nil) = %v, want 0", got)
	}
}
