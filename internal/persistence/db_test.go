package persistence

import (
	"path/filepath"
	"testing"

	"github.com/talgya/housesim/internal/engine"
	"github.com/talgya/housesim/internal/housing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "housesim.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testResult(t *testing.T) *engine.Result {
	t.Helper()
	run, err := engine.NewRun(engine.RunConfig{
		RunID:  "persist-test",
		Seed:   1,
		Agents: 6,
		Houses: 6,
		Days:   10,
		Policy: housing.Shared,
	})
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	res, err := run.Execute()
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return res
}

func TestSaveAndLoadRun(t *testing.T) {
	db := openTestDB(t)
	res := testResult(t)

	if err := db.SaveRun(res); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	rec, err := db.LoadRun("persist-test")
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if rec.Seed != 1 || rec.Agents != 6 || rec.Policy != "meet" {
		t.Fatalf("run record mismatch: %+v", rec)
	}
	if rec.FinalM1 != res.FinalM1 {
		t.Fatalf("final m1: stored %v, want %v", rec.FinalM1, res.FinalM1)
	}

	snaps, err := db.LoadSnapshots("persist-test")
	if err != nil {
		t.Fatalf("LoadSnapshots: %v", err)
	}
	if len(snaps) != len(res.Snapshots) {
		t.Fatalf("loaded %d snapshots, saved %d", len(snaps), len(res.Snapshots))
	}
	for i, s := range snaps {
		if s.Day != i {
			t.Fatalf("snapshot %d has day %d", i, s.Day)
		}
		if s.M1 != res.Snapshots[i].M1 {
			t.Fatalf("day %d: m1 %v, want %v", i, s.M1, res.Snapshots[i].M1)
		}
	}
}

func TestSaveRunIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	res := testResult(t)

	if err := db.SaveRun(res); err != nil {
		t.Fatalf("first SaveRun: %v", err)
	}
	if err := db.SaveRun(res); err != nil {
		t.Fatalf("second SaveRun: %v", err)
	}

	snaps, err := db.LoadSnapshots("persist-test")
	if err != nil {
		t.Fatalf("LoadSnapshots: %v", err)
	}
	if len(snaps) != len(res.Snapshots) {
		t.Fatalf("re-save duplicated snapshots: %d", len(snaps))
	}
}

func TestListRuns(t *testing.T) {
	db := openTestDB(t)
	res := testResult(t)
	if err := db.SaveRun(res); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	recs, err := db.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(recs) != 1 || recs[0].RunID != "persist-test" {
		t.Fatalf("unexpected run list: %+v", recs)
	}
}

func TestBenchRoundTrip(t *testing.T) {
	db := openTestDB(t)

	rows := []BenchRow{
		{BenchID: "b1", Agents: 10, Policy: "none", Runs: 3, MeanMS: 12.5, StddevMS: 1.1, MeanM1: 0.8},
		{BenchID: "b1", Agents: 10, Policy: "meet", Runs: 3, MeanMS: 14.0, StddevMS: 0.9, MeanM1: 0.85},
		{BenchID: "b2", Agents: 20, Policy: "meet", Runs: 3, MeanMS: 30.0, StddevMS: 2.0, MeanM1: 0.82},
	}
	if err := db.SaveBench(rows); err != nil {
		t.Fatalf("SaveBench: %v", err)
	}

	got, err := db.LoadBench("b1")
	if err != nil {
		t.Fatalf("LoadBench: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d rows for b1, want 2", len(got))
	}
	if got[0].Policy != "meet" || got[1].Policy != "none" {
		t.Fatalf("rows not ordered by policy: %+v", got)
	}
}

func TestLoadMissingRun(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.LoadRun("absent"); err == nil {
		t.Fatal("expected an error for a missing run")
	}
}
