package db

import (
	"context"
	"strings"
	"testing"

	"github.com/lucasnoah/skyflag/internal/flagcmd"
	"github.com/lucasnoah/skyflag/internal/flagger"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return d
}

func testResult() *flagger.Result {
	return &flagger.Result{
		Artifact: "uid___A002_X1.json",
		Flags: []flagcmd.Command{
			{RuleName: "outlier", Reason: "outlier", Spw: "17", Text: "spw='17:4' reason='outlier'"},
			{RuleName: "max abs", Reason: "max_abs", Spw: "17", Antenna: "DV02", Text: "spw='17' antenna='DV02' reason='max_abs'"},
			{RuleName: "outlier", Reason: "outlier", Spw: "19", Text: "spw='19:8' reason='outlier'"},
		},
		Before:     &flagger.Summary{Name: "before", Counts: flagger.Counts{Flagged: 2, Total: 100}},
		After:      &flagger.Summary{Name: "after", Counts: flagger.Counts{Flagged: 9, Total: 100}},
		Iterations: 2,
		Stop:       flagger.StopConverged,
	}
}

func TestMigrate(t *testing.T) {
	d := testDB(t)

	var tables []string
	err := d.Conn().Select(&tables, "SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		t.Fatalf("query tables: %v", err)
	}
	want := []string{"flag_commands", "flag_runs", "schema_version"}
	if strings.Join(tables, ",") != strings.Join(want, ",") {
		t.Errorf("tables = %v, want %v", tables, want)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	d := testDB(t)
	if err := d.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	var n int
	if err := d.Conn().Get(&n, "SELECT COUNT(*) FROM schema_version"); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("schema_version rows = %d, want 1", n)
	}
}

func TestRecordRun_RoundTrip(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	run, err := d.RecordRun(ctx, "", "hifa_bandpassflag", "vector", testResult())
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected generated run ID")
	}

	got, err := d.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.FlagCount != 3 || got.Iterations != 2 || got.StopReason != "converged" {
		t.Errorf("run = %+v", got)
	}
	if got.BeforeFlagged != 2 || got.AfterFlagged != 9 || got.AfterTotal != 100 {
		t.Errorf("summary counts = %d/%d/%d", got.BeforeFlagged, got.AfterFlagged, got.AfterTotal)
	}

	cmds, err := d.RunCommands(ctx, run.ID)
	if err != nil {
		t.Fatalf("RunCommands: %v", err)
	}
	if len(cmds) != 3 {
		t.Fatalf("got %d commands, want 3", len(cmds))
	}
	if cmds[1].Antenna != "DV02" || cmds[1].FlagCmd != "spw='17' antenna='DV02' reason='max_abs'" {
		t.Errorf("cmds[1] = %+v", cmds[1])
	}
	for i, c := range cmds {
		if c.Seq != i {
			t.Errorf("cmds[%d].Seq = %d", i, c.Seq)
		}
	}
}

func TestListRuns(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	for _, id := range []string{"r1", "r2", "r3"} {
		if _, err := d.RecordRun(ctx, id, "bandpass", "vector", testResult()); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := d.RecordRun(ctx, "other", "gaintable", "matrix", testResult()); err != nil {
		t.Fatal(err)
	}

	runs, err := d.ListRuns(ctx, "bandpass", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	if runs[0].ID != "r3" {
		t.Errorf("newest run = %s, want r3", runs[0].ID)
	}

	all, err := d.ListRuns(ctx, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("limited list = %d, want 2", len(all))
	}
}

func TestRuleCounts(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	if _, err := d.RecordRun(ctx, "r1", "bandpass", "vector", testResult()); err != nil {
		t.Fatal(err)
	}

	counts, err := d.RuleCounts(ctx, "bandpass")
	if err != nil {
		t.Fatalf("RuleCounts: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("got %d rules, want 2", len(counts))
	}
	if counts[0].RuleName != "outlier" || counts[0].Count != 2 {
		t.Errorf("counts[0] = %+v", counts[0])
	}
}

func TestDeleteRun(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	if _, err := d.RecordRun(ctx, "r1", "bandpass", "vector", testResult()); err != nil {
		t.Fatal(err)
	}
	if err := d.DeleteRun(ctx, "r1"); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	cmds, err := d.RunCommands(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 0 {
		t.Errorf("commands left after delete: %d", len(cmds))
	}
	if err := d.DeleteRun(ctx, "r1"); err == nil {
		t.Error("expected error deleting missing run")
	}
}

func TestReset(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	if _, err := d.RecordRun(ctx, "r1", "bandpass", "vector", testResult()); err != nil {
		t.Fatal(err)
	}
	if err := d.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	runs, err := d.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("runs after reset = %d", len(runs))
	}
}
