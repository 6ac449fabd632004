package rules

import (
	"strings"
	"testing"

	"github.com/lucasnoah/skyflag/internal/view"
)

func matrix(rowAxis, colAxis view.Axis, rows [][]float64) *view.View {
	v := view.NewMatrix(rowAxis, colAxis, rows)
	v.Description = "spw0 XX"
	v.Spw = "0"
	v.Pol = "XX"
	return v
}

func filled(nrows, ncols int, value float64) [][]float64 {
	rows := make([][]float64, nrows)
	for r := range rows {
		rows[r] = make([]float64, ncols)
		for c := range rows[r] {
			rows[r][c] = value
		}
	}
	return rows
}

func antennas(n int) view.Axis {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = "DV0" + string(rune('1'+i))
	}
	return labelled("Antenna1", labels...)
}

func TestMatrix_MaxAbs(t *testing.T) {
	rows := filled(3, 2, 1)
	rows[1][0] = 100
	e := mustEngine(t, Matrix, spec("max abs", map[string]float64{"limit": 50}))
	out := evaluate(t, e, matrix(antennas(3), channels(2), rows))

	if len(out.Commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(out.Commands))
	}
	c := out.Commands[0]
	if c.AxisNames[0] != "Antenna1" || c.AxisNames[1] != "Channels" {
		t.Errorf("unexpected axis names %v", c.AxisNames)
	}
	if c.FlagCoords[0].Label != "DV02" || c.FlagCoords[1].Value != 0 {
		t.Errorf("unexpected coords %v", c.FlagCoords)
	}
	if !strings.Contains(c.Text, "antenna='DV02'") || !strings.Contains(c.Text, "spw='0:0'") {
		t.Errorf("unexpected text %q", c.Text)
	}
}

func TestMatrix_TooManyFlags(t *testing.T) {
	v := matrix(antennas(3), channels(10), filled(3, 10, 1))
	for c := 0; c < 9; c++ {
		v.Flag[v.Index(0, c)] = true
	}
	e := mustEngine(t, Matrix, spec("too many flags", map[string]float64{"limit": 0.5}))
	out := evaluate(t, e, v)
	if len(out.Commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(out.Commands))
	}
	if !out.Flag[v.Index(0, 9)] {
		t.Error("expected remaining point of row 0 flagged")
	}
	if out.Reason[v.Index(0, 9)] != ReasonCode("too many flags") {
		t.Errorf("unexpected reason %q", ReasonName(out.Reason[v.Index(0, 9)]))
	}
}

func TestMatrix_TooManyFlagsIgnoresNoDataInFraction(t *testing.T) {
	v := matrix(antennas(3), channels(10), filled(3, 10, 1))
	for c := 0; c < 5; c++ {
		v.NoData[v.Index(0, c)] = true
		v.Flag[v.Index(0, c)] = true
	}
	v.Flag[v.Index(0, 5)] = true

	e := mustEngine(t, Matrix, spec("too many flags", map[string]float64{"limit": 0.5}))
	if out := evaluate(t, e, v); len(out.Commands) != 0 {
		t.Errorf("expected no commands, got %d", len(out.Commands))
	}

	// the excess test counts no-data points
	e = mustEngine(t, Matrix, spec("too many flags", map[string]float64{"limit": 0.5, "excess_limit": 3}))
	if out := evaluate(t, e, v); len(out.Commands) != 4 {
		t.Errorf("expected 4 commands, got %d", len(out.Commands))
	}
}

func TestMatrix_TooManyFlagsByColumn(t *testing.T) {
	v := matrix(antennas(3), channels(4), filled(3, 4, 1))
	v.Flag[v.Index(0, 2)] = true
	v.Flag[v.Index(1, 2)] = true

	e := mustEngine(t, Matrix, spec("too many flags", map[string]float64{"limit": 0.5}))
	if out := evaluate(t, e, v); len(out.Commands) != 0 {
		t.Errorf("rows: expected no commands, got %d", len(out.Commands))
	}

	e = mustEngine(t, Matrix, Spec{Name: "too many flags", Axis: "channels", Params: map[string]float64{"limit": 0.5}})
	out := evaluate(t, e, v)
	if len(out.Commands) != 1 || !out.Flag[v.Index(2, 2)] {
		t.Errorf("columns: expected point (2,2) flagged, got %d commands", len(out.Commands))
	}
}

func TestMatrix_EntirelyFlagged(t *testing.T) {
	v := matrix(antennas(4), channels(2), filled(4, 2, 1))
	for r := 0; r < 3; r++ {
		for c := 0; c < 2; c++ {
			v.Flag[v.Index(r, c)] = true
		}
	}
	e := mustEngine(t, Matrix, spec("too many entirely flagged", map[string]float64{"limit": 0.5}))
	out := evaluate(t, e, v)
	if len(out.Commands) != 2 {
		t.Errorf("expected 2 commands, got %d", len(out.Commands))
	}
	for i, f := range out.Flag {
		if !f {
			t.Errorf("point %d not flagged", i)
		}
	}
}

func TestMatrix_BadAntenna(t *testing.T) {
	rows := filled(4, 8, 10)
	for c := 0; c < 5; c++ {
		rows[2][c] = 1
	}
	v := matrix(antennas(4), channels(8), rows)
	e := mustEngine(t, Matrix, spec("bad antenna", map[string]float64{
		"lo_limit": 3, "frac_limit": 0.5, "number_limit": 10,
	}))
	out := evaluate(t, e, v)
	if len(out.Commands) != 8 {
		t.Fatalf("expected 8 commands, got %d", len(out.Commands))
	}
	low, bad := 0, 0
	for _, c := range out.Commands {
		if c.FlagCoords[0].Label != "DV03" {
			t.Errorf("unexpected antenna %q", c.FlagCoords[0].Label)
		}
		switch c.Reason {
		case "low outlier":
			low++
		case "bad antenna":
			bad++
		default:
			t.Errorf("unexpected reason %q", c.Reason)
		}
		if c.RuleName != "bad antenna" {
			t.Errorf("unexpected rule name %q", c.RuleName)
		}
	}
	if low != 5 || bad != 3 {
		t.Errorf("expected 5 low outliers and 3 bad antenna, got %d and %d", low, bad)
	}
	if out.Reason[v.Index(2, 0)] != ReasonCode("low outlier") || out.Reason[v.Index(2, 7)] != ReasonCode("bad antenna") {
		t.Error("unexpected reason plane")
	}
}

func TestMatrix_BadAntennaNeedsAntennaRows(t *testing.T) {
	rows := filled(4, 8, 10)
	for c := 0; c < 5; c++ {
		rows[2][c] = 1
	}
	v := matrix(labelled("Scan", "1", "2", "3", "4"), channels(8), rows)
	e := mustEngine(t, Matrix, spec("bad antenna", map[string]float64{
		"lo_limit": 3, "frac_limit": 0.5, "number_limit": 10,
	}))
	if out := evaluate(t, e, v); len(out.Commands) != 0 {
		t.Errorf("expected no commands, got %d", len(out.Commands))
	}
}

func baselines() view.Axis {
	return labelled("Baseline", "A&B", "A&C", "B&C")
}

func quadrantEngine(t *testing.T) *Engine {
	return mustEngine(t, Matrix, spec("bad quadrant", map[string]float64{
		"limit": 5, "frac_limit": 0.5, "baseline_frac_limit": 0.5,
	}))
}

func TestMatrix_BadQuadrant(t *testing.T) {
	rows := filled(8, 3, 1)
	for r := 0; r < 2; r++ {
		rows[r][0], rows[r][1] = 50, 50
	}
	v := matrix(channels(8), baselines(), rows)
	out := evaluate(t, quadrantEngine(t), v)
	if len(out.Commands) != 4 {
		t.Fatalf("expected 4 commands, got %d", len(out.Commands))
	}
	for _, c := range out.Commands {
		if c.Reason != "bad quadrant" {
			t.Errorf("unexpected reason %q", c.Reason)
		}
	}
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			if !out.Flag[v.Index(r, c)] {
				t.Errorf("point (%d,%d) not flagged", r, c)
			}
		}
	}
}

func TestMatrix_BadBaseline(t *testing.T) {
	rows := filled(8, 3, 1)
	rows[0][2], rows[1][2] = 50, 50
	v := matrix(channels(8), baselines(), rows)
	out := evaluate(t, quadrantEngine(t), v)
	if len(out.Commands) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(out.Commands))
	}
	for _, c := range out.Commands {
		if c.Reason != "bad baseline" || c.FlagCoords[1].Label != "B&C" {
			t.Errorf("unexpected command %s", c.Describe())
		}
	}
}

func TestMatrix_RulesSeeEarlierFlags(t *testing.T) {
	rows := filled(4, 4, 1)
	rows[0][0], rows[0][1], rows[0][2] = 50, 50, 50
	outlier := spec("outlier", map[string]float64{"limit": 5})
	tooMany := spec("too many flags", map[string]float64{"limit": 0.5})

	out := evaluate(t, mustEngine(t, Matrix, outlier, tooMany), matrix(antennas(4), channels(4), rows))
	if len(out.Commands) != 4 {
		t.Fatalf("expected 4 commands, got %d", len(out.Commands))
	}
	if out.Commands[3].Reason != "too many flags" {
		t.Errorf("expected last command from too many flags, got %q", out.Commands[3].Reason)
	}

	out = evaluate(t, mustEngine(t, Matrix, tooMany, outlier), matrix(antennas(4), channels(4), rows))
	if len(out.Commands) != 3 {
		t.Errorf("reversed order: expected 3 commands, got %d", len(out.Commands))
	}
}

func TestMatrix_HighAndLowOutlier(t *testing.T) {
	rows := filled(2, 5, 10)
	rows[0][1] = 100
	rows[1][3] = -80

	out := evaluate(t, mustEngine(t, Matrix, spec("high outlier", map[string]float64{"limit": 3})),
		matrix(antennas(2), channels(5), rows))
	if len(out.Commands) != 1 || out.Commands[0].FlagCoords[1].Value != 1 {
		t.Errorf("high outlier: unexpected commands %v", out.Commands)
	}

	out = evaluate(t, mustEngine(t, Matrix, spec("low outlier", map[string]float64{"limit": 3})),
		matrix(antennas(2), channels(5), rows))
	if len(out.Commands) != 1 || out.Commands[0].FlagCoords[1].Value != 3 {
		t.Errorf("low outlier: unexpected commands %v", out.Commands)
	}
}

func TestMatrix_RejectsVectorView(t *testing.T) {
	e := mustEngine(t, Matrix, spec("max abs", map[string]float64{"limit": 1}))
	if _, err := e.Evaluate(vector(1, 2, 3)); err == nil {
		t.Error("expected rank error")
	}
}
