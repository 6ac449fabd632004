package rules

import (
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParse_UnknownRule(t *testing.T) {
	_, err := NewVectorEngine([]Spec{spec("bad antenna", map[string]float64{"lo_limit": 1})}, Options{})
	if !errors.Is(err, ErrUnknownRule) {
		t.Fatalf("expected ErrUnknownRule, got %v", err)
	}
	_, err = NewMatrixEngine([]Spec{spec("sparkles", nil)}, Options{})
	if !errors.Is(err, ErrUnknownRule) {
		t.Fatalf("expected ErrUnknownRule, got %v", err)
	}
}

func TestParse_MissingParam(t *testing.T) {
	_, err := NewMatrixEngine([]Spec{spec("nmedian", map[string]float64{"lo_limit": 0.5})}, Options{})
	if err == nil || !strings.Contains(err.Error(), "hi_limit") {
		t.Fatalf("expected missing hi_limit error, got %v", err)
	}
}

func TestParse_UnknownParam(t *testing.T) {
	_, err := NewVectorEngine([]Spec{spec("edges", map[string]float64{"limit": 1, "width": 3})}, Options{})
	if err == nil || !strings.Contains(err.Error(), "width") {
		t.Fatalf("expected unknown parameter error, got %v", err)
	}
}

func TestParse_NormalisesNames(t *testing.T) {
	e, err := NewMatrixEngine([]Spec{
		spec("Too  Many Flags", map[string]float64{"limit": 0.5, "excess limit": 2}),
		spec("MAX ABS", map[string]float64{"limit": 1}),
	}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := e.Rules()
	if len(got) != 2 || got[0] != "too many flags" || got[1] != "max abs" {
		t.Errorf("unexpected rule order %v", got)
	}
	if e.Shape() != Matrix {
		t.Errorf("unexpected shape %q", e.Shape())
	}
}

func TestNamesAndKnown(t *testing.T) {
	names := Names(Vector)
	if len(names) != 7 {
		t.Errorf("expected 7 vector rules, got %d", len(names))
	}
	if !Known(Vector, "tmf") || Known(Vector, "bad quadrant") {
		t.Error("vector rule set is wrong")
	}
	if !Known(Matrix, "bad quadrant") || Known(Matrix, "sharps") {
		t.Error("matrix rule set is wrong")
	}
	if Names("cube") != nil {
		t.Error("expected no rules for an unknown shape")
	}
}

func TestSuggest(t *testing.T) {
	if got := Suggest(Vector, "edge"); got != "edges" {
		t.Errorf("Suggest(edge) = %q, want edges", got)
	}
	if got := Suggest(Matrix, "Bad  Antena"); got != "bad antenna" {
		t.Errorf("Suggest(Bad  Antena) = %q, want bad antenna", got)
	}
	if got := Suggest(Vector, "bad quadrant"); got != "" {
		t.Errorf("Suggest(bad quadrant) = %q, want no suggestion", got)
	}
}

func TestSpec_YAMLInlineParams(t *testing.T) {
	var s Spec
	src := "name: too many flags\naxis: Time\nlimit: 0.6\nexcess_limit: 3\n"
	if err := yaml.Unmarshal([]byte(src), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.Name != "too many flags" || s.Axis != "Time" {
		t.Errorf("unexpected spec %+v", s)
	}
	if s.Params["limit"] != 0.6 || s.Params["excess_limit"] != 3 || len(s.Params) != 2 {
		t.Errorf("unexpected params %v", s.Params)
	}
}

func TestReasonCodes(t *testing.T) {
	if ReasonCode("") != 0 || ReasonName(0) != "" {
		t.Error("code 0 must mean unflagged")
	}
	for _, r := range Reasons[1:] {
		if ReasonName(ReasonCode(r)) != r {
			t.Errorf("reason %q does not round trip", r)
		}
	}
}
