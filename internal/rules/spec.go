// Package rules implements the flagging rule engines: an ordered list of
// typed rules evaluated against a 1-D (vector) or 2-D (matrix) view, each
// rule flagging points and recording why.
package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// ErrUnknownRule is returned when a rule name is not valid for the shape.
var ErrUnknownRule = errors.New("unknown rule")

// Shape selects which engine and rule set applies.
type Shape string

const (
	Matrix Shape = "matrix"
	Vector Shape = "vector"
)

// Spec is a rule configuration record: a name, an optional axis and the
// rule's numeric parameters.
type Spec struct {
	Name   string             `yaml:"name" json:"name"`
	Axis   string             `yaml:"axis,omitempty" json:"axis,omitempty"`
	Params map[string]float64 `yaml:",inline" json:"params,omitempty"`
}

// param returns a required parameter. Keys are matched ignoring the
// difference between spaces and underscores.
func (s Spec) param(key string) (float64, error) {
	if v, ok := s.lookup(key); ok {
		return v, nil
	}
	return 0, fmt.Errorf("rule %q: missing parameter %q", s.Name, key)
}

func (s Spec) optional(key string, def float64) float64 {
	if v, ok := s.lookup(key); ok {
		return v
	}
	return def
}

func (s Spec) lookup(key string) (float64, bool) {
	for k, v := range s.Params {
		if normalize(k) == key {
			return v, true
		}
	}
	return 0, false
}

func normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// builder constructs a rule from its spec and lists the parameters it
// accepts.
type builder struct {
	params []string
	build  func(Spec) (Rule, error)
}

var matrixBuilders = map[string]builder{
	"bad quadrant":              {[]string{"limit", "frac_limit", "baseline_frac_limit"}, newBadQuadrant},
	"bad antenna":               {[]string{"lo_limit", "frac_limit", "number_limit", "minsample"}, newBadAntenna},
	"max abs":                   {[]string{"limit"}, newMaxAbs},
	"min abs":                   {[]string{"limit"}, newMinAbs},
	"nmedian":                   {[]string{"lo_limit", "hi_limit"}, newNMedian},
	"outlier":                   {[]string{"limit", "minsample"}, newOutlier(bothSides)},
	"high outlier":              {[]string{"limit", "minsample"}, newOutlier(highSide)},
	"low outlier":               {[]string{"limit", "minsample"}, newOutlier(lowSide)},
	"too many flags":            {[]string{"limit", "excess_limit"}, newTooManyFlags},
	"too many entirely flagged": {[]string{"limit"}, newEntirelyFlagged},
}

var vectorBuilders = map[string]builder{
	"edges":   {[]string{"limit"}, newEdges},
	"min abs": {[]string{"limit"}, newMinAbs},
	"nmedian": {[]string{"lo_limit", "hi_limit"}, newNMedian},
	"outlier": {[]string{"limit", "minsample"}, newOutlier(bothSides)},
	"sharps":  {[]string{"limit"}, newSharps},
	"diffmad": {[]string{"limit", "nchan_limit"}, newDiffMAD},
	"tmf":     {[]string{"frac_limit", "nchan_limit"}, newTMF},
}

func buildersFor(shape Shape) (map[string]builder, error) {
	switch shape {
	case Matrix:
		return matrixBuilders, nil
	case Vector:
		return vectorBuilders, nil
	}
	return nil, fmt.Errorf("unknown view shape %q", shape)
}

// Names returns the rule names valid for shape, sorted.
func Names(shape Shape) []string {
	b, err := buildersFor(shape)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(b))
	for n := range b {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Known reports whether name is a rule of the given shape.
func Known(shape Shape, name string) bool {
	b, err := buildersFor(shape)
	if err != nil {
		return false
	}
	_, ok := b[canonicalName(name)]
	return ok
}

// Suggest returns the known rule name closest to name for shape, or "" when
// nothing is near enough to be a likely typo.
func Suggest(shape Shape, name string) string {
	name = canonicalName(name)
	best, bestDist := "", len(name)/3+2
	for _, known := range Names(shape) {
		if d := levenshtein.ComputeDistance(name, known); d < bestDist {
			best, bestDist = known, d
		}
	}
	return best
}

func canonicalName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Parse turns specs into typed rules, preserving order. Unknown names,
// unknown parameters and missing required parameters are errors.
func Parse(shape Shape, specs []Spec) ([]Rule, error) {
	builders, err := buildersFor(shape)
	if err != nil {
		return nil, err
	}
	out := make([]Rule, 0, len(specs))
	for i, spec := range specs {
		r, err := build(builders, shape, spec)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Check reports whether spec parses as a rule of the given shape.
func Check(shape Shape, spec Spec) error {
	builders, err := buildersFor(shape)
	if err != nil {
		return err
	}
	_, err = build(builders, shape, spec)
	return err
}

func build(builders map[string]builder, shape Shape, spec Spec) (Rule, error) {
	b, ok := builders[canonicalName(spec.Name)]
	if !ok {
		return nil, fmt.Errorf("%w %q for %s views", ErrUnknownRule, spec.Name, shape)
	}
	for k := range spec.Params {
		if !contains(b.params, normalize(k)) {
			return nil, fmt.Errorf("rule %q does not take parameter %q", spec.Name, k)
		}
	}
	return b.build(spec)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
