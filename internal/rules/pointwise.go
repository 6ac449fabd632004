package rules

import (
	"math"

	"go.uber.org/zap"

	"github.com/lucasnoah/skyflag/internal/flagcmd"
)

// pointRule flags each unflagged point for which test holds.
type pointRule struct {
	name string
	test func(s *State, v float64) bool
}

func (r pointRule) Name() string { return r.name }

func (r pointRule) Apply(s *State) []flagcmd.Command {
	var cmds []flagcmd.Command
	for i := range s.Flag {
		if s.Flag[i] || !r.test(s, s.data(i)) {
			continue
		}
		if c, ok := s.flag(i, r.name, r.name); ok {
			cmds = append(cmds, c)
		}
	}
	return cmds
}

func newMaxAbs(spec Spec) (Rule, error) {
	limit, err := spec.param("limit")
	if err != nil {
		return nil, err
	}
	return pointRule{name: "max abs", test: func(_ *State, v float64) bool {
		return math.Abs(v) > limit
	}}, nil
}

func newMinAbs(spec Spec) (Rule, error) {
	limit, err := spec.param("limit")
	if err != nil {
		return nil, err
	}
	return pointRule{name: "min abs", test: func(_ *State, v float64) bool {
		return math.Abs(v) < limit
	}}, nil
}

func newNMedian(spec Spec) (Rule, error) {
	lo, err := spec.param("lo_limit")
	if err != nil {
		return nil, err
	}
	hi, err := spec.param("hi_limit")
	if err != nil {
		return nil, err
	}
	return guarded{pointRule{name: "nmedian", test: func(s *State, v float64) bool {
		return v > hi*s.Median || v < lo*s.Median
	}}, 0}, nil
}

type side int

const (
	bothSides side = iota
	highSide
	lowSide
)

var outlierNames = map[side]string{
	bothSides: "outlier",
	highSide:  "high outlier",
	lowSide:   "low outlier",
}

func newOutlier(sd side) func(Spec) (Rule, error) {
	return func(spec Spec) (Rule, error) {
		limit, err := spec.param("limit")
		if err != nil {
			return nil, err
		}
		minSample := int(spec.optional("minsample", 0))
		return guarded{pointRule{name: outlierNames[sd], test: func(s *State, v float64) bool {
			switch sd {
			case highSide:
				return v-s.Median > limit*s.MAD
			case lowSide:
				return s.Median-v > limit*s.MAD
			}
			return math.Abs(v-s.Median) > limit*s.MAD
		}}, minSample}, nil
	}
}

// guarded skips a statistics-based rule when the pass has no statistics or
// fewer valid samples than minSample.
type guarded struct {
	Rule
	minSample int
}

func (g guarded) Apply(s *State) []flagcmd.Command {
	if !s.HasStats || s.NValid < g.minSample {
		s.logger.Debug("too few valid samples, skipping rule",
			zap.String("rule", g.Name()), zap.Int("valid", s.NValid), zap.Int("minsample", g.minSample))
		return nil
	}
	return g.Rule.Apply(s)
}
