package rules

import (
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/lucasnoah/skyflag/internal/flagcmd"
	"github.com/lucasnoah/skyflag/internal/stats"
)

// lines returns the flat indices of each row (byRow) or each column.
func (s *State) lines(byRow bool) [][]int {
	if byRow {
		out := make([][]int, s.rows)
		for r := range out {
			out[r] = s.row(r)
		}
		return out
	}
	out := make([][]int, s.cols)
	for c := range out {
		out[c] = s.col(c)
	}
	return out
}

// byRow reports whether axis names the row axis. An empty axis selects
// rows; a name matching neither axis selects rows as well.
func (s *State) byRow(axis string) bool {
	if axis == "" || len(s.view.Axes) < 2 {
		return true
	}
	return !strings.EqualFold(strings.TrimSpace(axis), s.view.Axes[1].Name)
}

// tooManyFlags flags the rest of any row or column whose flagged fraction,
// not counting no-data points, exceeds limit, or whose flagged count
// exceeds the median flagged count by more than the excess limit. The
// median count includes no-data points.
type tooManyFlags struct {
	axis        string
	limit       float64
	excessLimit float64
	hasExcess   bool
}

func newTooManyFlags(spec Spec) (Rule, error) {
	limit, err := spec.param("limit")
	if err != nil {
		return nil, err
	}
	r := &tooManyFlags{axis: spec.Axis, limit: limit}
	r.excessLimit, r.hasExcess = spec.lookup("excess_limit")
	return r, nil
}

func (r *tooManyFlags) Name() string { return "too many flags" }

func (r *tooManyFlags) Apply(s *State) []flagcmd.Command {
	lines := s.lines(s.byRow(r.axis))
	nflagged := make([]float64, len(lines))
	for l, idx := range lines {
		for _, i := range idx {
			if s.Flag[i] {
				nflagged[l]++
			}
		}
	}
	median, _ := stats.Median(nflagged)

	var cmds []flagcmd.Command
	for l, idx := range lines {
		flagged, present := 0, 0
		for _, i := range idx {
			if s.view.NoData[i] {
				continue
			}
			present++
			if s.Flag[i] {
				flagged++
			}
		}
		tooMany := stats.Fraction(flagged, present) > r.limit
		if r.hasExcess && nflagged[l]-median > r.excessLimit {
			tooMany = true
		}
		if tooMany {
			cmds = append(cmds, s.flagAll(idx, r.Name(), r.Name())...)
		}
	}
	return cmds
}

// entirelyFlagged flags the whole view when the fraction of rows (or
// columns) that are completely flagged exceeds limit.
type entirelyFlagged struct {
	axis  string
	limit float64
}

func newEntirelyFlagged(spec Spec) (Rule, error) {
	limit, err := spec.param("limit")
	if err != nil {
		return nil, err
	}
	return &entirelyFlagged{axis: spec.Axis, limit: limit}, nil
}

func (r *entirelyFlagged) Name() string { return "too many entirely flagged" }

func (r *entirelyFlagged) Apply(s *State) []flagcmd.Command {
	lines := s.lines(s.byRow(r.axis))
	full := 0
	for _, idx := range lines {
		all := true
		for _, i := range idx {
			if !s.Flag[i] {
				all = false
				break
			}
		}
		if all {
			full++
		}
	}
	if stats.Fraction(full, len(lines)) <= r.limit {
		return nil
	}
	all := make([]int, len(s.Flag))
	for i := range all {
		all[i] = i
	}
	return s.flagAll(all, r.Name(), r.Name())
}

// badAntenna applies to views whose rows are antennas. An antenna with
// more low outliers than number_limit, or a larger fraction of them than
// frac_limit, has its low outliers flagged as such and the rest of its row
// flagged as a bad antenna.
type badAntenna struct {
	loLimit     float64
	fracLimit   float64
	numberLimit float64
	minSample   int
}

func newBadAntenna(spec Spec) (Rule, error) {
	r := &badAntenna{}
	var err error
	if r.loLimit, err = spec.param("lo_limit"); err != nil {
		return nil, err
	}
	if r.fracLimit, err = spec.param("frac_limit"); err != nil {
		return nil, err
	}
	if r.numberLimit, err = spec.param("number_limit"); err != nil {
		return nil, err
	}
	r.minSample = int(spec.optional("minsample", 0))
	return r, nil
}

func (r *badAntenna) Name() string { return "bad antenna" }

func (r *badAntenna) Apply(s *State) []flagcmd.Command {
	if s.view.Axes[0].Kind() != flagcmd.KindAntenna {
		return nil
	}
	if !s.HasStats || s.NValid < r.minSample {
		s.logger.Debug("too few valid samples, skipping rule",
			zap.String("rule", r.Name()), zap.Int("valid", s.NValid))
		return nil
	}
	var cmds []flagcmd.Command
	for row := 0; row < s.rows; row++ {
		idx := s.row(row)
		var low []int
		valid := 0
		for _, i := range idx {
			if s.Flag[i] {
				continue
			}
			valid++
			if s.Median-s.data(i) > r.loLimit*s.MAD {
				low = append(low, i)
			}
		}
		if len(low) == 0 {
			continue
		}
		if float64(len(low)) > r.numberLimit || stats.Fraction(len(low), valid) > r.fracLimit {
			cmds = append(cmds, s.flagAll(low, r.Name(), "low outlier")...)
			cmds = append(cmds, s.flagAll(idx, r.Name(), "bad antenna")...)
		}
	}
	return cmds
}

// badQuadrant splits the row axis into four quadrants. For each antenna
// (taken from the column labels, which name baselines as "a&b") and
// quadrant it measures the fraction of points valid on entry that an
// outlier test would newly flag. Above frac_limit the whole
// antenna×quadrant block is flagged; otherwise each baseline of the block is
// checked against baseline_frac_limit.
type badQuadrant struct {
	limit             float64
	fracLimit         float64
	baselineFracLimit float64
}

func newBadQuadrant(spec Spec) (Rule, error) {
	r := &badQuadrant{}
	var err error
	if r.limit, err = spec.param("limit"); err != nil {
		return nil, err
	}
	if r.fracLimit, err = spec.param("frac_limit"); err != nil {
		return nil, err
	}
	if r.baselineFracLimit, err = spec.param("baseline_frac_limit"); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *badQuadrant) Name() string { return "bad quadrant" }

func (r *badQuadrant) Apply(s *State) []flagcmd.Command {
	if !s.HasStats {
		return nil
	}
	entry := append([]bool(nil), s.Flag...)
	outlier := make([]bool, len(entry))
	for i := range entry {
		if !entry[i] && math.Abs(s.data(i)-s.Median) > r.limit*s.MAD {
			outlier[i] = true
		}
	}

	antennas, antCols := antennaColumns(s)

	var cmds []flagcmd.Command
	for q := 0; q < 4; q++ {
		lo, hi := q*s.rows/4, (q+1)*s.rows/4
		if lo == hi {
			continue
		}
		for _, ant := range antennas {
			var block []int
			valid, bad := 0, 0
			for _, c := range antCols[ant] {
				for row := lo; row < hi; row++ {
					i := row*s.cols + c
					block = append(block, i)
					if !entry[i] {
						valid++
						if outlier[i] {
							bad++
						}
					}
				}
			}
			if stats.Fraction(bad, valid) > r.fracLimit {
				cmds = append(cmds, s.flagAll(block, r.Name(), "bad quadrant")...)
				continue
			}
			for _, c := range antCols[ant] {
				var baseline []int
				valid, bad := 0, 0
				for row := lo; row < hi; row++ {
					i := row*s.cols + c
					baseline = append(baseline, i)
					if !entry[i] {
						valid++
						if outlier[i] {
							bad++
						}
					}
				}
				if stats.Fraction(bad, valid) > r.baselineFracLimit {
					cmds = append(cmds, s.flagAll(baseline, r.Name(), "bad baseline")...)
				}
			}
		}
	}
	return cmds
}

// antennaColumns maps each antenna named in the column labels to the
// columns it takes part in, with antennas in order of first appearance.
func antennaColumns(s *State) ([]string, map[string][]int) {
	axis := s.view.Axes[1]
	var order []string
	cols := make(map[string][]int)
	for c := 0; c < s.cols; c++ {
		for _, ant := range strings.Split(axis.Label(c), "&") {
			if _, seen := cols[ant]; !seen {
				order = append(order, ant)
			}
			cols[ant] = append(cols[ant], c)
		}
	}
	return order, cols
}
