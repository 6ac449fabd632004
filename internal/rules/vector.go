package rules

import (
	"math"

	"go.uber.org/zap"

	"github.com/lucasnoah/skyflag/internal/flagcmd"
	"github.com/lucasnoah/skyflag/internal/stats"
)

// validIndices returns the positions of unflagged points, in order.
func (s *State) validIndices() []int {
	var out []int
	for i, f := range s.Flag {
		if !f {
			out = append(out, i)
		}
	}
	return out
}

// edges scans inwards from each end of the spectrum for the first
// channel-to-channel difference below limit × the median difference,
// within the first quarter of differences from that end. Channels outside
// that point are flagged. When no such point is found, only the outermost
// channel is flagged.
type edges struct {
	limit float64
}

func newEdges(spec Spec) (Rule, error) {
	limit, err := spec.param("limit")
	if err != nil {
		return nil, err
	}
	return &edges{limit: limit}, nil
}

func (r *edges) Name() string { return "edges" }

func (r *edges) Apply(s *State) []flagcmd.Command {
	valid := s.validIndices()
	if len(valid) < 2 {
		return nil
	}
	diff := make([]float64, len(valid)-1)
	for k := range diff {
		diff[k] = math.Abs(s.data(valid[k+1]) - s.data(valid[k]))
	}
	median, _ := stats.Median(diff)
	threshold := r.limit * median
	// a flat run gives a zero threshold; an unchanged channel is then inside
	below := func(d float64) bool {
		return d < threshold || (threshold == 0 && d == 0)
	}
	quarter := len(diff) / 4
	if quarter < 1 {
		quarter = 1
	}

	var cmds []flagcmd.Command

	start := -1
	for k := 0; k < quarter; k++ {
		if below(diff[k]) {
			start = k
			break
		}
	}
	if start < 0 {
		s.logger.Warn("no lower edge found, flagging first channel",
			zap.String("view", s.view.Description), zap.String("spw", s.view.Spw))
		start = 1
	}
	cmds = append(cmds, s.flagAll(valid[:start], r.Name(), r.Name())...)

	end := -1
	for k := len(diff) - 1; k >= len(diff)-quarter; k-- {
		if below(diff[k]) {
			end = k + 1
			break
		}
	}
	if end < 0 {
		s.logger.Warn("no upper edge found, flagging last channel",
			zap.String("view", s.view.Description), zap.String("spw", s.view.Spw))
		end = len(valid) - 2
	}
	cmds = append(cmds, s.flagAll(valid[end+1:], r.Name(), r.Name())...)
	return cmds
}

// adjacent returns the channel-to-channel differences of the current data
// and whether both channels of each pair are unflagged.
func (s *State) adjacent() (diff []float64, ok []bool) {
	n := len(s.Flag)
	if n < 2 {
		return nil, nil
	}
	diff = make([]float64, n-1)
	ok = make([]bool, n-1)
	for k := range diff {
		diff[k] = math.Abs(s.data(k+1) - s.data(k))
		ok[k] = !s.Flag[k] && !s.Flag[k+1]
	}
	return diff, ok
}

// sharps flags both channels of every jump larger than limit, then grows
// each flagged span outwards while the neighbouring difference exceeds
// twice the median of the remaining differences.
type sharps struct {
	limit float64
}

func newSharps(spec Spec) (Rule, error) {
	limit, err := spec.param("limit")
	if err != nil {
		return nil, err
	}
	return &sharps{limit: limit}, nil
}

func (r *sharps) Name() string { return "sharps" }

func (r *sharps) Apply(s *State) []flagcmd.Command {
	diff, ok := s.adjacent()
	sharp := make([]bool, len(diff))
	var quiet []float64
	for k := range diff {
		if !ok[k] {
			continue
		}
		if diff[k] > r.limit {
			sharp[k] = true
		} else {
			quiet = append(quiet, diff[k])
		}
	}
	median, hasMedian := stats.Median(quiet)

	var cmds []flagcmd.Command
	for k := range diff {
		if !sharp[k] {
			continue
		}
		cmds = append(cmds, s.flagAll([]int{k, k + 1}, r.Name(), r.Name())...)
		if !hasMedian {
			continue
		}
		for j := k - 1; j >= 0 && ok[j] && !sharp[j] && diff[j] > 2*median; j-- {
			cmds = append(cmds, s.flagAll([]int{j}, r.Name(), r.Name())...)
		}
		for j := k + 1; j < len(diff) && ok[j] && !sharp[j] && diff[j] > 2*median; j++ {
			cmds = append(cmds, s.flagAll([]int{j + 1}, r.Name(), r.Name())...)
		}
	}
	return cmds
}

// diffMAD flags both channels of every difference deviating from the
// median difference by more than limit × MAD. When nchan_limit or more
// differences are bad, the whole vector is flagged instead.
type diffMAD struct {
	limit      float64
	nchanLimit int
}

func newDiffMAD(spec Spec) (Rule, error) {
	limit, err := spec.param("limit")
	if err != nil {
		return nil, err
	}
	nchan, err := spec.param("nchan_limit")
	if err != nil {
		return nil, err
	}
	return &diffMAD{limit: limit, nchanLimit: int(nchan)}, nil
}

func (r *diffMAD) Name() string { return "diffmad" }

func (r *diffMAD) Apply(s *State) []flagcmd.Command {
	diff, ok := s.adjacent()
	var valid []float64
	for k := range diff {
		if ok[k] {
			valid = append(valid, diff[k])
		}
	}
	median, mad, has := stats.MedianAndMAD(valid)
	if !has {
		return nil
	}
	var bad []int
	for k := range diff {
		if ok[k] && math.Abs(diff[k]-median) > r.limit*mad {
			bad = append(bad, k)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	if len(bad) >= r.nchanLimit {
		return s.flagAll(s.validIndices(), r.Name(), r.Name())
	}
	var idx []int
	for _, k := range bad {
		idx = append(idx, k, k+1)
	}
	return s.flagAll(idx, r.Name(), r.Name())
}

// tmf flags every remaining channel when the flagged fraction reaches
// frac_limit or the flagged count reaches nchan_limit.
type tmf struct {
	fracLimit  float64
	nchanLimit int
}

func newTMF(spec Spec) (Rule, error) {
	frac, err := spec.param("frac_limit")
	if err != nil {
		return nil, err
	}
	nchan, err := spec.param("nchan_limit")
	if err != nil {
		return nil, err
	}
	return &tmf{fracLimit: frac, nchanLimit: int(nchan)}, nil
}

func (r *tmf) Name() string { return "tmf" }

func (r *tmf) Apply(s *State) []flagcmd.Command {
	flagged := len(s.Flag) - s.unflagged()
	if flagged == 0 {
		return nil
	}
	if stats.Fraction(flagged, len(s.Flag)) >= r.fracLimit || flagged >= r.nchanLimit {
		return s.flagAll(s.validIndices(), r.Name(), r.Name())
	}
	return nil
}
