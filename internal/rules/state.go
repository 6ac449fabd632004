package rules

import (
	"go.uber.org/zap"

	"github.com/lucasnoah/skyflag/internal/flagcmd"
	"github.com/lucasnoah/skyflag/internal/stats"
	"github.com/lucasnoah/skyflag/internal/view"
)

// State is the mutable flag and reason planes shared by the rules of one
// evaluation pass, together with the statistics computed at its start.
// Rules only ever set flags; nothing in a pass clears one.
type State struct {
	view   *view.View
	Flag   []bool
	Reason []int
	rows   int
	cols   int

	// Statistics of the data unflagged when the pass began.
	Median   float64
	MAD      float64
	NValid   int
	HasStats bool

	opts   Options
	logger *zap.Logger
}

func newState(v *view.View, opts Options, logger *zap.Logger) *State {
	s := &State{
		view:   v,
		Flag:   append([]bool(nil), v.Flag...),
		Reason: make([]int, len(v.Data)),
		rows:   v.Rows(),
		cols:   v.Cols(),
		opts:   opts,
		logger: logger,
	}
	valid := v.Valid()
	s.NValid = len(valid)
	s.Median, s.MAD, s.HasStats = stats.MedianAndMAD(valid)
	return s
}

// View returns the view being evaluated.
func (s *State) View() *view.View { return s.view }

func (s *State) data(i int) float64 { return s.view.Data[i] }

func (s *State) unflagged() int {
	n := 0
	for _, f := range s.Flag {
		if !f {
			n++
		}
	}
	return n
}

// flag marks point i for reason and returns the matching command. It
// returns false when the point is already flagged.
func (s *State) flag(i int, rule, reason string) (flagcmd.Command, bool) {
	if s.Flag[i] {
		return flagcmd.Command{}, false
	}
	s.Flag[i] = true
	s.Reason[i] = ReasonCode(reason)
	return s.command(i, rule, reason), true
}

// flagAll flags every listed point that is not yet flagged.
func (s *State) flagAll(idx []int, rule, reason string) []flagcmd.Command {
	var cmds []flagcmd.Command
	for _, i := range idx {
		if c, ok := s.flag(i, rule, reason); ok {
			cmds = append(cmds, c)
		}
	}
	return cmds
}

func (s *State) command(i int, rule, reason string) flagcmd.Command {
	v := s.view
	pos := []int{i / s.cols, i % s.cols}
	names := make([]string, len(v.Axes))
	coords := make([]flagcmd.Coord, len(v.Axes))
	for a, axis := range v.Axes {
		names[a] = axis.Name
		coords[a] = axis.Coord(pos[a])
	}
	return flagcmd.New(flagcmd.Command{
		Filename:     v.Filename,
		RuleName:     rule,
		Reason:       reason,
		Spw:          v.Spw,
		Antenna:      v.Ant,
		Intent:       firstNonEmpty(v.Intent, s.opts.Intent),
		Pol:          v.Pol,
		Field:        firstNonEmpty(v.Field, s.opts.Field),
		ExtendFields: s.opts.ExtendFields,
		AxisNames:    names,
		FlagCoords:   coords,
		ChannelAxis:  v.ChannelAxis,
	})
}

// row returns the flat indices of row r.
func (s *State) row(r int) []int {
	idx := make([]int, s.cols)
	for c := range idx {
		idx[c] = r*s.cols + c
	}
	return idx
}

// col returns the flat indices of column c.
func (s *State) col(c int) []int {
	idx := make([]int, s.rows)
	for r := range idx {
		idx[r] = r*s.cols + c
	}
	return idx
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
