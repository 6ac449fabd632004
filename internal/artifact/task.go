package artifact

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lucasnoah/skyflag/internal/flagcmd"
	"github.com/lucasnoah/skyflag/internal/flagger"
	"github.com/lucasnoah/skyflag/internal/view"
)

// Summary and Counts are the controller's summary report types.
type (
	Summary = flagger.Summary
	Counts  = flagger.Counts
)

// DataTask loads views from artifact files.
type DataTask struct {
	logger *zap.Logger
}

// NewDataTask creates a DataTask.
func NewDataTask(logger *zap.Logger) *DataTask {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataTask{logger: logger.Named("datatask")}
}

// Run returns the views stored in the artifact file, all marked new.
func (t *DataTask) Run(ctx context.Context, path string) ([]*view.View, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, err := Load(path)
	if err != nil {
		return nil, err
	}
	for _, v := range a.Views {
		v.New = true
	}
	t.logger.Debug("loaded views", zap.String("artifact", path), zap.Int("views", len(a.Views)))
	return a.Views, nil
}

// FlagSetter applies flag command text to artifact files.
type FlagSetter struct {
	logger *zap.Logger
}

// NewFlagSetter creates a FlagSetter.
func NewFlagSetter(logger *zap.Logger) *FlagSetter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlagSetter{logger: logger.Named("flagsetter")}
}

// Run applies commands in order to the artifact at path and rewrites it.
// Summary commands are answered with the state at their position in the
// list.
func (s *FlagSetter) Run(ctx context.Context, path string, commands []string) ([]flagger.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, err := Load(path)
	if err != nil {
		return nil, err
	}

	var summaries []flagger.Summary
	changed := 0
	for _, text := range commands {
		sel, err := flagcmd.ParseSelection(text)
		if err != nil {
			return nil, fmt.Errorf("command %q: %w", text, err)
		}
		if sel.IsSummary() {
			summaries = append(summaries, a.Summary(sel.Name))
			continue
		}
		n := a.Apply(sel)
		if n == 0 {
			s.logger.Debug("command selected no unflagged data", zap.String("flagcmd", text))
		}
		changed += n
	}

	if changed > 0 {
		if err := a.Save(path); err != nil {
			return nil, fmt.Errorf("save artifact: %w", err)
		}
	}
	s.logger.Info("applied flag commands",
		zap.String("artifact", path),
		zap.Int("commands", len(commands)),
		zap.Int("newly_flagged", changed))
	return summaries, nil
}

// Apply flags every point of every view matching sel and returns how many
// points were newly flagged. Views that fail validation are left alone.
func (a *Artifact) Apply(sel flagcmd.Selection) int {
	n := 0
	for _, v := range a.Views {
		if !viewMatches(v, sel) || v.Validate() != nil {
			continue
		}
		for i := range v.Data {
			if v.Flag[i] || !pointMatches(v, i, sel) {
				continue
			}
			v.Flag[i] = true
			n++
		}
	}
	return n
}

func viewMatches(v *view.View, sel flagcmd.Selection) bool {
	if !spwMatches(v.Spw, sel.Spw) {
		return false
	}
	if sel.Intent != "" && v.Intent != "" && !strings.EqualFold(sel.Intent, v.Intent) {
		return false
	}
	if sel.Field != "" && v.Field != "" && sel.Field != v.Field {
		return false
	}
	return true
}

// spwMatches compares comma-separated spw lists; an empty or "*" selection
// matches everything.
func spwMatches(have, want string) bool {
	if want == "" || want == "*" {
		return true
	}
	for _, w := range strings.Split(want, ",") {
		for _, h := range strings.Split(have, ",") {
			if strings.TrimSpace(w) == strings.TrimSpace(h) {
				return true
			}
		}
	}
	return false
}

// pointMatches checks the channel, antenna and time clauses against the
// coordinates of point i. Clauses for axes the view lacks do not restrict
// the selection, except antenna, which then falls back to the view's own
// antenna.
func pointMatches(v *view.View, i int, sel flagcmd.Selection) bool {
	pos := []int{i / v.Cols(), i % v.Cols()}
	for a, axis := range v.Axes {
		switch axis.Kind() {
		case flagcmd.KindChannel:
			if len(sel.Channels) > 0 && !inRanges(sel.Channels, int(axis.Data[pos[a]])) {
				return false
			}
		case flagcmd.KindTime:
			t := axis.Data[pos[a]]
			if sel.Start != nil && t < *sel.Start {
				return false
			}
			if sel.End != nil && t > *sel.End {
				return false
			}
		}
	}
	if sel.Antenna == "" {
		return true
	}
	return antennaMatches(pointAntennas(v, i), splitAntennas(sel.Antenna))
}

func inRanges(ranges []flagcmd.ChannelRange, ch int) bool {
	for _, r := range ranges {
		if r.Contains(ch) {
			return true
		}
	}
	return false
}

// pointAntennas returns the antennas involved in point i: the labels of
// its antenna and baseline axes, or the view's own antenna.
func pointAntennas(v *view.View, i int) []string {
	pos := []int{i / v.Cols(), i % v.Cols()}
	var out []string
	for a, axis := range v.Axes {
		switch axis.Kind() {
		case flagcmd.KindAntenna, flagcmd.KindBaseline:
			out = append(out, splitAntennas(axis.Label(pos[a]))...)
		}
	}
	if len(out) == 0 && v.Ant != "" {
		out = splitAntennas(v.Ant)
	}
	return out
}

func splitAntennas(s string) []string {
	var out []string
	for _, p := range strings.Split(s, "&") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// antennaMatches selects every point involving a single requested antenna,
// or exactly the requested baseline when several are named.
func antennaMatches(have, want []string) bool {
	if len(have) == 0 || len(want) == 0 {
		return false
	}
	if len(want) == 1 {
		for _, h := range have {
			if h == want[0] {
				return true
			}
		}
		return false
	}
	if len(have) != len(want) {
		return false
	}
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
