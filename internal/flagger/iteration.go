package flagger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lucasnoah/skyflag/internal/flagcmd"
	"github.com/lucasnoah/skyflag/internal/view"
)

// State is a position in the iteration state machine.
type State int

const (
	StateRunDataTask State = iota
	StateReuseView
	StateStop
)

func (s State) String() string {
	switch s {
	case StateRunDataTask:
		return "run data task"
	case StateReuseView:
		return "reuse view"
	}
	return "stop"
}

// IterationOutcome is what one pass of the loop produced and where the loop
// goes next. It is not modified after step returns it.
type IterationOutcome struct {
	Iteration int
	Views     []*view.View
	NewFlags  []flagcmd.Command
	Reasons   map[string][]int
	Next      State
	Stop      string
}

// accumulator is the only state the driver loop owns across iterations.
type accumulator struct {
	flags   []flagcmd.Command
	seen    map[string]bool
	applied map[string]bool
	reasons map[string][]int

	beforeRequested bool
	before          *Summary
}

func newAccumulator() *accumulator {
	return &accumulator{
		seen:    make(map[string]bool),
		applied: make(map[string]bool),
		reasons: make(map[string][]int),
	}
}

func (a *accumulator) add(out *IterationOutcome) {
	for _, c := range out.NewFlags {
		a.seen[c.Text] = true
		a.flags = append(a.flags, c)
	}
	for desc, plane := range out.Reasons {
		a.reasons[desc] = mergeReasons(a.reasons[desc], plane)
	}
}

// pending returns the text of accumulated commands not yet applied.
func (a *accumulator) pending() []string {
	var out []string
	for _, c := range a.flags {
		if !a.applied[c.Text] {
			out = append(out, c.Text)
		}
	}
	return out
}

func (a *accumulator) markApplied(texts []string) {
	for _, t := range texts {
		a.applied[t] = true
	}
}

// mergeReasons overlays the nonzero codes of plane onto dst.
func mergeReasons(dst, plane []int) []int {
	if len(dst) != len(plane) {
		return append([]int(nil), plane...)
	}
	for i, code := range plane {
		if code != 0 {
			dst[i] = code
		}
	}
	return dst
}

// step runs one iteration: obtain views, evaluate the rules and decide
// what happens next.
func (f *Flagger) step(ctx context.Context, iter int, from State, prev []*view.View, acc *accumulator) (*IterationOutcome, error) {
	out := &IterationOutcome{Iteration: iter, Reasons: make(map[string][]int)}

	var views []*view.View
	switch from {
	case StateRunDataTask:
		if iter > 1 {
			if err := f.applyPending(ctx, acc); err != nil {
				return nil, err
			}
		}
		var err error
		views, err = f.data.Run(ctx, f.cfg.Artifact)
		if err != nil {
			return nil, fmt.Errorf("data task: %w", err)
		}
	case StateReuseView:
		views = prev
	default:
		return nil, fmt.Errorf("cannot step from state %s", from)
	}
	out.Views = views

	if !describable(views) {
		f.logger.Warn("no view available, stopping",
			zap.Int("iteration", iter), zap.String("artifact", f.cfg.Artifact))
		out.Next, out.Stop = StateStop, StopNoView
		return out, nil
	}

	var found []flagcmd.Command
	next := make([]*view.View, 0, len(views))
	for _, v := range views {
		if !v.Describable() {
			continue
		}
		res, err := f.engine.Evaluate(v)
		if err != nil {
			return nil, fmt.Errorf("evaluate %q: %w", v.Description, err)
		}
		found = append(found, res.Commands...)
		out.Reasons[v.Description] = mergeReasons(out.Reasons[v.Description], res.Reason)

		// the reused view carries this pass's flags into the next one
		reused := v.Clone()
		reused.Flag = res.Flag
		reused.New = false
		next = append(next, reused)
	}

	// views that differ only in pol render the same text
	fresh := make(map[string]bool)
	for _, c := range flagcmd.Consolidate(found) {
		if acc.seen[c.Text] || fresh[c.Text] {
			continue
		}
		fresh[c.Text] = true
		out.NewFlags = append(out.NewFlags, c)
	}

	if len(out.NewFlags) == 0 {
		f.logger.Info("no new flags found, converged", zap.Int("iteration", iter))
		out.Next, out.Stop = StateStop, StopConverged
		return out, nil
	}
	f.logger.Warn("new flags found",
		zap.Int("iteration", iter), zap.Int("count", len(out.NewFlags)))

	switch {
	case iter >= f.cfg.NIter:
		out.Next, out.Stop = StateStop, StopMaxIterations
	case f.cfg.IterateDataTask:
		out.Next = StateRunDataTask
	default:
		out.Views = next
		out.Next = StateReuseView
	}
	return out, nil
}

func describable(views []*view.View) bool {
	for _, v := range views {
		if v != nil && v.Describable() {
			return true
		}
	}
	return false
}

// applyPending applies every accumulated command not applied yet. The
// first application is preceded by the "before" summary request.
func (f *Flagger) applyPending(ctx context.Context, acc *accumulator) error {
	pending := acc.pending()
	if len(pending) == 0 {
		return nil
	}
	var cmds []string
	if !acc.beforeRequested {
		cmds = append(cmds, flagcmd.SummaryCommand("before"))
	}
	cmds = append(cmds, pending...)

	summaries, err := f.setter.Run(ctx, f.cfg.Artifact, cmds)
	if err != nil {
		return fmt.Errorf("flag setter: %w", err)
	}
	if !acc.beforeRequested {
		acc.before = findSummary(summaries, "before")
		acc.beforeRequested = true
	}
	acc.markApplied(pending)
	f.logger.Debug("applied flags", zap.Int("count", len(pending)))
	return nil
}

// finish applies whatever is still pending, collects the before and after
// summaries, and packages the result.
func (f *Flagger) finish(ctx context.Context, acc *accumulator, views []*view.View, iter int, stop string) (*Result, error) {
	res := &Result{
		Artifact:   f.cfg.Artifact,
		Flags:      finalFlags(acc.flags),
		Reasons:    acc.reasons,
		Views:      views,
		Iterations: iter,
		Stop:       stop,
	}

	if len(acc.flags) == 0 {
		summaries, err := f.setter.Run(ctx, f.cfg.Artifact, []string{flagcmd.SummaryCommand("before")})
		if err != nil {
			return nil, fmt.Errorf("flag setter: %w", err)
		}
		res.Before = findSummary(summaries, "before")
		res.After = res.Before
		return res, nil
	}

	pending := acc.pending()
	var cmds []string
	if !acc.beforeRequested {
		cmds = append(cmds, flagcmd.SummaryCommand("before"))
	}
	cmds = append(cmds, pending...)
	cmds = append(cmds, flagcmd.SummaryCommand("after"))

	summaries, err := f.setter.Run(ctx, f.cfg.Artifact, cmds)
	if err != nil {
		return nil, fmt.Errorf("flag setter: %w", err)
	}
	acc.markApplied(pending)
	if acc.beforeRequested {
		res.Before = acc.before
	} else {
		res.Before = findSummary(summaries, "before")
	}
	res.After = findSummary(summaries, "after")

	// post-flagging view for reporting
	final, err := f.data.Run(ctx, f.cfg.Artifact)
	if err != nil {
		return nil, fmt.Errorf("data task: %w", err)
	}
	res.Views = final

	f.logger.Info("flagging complete",
		zap.String("artifact", f.cfg.Artifact),
		zap.Int("flags", len(res.Flags)),
		zap.Int("iterations", iter),
		zap.String("stop", stop))
	return res, nil
}

// finalFlags merges the commands of every iteration into one consolidated
// list with each canonical text once.
func finalFlags(flags []flagcmd.Command) []flagcmd.Command {
	if len(flags) == 0 {
		return flags
	}
	seen := make(map[string]bool)
	var out []flagcmd.Command
	for _, c := range flagcmd.Consolidate(flags) {
		if seen[c.Text] {
			continue
		}
		seen[c.Text] = true
		out = append(out, c)
	}
	return out
}

func findSummary(summaries []Summary, name string) *Summary {
	for i := range summaries {
		if summaries[i].Name == name {
			s := summaries[i]
			return &s
		}
	}
	return nil
}
