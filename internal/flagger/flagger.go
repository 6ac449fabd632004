// Package flagger drives the iterative flagging loop: it obtains views from
// a data task, evaluates a rule engine against them until no new flags
// appear, and applies the accumulated commands through a flag-setting task.
package flagger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lucasnoah/skyflag/internal/flagcmd"
	"github.com/lucasnoah/skyflag/internal/rules"
	"github.com/lucasnoah/skyflag/internal/view"
)

// DataTask computes the views to inspect from the named artifact.
type DataTask interface {
	Run(ctx context.Context, artifact string) ([]*view.View, error)
}

// FlagSetter applies textual flag commands to the named artifact and
// returns the summary reports requested by mode='summary' commands.
type FlagSetter interface {
	Run(ctx context.Context, artifact string, commands []string) ([]Summary, error)
}

// Evaluator runs an ordered rule list against one view. *rules.Engine
// implements it.
type Evaluator interface {
	Evaluate(v *view.View) (*rules.Outcome, error)
}

// Counts is a flagged/total pair.
type Counts struct {
	Flagged int `json:"flagged"`
	Total   int `json:"total"`
}

// Fraction returns the flagged fraction, or 0 for an empty total.
func (c Counts) Fraction() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Flagged) / float64(c.Total)
}

// Summary is a named flagging summary report.
type Summary struct {
	Name    string            `json:"name"`
	Counts                    // whole artifact
	Spw     map[string]Counts `json:"spw,omitempty"`
	Antenna map[string]Counts `json:"antenna,omitempty"`
}

// Config controls one controller run.
type Config struct {
	Artifact        string
	NIter           int
	IterateDataTask bool
}

// Stop reasons recorded on the result.
const (
	StopConverged     = "converged"
	StopMaxIterations = "max iterations"
	StopNoView        = "no view"
)

// Result is the outcome of a controller run.
type Result struct {
	Artifact   string            `json:"artifact"`
	Flags      []flagcmd.Command `json:"flags"`
	Reasons    map[string][]int  `json:"reasons,omitempty"`
	Before     *Summary          `json:"before,omitempty"`
	After      *Summary          `json:"after,omitempty"`
	Views      []*view.View      `json:"views,omitempty"`
	Iterations int               `json:"iterations"`
	Stop       string            `json:"stop"`
}

// FlagTexts returns the canonical text of every accumulated command.
func (r *Result) FlagTexts() []string {
	out := make([]string, len(r.Flags))
	for i, c := range r.Flags {
		out[i] = c.Text
	}
	return out
}

// Flagger is the iteration controller for one view shape.
type Flagger struct {
	engine Evaluator
	data   DataTask
	setter FlagSetter
	cfg    Config
	logger *zap.Logger
}

// New creates a controller around an already built engine.
func New(engine Evaluator, data DataTask, setter FlagSetter, cfg Config, logger *zap.Logger) *Flagger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NIter < 1 {
		cfg.NIter = 1
	}
	return &Flagger{
		engine: engine,
		data:   data,
		setter: setter,
		cfg:    cfg,
		logger: logger.Named("flagger"),
	}
}

// NewMatrixFlagger builds a controller with a matrix rule engine. Unknown
// rule names are returned as errors wrapping rules.ErrUnknownRule.
func NewMatrixFlagger(specs []rules.Spec, opts rules.Options, data DataTask, setter FlagSetter, cfg Config) (*Flagger, error) {
	engine, err := rules.NewMatrixEngine(specs, opts)
	if err != nil {
		return nil, err
	}
	return New(engine, data, setter, cfg, opts.Logger), nil
}

// NewVectorFlagger builds a controller with a vector rule engine.
func NewVectorFlagger(specs []rules.Spec, opts rules.Options, data DataTask, setter FlagSetter, cfg Config) (*Flagger, error) {
	engine, err := rules.NewVectorEngine(specs, opts)
	if err != nil {
		return nil, err
	}
	return New(engine, data, setter, cfg, opts.Logger), nil
}

// Run executes the loop and applies the resulting flags. Collaborator
// errors are returned wrapped; degenerate data ends the loop early with a
// well-formed result.
func (f *Flagger) Run(ctx context.Context) (*Result, error) {
	acc := newAccumulator()
	var views []*view.View
	next := StateRunDataTask
	stop := StopMaxIterations
	iter := 0

	for next != StateStop {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iter++
		out, err := f.step(ctx, iter, next, views, acc)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iter, err)
		}
		acc.add(out)
		views = out.Views
		next = out.Next
		if out.Stop != "" {
			stop = out.Stop
		}
	}

	return f.finish(ctx, acc, views, iter, stop)
}
