package rules

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/lucasnoah/skyflag/internal/flagcmd"
	"github.com/lucasnoah/skyflag/internal/view"
)

// Rule is one typed flagging test. Apply flags points in s and returns a
// command for each newly flagged point.
type Rule interface {
	Name() string
	Apply(s *State) []flagcmd.Command
}

// Options carries the metadata stamped on every generated command when the
// view does not supply it.
type Options struct {
	Intent       string
	Field        string
	ExtendFields []string
	Logger       *zap.Logger
}

// Outcome is the result of evaluating the rules against one view.
type Outcome struct {
	Commands []flagcmd.Command
	Flag     []bool
	Reason   []int
}

// Engine evaluates an ordered rule list against views of one shape.
type Engine struct {
	shape  Shape
	rules  []Rule
	opts   Options
	logger *zap.Logger
}

// NewEngine parses specs for shape. Unknown rule names fail here, before
// any data is touched.
func NewEngine(shape Shape, specs []Spec, opts Options) (*Engine, error) {
	parsed, err := Parse(shape, specs)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		shape:  shape,
		rules:  parsed,
		opts:   opts,
		logger: logger.Named(string(shape)),
	}, nil
}

// NewMatrixEngine returns an engine for 2-D views.
func NewMatrixEngine(specs []Spec, opts Options) (*Engine, error) {
	return NewEngine(Matrix, specs, opts)
}

// NewVectorEngine returns an engine for 1-D views.
func NewVectorEngine(specs []Spec, opts Options) (*Engine, error) {
	return NewEngine(Vector, specs, opts)
}

// Shape returns the view shape the engine accepts.
func (e *Engine) Shape() Shape { return e.shape }

// Rules returns the rule names in evaluation order.
func (e *Engine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name()
	}
	return names
}

// Evaluate runs every rule, in order, against v. The view itself is not
// modified; the returned outcome holds the updated flag plane.
func (e *Engine) Evaluate(v *view.View) (*Outcome, error) {
	want := 2
	if e.shape == Vector {
		want = 1
	}
	if v.Rank() != want {
		return nil, fmt.Errorf("%s engine: view %q has rank %d", e.shape, v.Description, v.Rank())
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}

	s := newState(v, e.opts, e.logger)
	out := &Outcome{}
	for _, r := range e.rules {
		if s.unflagged() == 0 {
			e.logger.Debug("all data flagged, skipping rule",
				zap.String("rule", r.Name()), zap.String("view", v.Description))
			continue
		}
		out.Commands = append(out.Commands, r.Apply(s)...)
	}
	out.Flag = s.Flag
	out.Reason = s.Reason
	return out, nil
}
