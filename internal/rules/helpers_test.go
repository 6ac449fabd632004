package rules

import (
	"sort"
	"testing"

	"github.com/lucasnoah/skyflag/internal/flagcmd"
	"github.com/lucasnoah/skyflag/internal/view"
)

func channels(n int) view.Axis {
	a := view.Axis{Name: "Channels"}
	for i := 0; i < n; i++ {
		a.Data = append(a.Data, float64(i))
	}
	return a
}

func labelled(name string, labels ...string) view.Axis {
	a := view.Axis{Name: name, Labels: labels}
	for i := range labels {
		a.Data = append(a.Data, float64(i))
	}
	return a
}

func vector(data ...float64) *view.View {
	v := view.NewVector(channels(len(data)), data)
	v.Description = "spw0 XX"
	v.Spw = "0"
	v.Pol = "XX"
	return v
}

func spec(name string, params map[string]float64) Spec {
	return Spec{Name: name, Params: params}
}

func mustEngine(t *testing.T, shape Shape, specs ...Spec) *Engine {
	t.Helper()
	e, err := NewEngine(shape, specs, Options{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func evaluate(t *testing.T, e *Engine, v *view.View) *Outcome {
	t.Helper()
	out, err := e.Evaluate(v)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	return out
}

// flaggedChannels returns the sorted channel coordinates of vector commands.
func flaggedChannels(cmds []flagcmd.Command) []int {
	var out []int
	for _, c := range cmds {
		out = append(out, c.FlagCoords[c.ChannelIndex()].Channels()...)
	}
	sort.Ints(out)
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
