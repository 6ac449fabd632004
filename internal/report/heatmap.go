// Package report renders flagging results: reason heatmaps of the views
// and plain-text run summaries.
package report

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/lucasnoah/skyflag/internal/rules"
	"github.com/lucasnoah/skyflag/internal/view"
)

// maxTicks bounds the labelled ticks per axis.
const maxTicks = 12

// reasonColors has one color per entry of rules.Reasons. Index 0 is data
// left unflagged.
var reasonColors = []color.Color{
	color.RGBA{R: 235, G: 235, B: 235, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
	color.RGBA{R: 255, G: 152, B: 150, A: 255},
	color.RGBA{R: 148, G: 103, B: 189, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 227, G: 119, B: 194, A: 255},
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 140, G: 86, B: 75, A: 255},
	color.RGBA{R: 196, G: 156, B: 148, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 152, G: 223, B: 138, A: 255},
	color.RGBA{R: 188, G: 189, B: 34, A: 255},
	color.RGBA{R: 23, G: 190, B: 207, A: 255},
	color.RGBA{R: 158, G: 218, B: 229, A: 255},
	color.RGBA{R: 174, G: 199, B: 232, A: 255},
	color.RGBA{R: 255, G: 187, B: 120, A: 255},
}

// preflagged marks points that were flagged before the run or have no data.
var preflagged = color.RGBA{R: 90, G: 90, B: 90, A: 255}

type reasonPalette []color.Color

func (p reasonPalette) Colors() []color.Color { return p }

// reasonGrid exposes a reason plane as a plotter.GridXYZ. Rows of the view
// run along Y and columns along X.
type reasonGrid struct {
	m *mat.Dense
}

func (g reasonGrid) Dims() (c, r int) {
	r, c = g.m.Dims()
	return c, r
}

func (g reasonGrid) Z(c, r int) float64 { return g.m.At(r, c) }
func (g reasonGrid) X(c int) float64    { return float64(c) }
func (g reasonGrid) Y(r int) float64    { return float64(r) }

// reasonMatrix lays out a view's reason codes as a dense matrix. A vector
// becomes a single row. Points flagged without a reason from this run, and
// points without data, are NaN.
func reasonMatrix(v *view.View, reasons []int) *mat.Dense {
	rows, cols := v.Rows(), v.Cols()
	if v.Rank() == 1 {
		rows, cols = 1, v.Rows()
	}
	m := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			i := r*cols + c
			code := 0
			if i < len(reasons) {
				code = reasons[i]
			}
			switch {
			case code > 0:
				m.Set(r, c, float64(code))
			case v.Flag[i] || (len(v.NoData) > i && v.NoData[i]):
				m.Set(r, c, math.NaN())
			}
		}
	}
	return m
}

// Heatmap renders the reason plane of a view as a PNG. reasons holds one
// code per point of v, as found in the result's reason planes; nil renders
// only the flags already on the view.
func Heatmap(v *view.View, reasons []int, title string) ([]byte, error) {
	if v == nil || !v.Describable() {
		return nil, fmt.Errorf("no view to plot")
	}
	v = v.Clone()
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if reasons != nil && len(reasons) != len(v.Data) {
		return nil, fmt.Errorf("reason plane has %d points, view has %d", len(reasons), len(v.Data))
	}

	p := plot.New()
	if title == "" {
		title = v.Description
	}
	p.Title.Text = title

	h := plotter.NewHeatMap(reasonGrid{m: reasonMatrix(v, reasons)}, reasonPalette(reasonColors))
	h.Min = 0
	h.Max = float64(len(rules.Reasons) - 1)
	h.NaN = preflagged
	p.Add(h)

	colAxis := v.Axes[len(v.Axes)-1]
	p.X.Label.Text = axisLabel(colAxis)
	p.X.Tick.Marker = plot.ConstantTicks(axisTicks(colAxis))
	if v.Rank() == 2 {
		rowAxis := v.Axes[0]
		p.Y.Label.Text = axisLabel(rowAxis)
		p.Y.Tick.Marker = plot.ConstantTicks(axisTicks(rowAxis))
	} else {
		p.Y.Tick.Marker = plot.ConstantTicks(nil)
	}

	for _, code := range usedReasons(reasons) {
		p.Legend.Add(rules.Reasons[code], swatch{reasonColors[code]})
	}
	if v.FlaggedCount() > 0 || hasNoData(v) {
		p.Legend.Add("flagged before", swatch{preflagged})
	}
	p.Legend.Top = true

	w, err := p.WriterTo(vg.Points(800), vg.Points(500), "png")
	if err != nil {
		return nil, fmt.Errorf("render heatmap: %w", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write heatmap: %w", err)
	}
	return buf.Bytes(), nil
}

func axisLabel(a view.Axis) string {
	if a.Unit != "" {
		return fmt.Sprintf("%s (%s)", a.Name, a.Unit)
	}
	return a.Name
}

// axisTicks labels at most maxTicks evenly spaced positions of the axis.
func axisTicks(a view.Axis) []plot.Tick {
	n := a.Len()
	if n == 0 {
		return nil
	}
	step := (n + maxTicks - 1) / maxTicks
	var ticks []plot.Tick
	for i := 0; i < n; i += step {
		ticks = append(ticks, plot.Tick{Value: float64(i), Label: a.Label(i)})
	}
	return ticks
}

func usedReasons(reasons []int) []int {
	seen := make(map[int]bool)
	for _, code := range reasons {
		if code > 0 && code < len(rules.Reasons) {
			seen[code] = true
		}
	}
	var out []int
	for code := range rules.Reasons {
		if seen[code] {
			out = append(out, code)
		}
	}
	return out
}

func hasNoData(v *view.View) bool {
	for _, nd := range v.NoData {
		if nd {
			return true
		}
	}
	return false
}

// swatch is a filled legend thumbnail.
type swatch struct {
	color color.Color
}

func (s swatch) Thumbnail(c *draw.Canvas) {
	pts := []vg.Point{
		{X: c.Min.X, Y: c.Min.Y},
		{X: c.Min.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Min.Y},
	}
	c.FillPolygon(s.color, pts)
}
