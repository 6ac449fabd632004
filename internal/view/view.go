// Package view defines the 1-D and 2-D data snapshots inspected by the
// flagging rules.
package view

import (
	"fmt"
	"strconv"

	"github.com/lucasnoah/skyflag/internal/flagcmd"
)

// Axis is a named coordinate axis. Data holds numeric coordinates; Labels,
// when present, names each position (antenna or baseline identifiers).
type Axis struct {
	Name   string    `json:"name"`
	Data   []float64 `json:"data"`
	Labels []string  `json:"labels,omitempty"`
	Unit   string    `json:"unit,omitempty"`
}

// Len returns the number of positions on the axis.
func (a Axis) Len() int {
	if len(a.Labels) > len(a.Data) {
		return len(a.Labels)
	}
	return len(a.Data)
}

// Label returns the display coordinate at position i.
func (a Axis) Label(i int) string {
	if i < len(a.Labels) {
		return a.Labels[i]
	}
	return strconv.FormatFloat(a.Data[i], 'f', -1, 64)
}

// Coord returns the flag-command coordinate at position i. Channel and
// time axes always give their numeric value.
func (a Axis) Coord(i int) flagcmd.Coord {
	if a.numeric() {
		return flagcmd.NumberCoord(a.Data[i])
	}
	if i < len(a.Labels) {
		return flagcmd.LabelCoord(a.Labels[i])
	}
	return flagcmd.NumberCoord(a.Data[i])
}

// numeric reports whether the axis selects by value rather than by name.
func (a Axis) numeric() bool {
	k := a.Kind()
	return k == flagcmd.KindChannel || k == flagcmd.KindTime
}

// Kind classifies the axis by name.
func (a Axis) Kind() flagcmd.AxisKind {
	return flagcmd.KindOf(a.Name)
}

// View is a snapshot of data to inspect: values, a parallel flag mask
// (true = excluded), a no-data mask and the coordinate axes. Arrays are
// stored row-major; rank is the number of axes.
type View struct {
	Description string `json:"description"`
	Filename    string `json:"filename"`
	Spw         string `json:"spw"`
	Pol         string `json:"pol,omitempty"`
	Ant         string `json:"ant,omitempty"`
	Intent      string `json:"intent,omitempty"`
	Field       string `json:"field,omitempty"`

	Axes   []Axis    `json:"axes"`
	Data   []float64 `json:"data"`
	Flag   []bool    `json:"flag"`
	NoData []bool    `json:"nodata,omitempty"`

	// ChannelAxis optionally maps channel indices to physical coordinates.
	ChannelAxis *flagcmd.ChannelAxis `json:"channel_axis,omitempty"`

	// New is false when the view is reused from an earlier iteration.
	New bool `json:"-"`
}

// NewVector builds a rank-1 view with nothing flagged.
func NewVector(axis Axis, data []float64) *View {
	return &View{
		Axes:   []Axis{axis},
		Data:   data,
		Flag:   make([]bool, len(data)),
		NoData: make([]bool, len(data)),
		New:    true,
	}
}

// NewMatrix builds a rank-2 view from rows (one slice per row-axis position)
// with nothing flagged.
func NewMatrix(rowAxis, colAxis Axis, rows [][]float64) *View {
	var data []float64
	for _, r := range rows {
		data = append(data, r...)
	}
	return &View{
		Axes:   []Axis{rowAxis, colAxis},
		Data:   data,
		Flag:   make([]bool, len(data)),
		NoData: make([]bool, len(data)),
		New:    true,
	}
}

// Rank returns the number of axes.
func (v *View) Rank() int { return len(v.Axes) }

// Rows returns the length of the first axis.
func (v *View) Rows() int {
	if len(v.Axes) == 0 {
		return 0
	}
	return v.Axes[0].Len()
}

// Cols returns the length of the second axis, or 1 for a vector.
func (v *View) Cols() int {
	if len(v.Axes) < 2 {
		return 1
	}
	return v.Axes[1].Len()
}

// Index returns the flat index of (row, col).
func (v *View) Index(row, col int) int {
	return row*v.Cols() + col
}

// Describable reports whether the view has any content to inspect.
func (v *View) Describable() bool {
	return v != nil && len(v.Axes) > 0 && len(v.Data) > 0
}

// Validate checks the shape invariants and fills a missing no-data mask.
func (v *View) Validate() error {
	if len(v.Axes) == 0 || len(v.Axes) > 2 {
		return fmt.Errorf("view %q: rank %d not supported", v.Description, len(v.Axes))
	}
	size := 1
	for _, a := range v.Axes {
		if a.Len() == 0 {
			return fmt.Errorf("view %q: axis %q is empty", v.Description, a.Name)
		}
		if a.numeric() && len(a.Data) != a.Len() {
			return fmt.Errorf("view %q: axis %q needs %d numeric values, has %d", v.Description, a.Name, a.Len(), len(a.Data))
		}
		size *= a.Len()
	}
	if len(v.Data) != size {
		return fmt.Errorf("view %q: %d data points, axes describe %d", v.Description, len(v.Data), size)
	}
	if v.Flag == nil {
		v.Flag = make([]bool, size)
	}
	if len(v.Flag) != size {
		return fmt.Errorf("view %q: flag has %d points, want %d", v.Description, len(v.Flag), size)
	}
	if v.NoData == nil {
		v.NoData = make([]bool, size)
	}
	if len(v.NoData) != size {
		return fmt.Errorf("view %q: nodata has %d points, want %d", v.Description, len(v.NoData), size)
	}
	return nil
}

// Clone returns a deep copy of the view.
func (v *View) Clone() *View {
	c := *v
	c.Axes = make([]Axis, len(v.Axes))
	for i, a := range v.Axes {
		c.Axes[i] = Axis{
			Name:   a.Name,
			Unit:   a.Unit,
			Data:   append([]float64(nil), a.Data...),
			Labels: append([]string(nil), a.Labels...),
		}
	}
	c.Data = append([]float64(nil), v.Data...)
	c.Flag = append([]bool(nil), v.Flag...)
	c.NoData = append([]bool(nil), v.NoData...)
	return &c
}

// Valid returns the values not currently flagged.
func (v *View) Valid() []float64 {
	var out []float64
	for i, d := range v.Data {
		if !v.Flag[i] {
			out = append(out, d)
		}
	}
	return out
}

// FlaggedCount returns the number of flagged points.
func (v *View) FlaggedCount() int {
	n := 0
	for _, f := range v.Flag {
		if f {
			n++
		}
	}
	return n
}
