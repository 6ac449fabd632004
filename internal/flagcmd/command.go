// Package flagcmd models flagging instructions: which selection of a view to
// flag and why, their canonical text form, and their consolidation into
// channel ranges.
package flagcmd

import (
	"fmt"
	"strconv"
	"strings"
)

// ChannelRange is an inclusive run of channel indices.
type ChannelRange struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

// String renders the range as "low~high", or "low" when it has one element.
func (r ChannelRange) String() string {
	if r.Low == r.High {
		return strconv.Itoa(r.Low)
	}
	return fmt.Sprintf("%d~%d", r.Low, r.High)
}

// Contains reports whether ch lies in the range.
func (r ChannelRange) Contains(ch int) bool {
	return ch >= r.Low && ch <= r.High
}

// Coord is one coordinate of a flag selection. Numeric axes (channel, time)
// use Value, named axes (antenna, baseline) use Label, and consolidated
// channel selections use Ranges.
type Coord struct {
	Value  float64        `json:"value,omitempty"`
	Label  string         `json:"label,omitempty"`
	Ranges []ChannelRange `json:"ranges,omitempty"`
}

// NumberCoord returns a numeric coordinate.
func NumberCoord(v float64) Coord { return Coord{Value: v} }

// LabelCoord returns a named coordinate.
func LabelCoord(s string) Coord { return Coord{Label: s} }

// RangeCoord returns a channel-range coordinate.
func RangeCoord(ranges []ChannelRange) Coord { return Coord{Ranges: ranges} }

// Channels expands the coordinate into the channel indices it selects.
func (c Coord) Channels() []int {
	if len(c.Ranges) == 0 {
		return []int{int(c.Value)}
	}
	var out []int
	for _, r := range c.Ranges {
		for ch := r.Low; ch <= r.High; ch++ {
			out = append(out, ch)
		}
	}
	return out
}

func (c Coord) String() string {
	if len(c.Ranges) > 0 {
		parts := make([]string, len(c.Ranges))
		for i, r := range c.Ranges {
			parts[i] = r.String()
		}
		return strings.Join(parts, ";")
	}
	if c.Label != "" {
		return c.Label
	}
	return strconv.FormatFloat(c.Value, 'f', -1, 64)
}

// ChannelAxis converts channel indices into a physical coordinate
// (frequency or velocity) for display.
type ChannelAxis struct {
	Name string    `json:"name"`
	Unit string    `json:"unit,omitempty"`
	Data []float64 `json:"data"`
}

// Physical returns the physical coordinate of channel ch.
func (a *ChannelAxis) Physical(ch int) (float64, bool) {
	if a == nil || ch < 0 || ch >= len(a.Data) {
		return 0, false
	}
	return a.Data[ch], true
}

// Command is a single "flag this selection, for this reason" instruction.
// Build commands with New so the derived fields are filled in.
type Command struct {
	Filename     string       `json:"filename,omitempty"`
	RuleName     string       `json:"rule_name"`
	Reason       string       `json:"reason,omitempty"`
	Spw          string       `json:"spw,omitempty"`
	Antenna      string       `json:"antenna,omitempty"`
	Intent       string       `json:"intent,omitempty"`
	Pol          string       `json:"pol,omitempty"`
	Field        string       `json:"field,omitempty"`
	ExtendFields []string     `json:"extend_fields,omitempty"`
	AxisNames    []string     `json:"axis_names,omitempty"`
	FlagCoords   []Coord      `json:"flag_coords,omitempty"`
	ChannelAxis  *ChannelAxis `json:"channel_axis,omitempty"`

	// Derived by New.
	StartTime *float64 `json:"start_time,omitempty"`
	EndTime   *float64 `json:"end_time,omitempty"`
	Text      string   `json:"flagcmd"`
}

// New returns c with its time interval and canonical text derived from the
// identifying and selection fields.
func New(c Command) Command {
	c.StartTime, c.EndTime = nil, nil
	if i := c.axisIndex(KindTime); i >= 0 && i < len(c.FlagCoords) {
		start := c.FlagCoords[i].Value - 0.5
		end := c.FlagCoords[i].Value + 0.5
		c.StartTime, c.EndTime = &start, &end
	}
	c.Text = render(c)
	return c
}

// ChannelIndex returns the position of the channel axis in AxisNames, or -1.
func (c Command) ChannelIndex() int {
	return c.axisIndex(KindChannel)
}

func (c Command) axisIndex(kind AxisKind) int {
	for i, name := range c.AxisNames {
		if KindOf(name) == kind {
			return i
		}
	}
	return -1
}

// Describe returns a human-readable summary of the selection, including
// the physical coordinates of the channel selection when a channel axis is
// attached.
func (c Command) Describe() string {
	var b strings.Builder
	b.WriteString(c.RuleName)
	if c.Reason != "" && c.Reason != c.RuleName {
		fmt.Fprintf(&b, " (%s)", c.Reason)
	}
	for i, name := range c.AxisNames {
		if i >= len(c.FlagCoords) {
			break
		}
		fmt.Fprintf(&b, " %s=%s", name, c.FlagCoords[i])
	}
	if ci := c.ChannelIndex(); ci >= 0 && ci < len(c.FlagCoords) && c.ChannelAxis != nil {
		chans := c.FlagCoords[ci].Channels()
		lo, okLo := c.ChannelAxis.Physical(chans[0])
		hi, okHi := c.ChannelAxis.Physical(chans[len(chans)-1])
		if okLo && okHi {
			fmt.Fprintf(&b, " [%s %g~%g %s]", c.ChannelAxis.Name, lo, hi, c.ChannelAxis.Unit)
		}
	}
	return b.String()
}

// AxisKind classifies an axis name for rendering.
type AxisKind int

const (
	KindOther AxisKind = iota
	KindChannel
	KindTime
	KindAntenna
	KindBaseline
)

// KindOf classifies an axis by name, case-insensitively: names containing
// "CHANNEL", "TIME", "BASELINE" or "ANTENNA".
func KindOf(name string) AxisKind {
	n := strings.ToUpper(strings.TrimSpace(name))
	switch {
	case strings.Contains(n, "CHANNEL"):
		return KindChannel
	case n == "TIME":
		return KindTime
	case strings.Contains(n, "BASELINE"):
		return KindBaseline
	case strings.Contains(n, "ANTENNA"):
		return KindAntenna
	}
	return KindOther
}
