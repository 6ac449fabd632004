package flagcmd

import (
	"sort"
	"strings"
)

// ChannelRanges folds a set of channel indices into sorted, disjoint,
// contiguous ranges. Duplicates are ignored.
func ChannelRanges(channels []int) []ChannelRange {
	if len(channels) == 0 {
		return nil
	}
	sorted := make([]int, len(channels))
	copy(sorted, channels)
	sort.Ints(sorted)

	ranges := []ChannelRange{{Low: sorted[0], High: sorted[0]}}
	for _, ch := range sorted[1:] {
		cur := &ranges[len(ranges)-1]
		if ch > cur.High+1 {
			ranges = append(ranges, ChannelRange{Low: ch, High: ch})
			continue
		}
		if ch > cur.High {
			cur.High = ch
		}
	}
	return ranges
}

// Consolidate merges commands that differ only in their channel selection
// into one command per group whose channel coordinate is the union of the
// group's channels, expressed as ranges. Commands without a channel axis
// pass through unchanged. Output order follows the first appearance of each
// group.
func Consolidate(cmds []Command) []Command {
	type group struct {
		proto    Command
		channels []int
	}
	// each entry is either a pass-through command or a group placeholder
	type entry struct {
		cmd   Command
		group *group
	}
	var entries []entry
	groups := make(map[string]*group)

	for _, c := range cmds {
		ci := c.ChannelIndex()
		if ci < 0 || ci >= len(c.FlagCoords) {
			entries = append(entries, entry{cmd: c})
			continue
		}
		key := groupKey(c, ci)
		g, ok := groups[key]
		if !ok {
			g = &group{proto: c}
			groups[key] = g
			entries = append(entries, entry{group: g})
		}
		g.channels = append(g.channels, c.FlagCoords[ci].Channels()...)
	}

	result := make([]Command, 0, len(entries))
	for _, e := range entries {
		if e.group == nil {
			result = append(result, e.cmd)
			continue
		}
		merged := e.group.proto
		ci := merged.ChannelIndex()
		merged.FlagCoords = append([]Coord(nil), merged.FlagCoords...)
		merged.FlagCoords[ci] = RangeCoord(ChannelRanges(e.group.channels))
		result = append(result, New(merged))
	}
	return result
}

// groupKey identifies every field of c except the channel value at ci.
func groupKey(c Command, ci int) string {
	coords := make([]string, len(c.FlagCoords))
	for i, coord := range c.FlagCoords {
		if i == ci {
			continue
		}
		coords[i] = coord.String()
	}
	var chanAxis string
	if c.ChannelAxis != nil {
		chanAxis = c.ChannelAxis.Name
	}
	return strings.Join([]string{
		c.Filename,
		c.RuleName,
		c.Spw,
		c.Antenna,
		c.Intent,
		c.Pol,
		c.Field,
		strings.Join(c.AxisNames, ","),
		strings.Join(coords, ","),
		chanAxis,
		c.Reason,
		strings.Join(c.ExtendFields, ","),
	}, "\x00")
}
