package flagcmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// mjdEpoch is the zero point of Modified Julian Date seconds.
var mjdEpoch = time.Date(1858, time.November, 17, 0, 0, 0, 0, time.UTC)

const timeLayout = "2006/01/02/15:04:05.000"

// FormatTime renders MJD seconds in the flagging tool's date format.
func FormatTime(mjdSeconds float64) string {
	d := time.Duration(mjdSeconds * float64(time.Second))
	return mjdEpoch.Add(d).Format(timeLayout)
}

// ParseTime is the inverse of FormatTime.
func ParseTime(s string) (float64, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return 0, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.Sub(mjdEpoch).Seconds(), nil
}

// Clause is one key='value' element of a command's text.
type Clause struct {
	Key   string
	Value string
}

func (c Clause) String() string {
	return fmt.Sprintf("%s='%s'", c.Key, c.Value)
}

// render builds the canonical text: intent, spw with channel selection,
// antenna, timerange, field and reason, in that order, with any clause
// named in ExtendFields removed.
func render(c Command) string {
	var antennas []string
	var channels, timerange string
	for i, name := range c.AxisNames {
		if i >= len(c.FlagCoords) {
			break
		}
		coord := c.FlagCoords[i]
		switch KindOf(name) {
		case KindChannel:
			channels = coord.String()
		case KindTime:
			timerange = FormatTime(coord.Value-0.5) + "~" + FormatTime(coord.Value+0.5)
		case KindAntenna, KindBaseline:
			antennas = append(antennas, coord.String())
		}
	}
	// an antenna axis in the selection supersedes the provenance antenna
	if len(antennas) == 0 && c.Antenna != "" {
		antennas = []string{c.Antenna}
	}

	var clauses []Clause
	if c.Intent != "" {
		clauses = append(clauses, Clause{"intent", c.Intent})
	}
	spw := c.Spw
	if channels != "" {
		if spw == "" {
			spw = "*"
		}
		spw += ":" + channels
	}
	if spw != "" {
		clauses = append(clauses, Clause{"spw", spw})
	}
	if len(antennas) > 0 {
		clauses = append(clauses, Clause{"antenna", strings.Join(antennas, "&")})
	}
	if timerange != "" {
		clauses = append(clauses, Clause{"timerange", timerange})
	}
	if c.Field != "" {
		clauses = append(clauses, Clause{"field", c.Field})
	}
	if c.Reason != "" {
		clauses = append(clauses, Clause{"reason", strings.ReplaceAll(c.Reason, " ", "_")})
	}

	parts := make([]string, 0, len(clauses))
	for _, cl := range clauses {
		if extended(c.ExtendFields, cl.Key) {
			continue
		}
		parts = append(parts, cl.String())
	}
	return strings.Join(parts, " ")
}

func extended(fields []string, key string) bool {
	for _, f := range fields {
		if strings.EqualFold(strings.TrimSpace(f), key) {
			return true
		}
	}
	return false
}

// ParseClauses splits command text into its key='value' clauses. Values
// may contain spaces inside the quotes.
func ParseClauses(text string) ([]Clause, error) {
	var out []Clause
	s := strings.TrimSpace(text)
	for s != "" {
		eq := strings.Index(s, "=")
		if eq <= 0 {
			return nil, fmt.Errorf("malformed clause %q", s)
		}
		key := strings.TrimSpace(s[:eq])
		rest := s[eq+1:]
		if !strings.HasPrefix(rest, "'") {
			return nil, fmt.Errorf("clause %q: value must be quoted", key)
		}
		end := strings.Index(rest[1:], "'")
		if end < 0 {
			return nil, fmt.Errorf("clause %q: unterminated value", key)
		}
		out = append(out, Clause{Key: key, Value: rest[1 : end+1]})
		s = strings.TrimSpace(rest[end+2:])
	}
	return out, nil
}

// Selection is the parsed form of a command's text, as needed by a
// flag-setting task to apply it.
type Selection struct {
	Mode     string
	Name     string
	Intent   string
	Spw      string
	Channels []ChannelRange
	Antenna  string
	Field    string
	Reason   string
	Start    *float64
	End      *float64
}

// IsSummary reports whether the selection is a summary request.
func (s Selection) IsSummary() bool {
	return s.Mode == "summary"
}

// ParseSelection parses command text into a Selection.
func ParseSelection(text string) (Selection, error) {
	clauses, err := ParseClauses(text)
	if err != nil {
		return Selection{}, err
	}
	var sel Selection
	for _, cl := range clauses {
		switch cl.Key {
		case "mode":
			sel.Mode = cl.Value
		case "name":
			sel.Name = cl.Value
		case "intent":
			sel.Intent = cl.Value
		case "spw":
			spw, chans, _ := strings.Cut(cl.Value, ":")
			sel.Spw = spw
			if chans != "" {
				ranges, err := parseRanges(chans)
				if err != nil {
					return Selection{}, fmt.Errorf("spw %q: %w", cl.Value, err)
				}
				sel.Channels = ranges
			}
		case "antenna":
			sel.Antenna = cl.Value
		case "field":
			sel.Field = cl.Value
		case "reason":
			sel.Reason = cl.Value
		case "timerange":
			lo, hi, ok := strings.Cut(cl.Value, "~")
			if !ok {
				return Selection{}, fmt.Errorf("timerange %q: missing '~'", cl.Value)
			}
			start, err := ParseTime(lo)
			if err != nil {
				return Selection{}, err
			}
			end, err := ParseTime(hi)
			if err != nil {
				return Selection{}, err
			}
			sel.Start, sel.End = &start, &end
		default:
			return Selection{}, fmt.Errorf("unknown clause %q", cl.Key)
		}
	}
	return sel, nil
}

func parseRanges(s string) ([]ChannelRange, error) {
	var out []ChannelRange
	for _, part := range strings.Split(s, ";") {
		lo, hi, isRange := strings.Cut(part, "~")
		low, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", part, err)
		}
		high := low
		if isRange {
			if high, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, fmt.Errorf("channel %q: %w", part, err)
			}
		}
		out = append(out, ChannelRange{Low: low, High: high})
	}
	return out, nil
}

// SummaryCommand returns the bookend text requesting a named flagging
// summary.
func SummaryCommand(name string) string {
	return fmt.Sprintf("mode='summary' name='%s'", name)
}
