package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/lucasnoah/skyflag/internal/flagger"
)

// WriteSummary prints a plain-text account of a controller run: stop
// reason, flag counts before and after, per-spw fractions and the
// commands grouped by reason.
func WriteSummary(w io.Writer, res *flagger.Result) error {
	if res == nil {
		return fmt.Errorf("no result to summarize")
	}
	var b strings.Builder

	fmt.Fprintf(&b, "Artifact:    %s\n", res.Artifact)
	fmt.Fprintf(&b, "Stopped:     %s after %d %s\n", res.Stop, res.Iterations, plural(res.Iterations, "iteration"))
	fmt.Fprintf(&b, "Commands:    %s\n", humanize.Comma(int64(len(res.Flags))))
	if res.Before != nil {
		fmt.Fprintf(&b, "Before:      %s\n", formatCounts(res.Before.Counts))
	}
	if res.After != nil {
		fmt.Fprintf(&b, "After:       %s\n", formatCounts(res.After.Counts))
	}

	if res.After != nil && len(res.After.Spw) > 0 {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%-8s  %-22s  %-22s\n", "SPW", "BEFORE", "AFTER")
		fmt.Fprintf(&b, "%-8s  %-22s  %-22s\n", "---", "------", "-----")
		for _, spw := range sortedKeys(res.After.Spw) {
			before := "-"
			if res.Before != nil {
				if c, ok := res.Before.Spw[spw]; ok {
					before = formatCounts(c)
				}
			}
			fmt.Fprintf(&b, "%-8s  %-22s  %-22s\n", spw, before, formatCounts(res.After.Spw[spw]))
		}
	}

	if len(res.Flags) > 0 {
		byReason := make(map[string][]string)
		for _, c := range res.Flags {
			reason := c.Reason
			if reason == "" {
				reason = c.RuleName
			}
			byReason[reason] = append(byReason[reason], c.Text)
		}
		reasons := make([]string, 0, len(byReason))
		for r := range byReason {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)

		for _, r := range reasons {
			texts := byReason[r]
			fmt.Fprintf(&b, "\n%s (%d)\n", r, len(texts))
			for _, t := range texts {
				fmt.Fprintf(&b, "  %s\n", t)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatCounts(c flagger.Counts) string {
	return fmt.Sprintf("%s / %s (%.1f%%)",
		humanize.Comma(int64(c.Flagged)), humanize.Comma(int64(c.Total)), 100*c.Fraction())
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func sortedKeys(m map[string]flagger.Counts) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
