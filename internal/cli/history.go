package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [stage-id]",
	Short: "List recorded flagging runs, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		d, cleanup, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		stage := ""
		if len(args) == 1 {
			stage = args[0]
		}
		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := d.ListRuns(cmd.Context(), stage, limit)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if format, _ := cmd.Flags().GetString("format"); format == "json" {
			data, _ := json.MarshalIndent(runs, "", "  ")
			fmt.Fprintln(w, string(data))
			return nil
		}

		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs recorded.")
			return nil
		}

		fmt.Fprintf(w, "%-36s %-16s %-6s %-5s %-15s %-8s %s\n", "RUN", "STAGE", "SHAPE", "ITER", "STOP", "FLAGS", "WHEN")
		fmt.Fprintf(w, "%-36s %-16s %-6s %-5s %-15s %-8s %s\n",
			strings.Repeat("-", 36),
			strings.Repeat("-", 16),
			strings.Repeat("-", 6),
			strings.Repeat("-", 5),
			strings.Repeat("-", 15),
			strings.Repeat("-", 8),
			strings.Repeat("-", 4))
		for _, r := range runs {
			fmt.Fprintf(w, "%-36s %-16s %-6s %-5d %-15s %-8s %s\n",
				r.ID, r.Stage, r.Shape, r.Iterations, r.StopReason, humanize.Comma(int64(r.FlagCount)), when(r.CreatedAt))
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the flag commands of a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		d, cleanup, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		run, err := d.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		cmds, err := d.RunCommands(cmd.Context(), run.ID)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Run:      %s\n", run.ID)
		fmt.Fprintf(w, "Stage:    %s (%s)\n", run.Stage, run.Shape)
		fmt.Fprintf(w, "Artifact: %s\n", run.Artifact)
		fmt.Fprintf(w, "Stopped:  %s after %d iteration(s)\n", run.StopReason, run.Iterations)
		fmt.Fprintf(w, "Flagged:  %s -> %s of %s\n",
			humanize.Comma(int64(run.BeforeFlagged)), humanize.Comma(int64(run.AfterFlagged)), humanize.Comma(int64(run.AfterTotal)))
		fmt.Fprintln(w)
		for _, c := range cmds {
			fmt.Fprintf(w, "%4d  %-26s %s\n", c.Seq, c.RuleName, c.FlagCmd)
		}
		return nil
	},
}

var historyRulesCmd = &cobra.Command{
	Use:   "rules <stage-id>",
	Short: "Count the commands each rule produced across a stage's runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		d, cleanup, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		counts, err := d.RuleCounts(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(counts) == 0 {
			fmt.Fprintf(w, "No commands recorded for stage %s.\n", args[0])
			return nil
		}
		fmt.Fprintf(w, "%-26s %s\n", "RULE", "COMMANDS")
		fmt.Fprintf(w, "%-26s %s\n", strings.Repeat("-", 26), strings.Repeat("-", 8))
		for _, c := range counts {
			fmt.Fprintf(w, "%-26s %s\n", c.RuleName, humanize.Comma(int64(c.Count)))
		}
		return nil
	},
}

// when renders a stored timestamp relative to now.
func when(ts string) string {
	t, err := time.Parse("2006-01-02T15:04:05.000000000Z", ts)
	if err != nil {
		return ts
	}
	return humanize.Time(t)
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 for all)")
	historyCmd.Flags().String("format", "text", "Output format: text or json")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyRulesCmd)
}
