package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/skyflag/internal/fileutil"
	"github.com/lucasnoah/skyflag/internal/report"
	"github.com/lucasnoah/skyflag/internal/results"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render stored flagging results",
}

var reportSummaryCmd = &cobra.Command{
	Use:   "summary <stage-id> [run-id]",
	Short: "Print the summary of a stored run (latest by default)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := loadRecord(args)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Run %s (stage %s, %s)\n", rec.RunID, rec.Stage, rec.CreatedAt)
		return report.WriteSummary(w, rec.Result)
	},
}

var reportHeatmapCmd = &cobra.Command{
	Use:   "heatmap <stage-id> [run-id]",
	Short: "Write a reason heatmap PNG for each view of a stored run",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := loadRecord(args)
		if err != nil {
			return err
		}
		outDir, _ := cmd.Flags().GetString("out")
		if outDir == "" {
			outDir = "."
		}
		only, _ := cmd.Flags().GetString("view")

		res := rec.Result
		written := 0
		for _, v := range res.Views {
			if only != "" && v.Description != only {
				continue
			}
			if !v.Describable() {
				continue
			}
			png, err := report.Heatmap(v, res.Reasons[v.Description], "")
			if err != nil {
				return fmt.Errorf("view %q: %w", v.Description, err)
			}
			path := filepath.Join(outDir, plotFilename(rec.RunID, v.Description))
			if err := fileutil.WriteAtomic(path, png); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			written++
		}
		if written == 0 {
			return fmt.Errorf("run %s has no matching views", rec.RunID)
		}
		return nil
	},
}

// loadRecord resolves <stage-id> [run-id] to a stored record.
func loadRecord(args []string) (*results.Record, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store := openStore(cfg)
	if len(args) == 2 {
		return store.Get(args[0], args[1])
	}
	return store.Latest(args[0])
}

// plotFilename turns a view description into a file name.
func plotFilename(runID, desc string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, desc)
	if len(runID) > 8 {
		runID = runID[:8]
	}
	return fmt.Sprintf("%s-%s.png", runID, clean)
}

func init() {
	reportHeatmapCmd.Flags().String("out", "", "Output directory (default: current directory)")
	reportHeatmapCmd.Flags().String("view", "", "Only render the view with this description")
	reportCmd.AddCommand(reportSummaryCmd)
	reportCmd.AddCommand(reportHeatmapCmd)
}
