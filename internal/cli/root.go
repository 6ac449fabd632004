package cli

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var configFile string

var rootCmd = &cobra.Command{
	Use:   "skyflag",
	Short: "skyflag — iterative data flagging for calibration views",
	Long: `skyflag evaluates ordered flagging rules against the views of a
calibration artifact, iterating until no new flags appear, and applies the
resulting flag commands back to the artifact.

Stages, rules and services are configured in skyflag.yaml. Results are kept
as JSON under the results directory and each run is recorded in the run
history database (SQLite or PostgreSQL).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// a .env file is optional
		_ = godotenv.Load()
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the CLI with a cancellable context.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to flagging config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(dbCmd)
}
