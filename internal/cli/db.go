package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Run history database management",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		_, cleanup, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		fmt.Fprintf(cmd.OutOrStdout(), "Database %s (%s) is up to date.\n", cfg.Flagging.Store.DSN, cfg.Flagging.Store.Driver)
		return nil
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the database (destructive!)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to drop run history without --yes")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		d, cleanup, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		if err := d.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Database reset.")
		return nil
	},
}

func init() {
	dbResetCmd.Flags().Bool("yes", false, "Confirm dropping all run history")
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbResetCmd)
}
