package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vulnwatch/api/pkg/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database schema migrations",
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		return migrations.NewRunner(db.DB).Up(cmd.Context())
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		return migrations.NewRunner(db.DB).Down(cmd.Context())
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runner := migrations.NewRunner(db.DB)
		ctx := cmd.Context()

		if err := runner.EnsureMigrationTable(ctx); err != nil {
			return fmt.Errorf("ensure migration table: %w", err)
		}

		applied, err := runner.GetAppliedMigrations(ctx)
		if err != nil {
			return fmt.Errorf("list applied migrations: %w", err)
		}
		pending, err := runner.GetPendingMigrations(ctx)
		if err != nil {
			return fmt.Errorf("list pending migrations: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tSTATUS\tAPPLIED AT")
		for _, rec := range applied {
			fmt.Fprintf(w, "%s\tapplied\t%s\n", rec.Version, rec.AppliedAt.Format("2006-01-02 15:04:05"))
		}
		for _, m := range pending {
			fmt.Fprintf(w, "%s\tpending\t-\n", m.Version)
		}
		w.Flush()

		fmt.Printf("\n%d applied, %d pending\n", len(applied), len(pending))
		return nil
	},
}
