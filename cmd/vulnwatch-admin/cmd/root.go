// Package cmd implements the vulnwatch-admin CLI. Unlike the API
// server it talks to the database directly, so it shares the server's
// environment-based configuration.
package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/vulnwatch/api/internal/config"
	"github.com/vulnwatch/api/internal/infra/postgres"
)

var (
	version string

	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "vulnwatch-admin",
	Short: "VulnWatch operational administration CLI",
	Long: `vulnwatch-admin manages the VulnWatch database and configuration.

It provides commands to run schema migrations, seed license policies,
and inspect the finding workflow transition graph.

Database connection settings are read from the same DB_* environment
variables the API server uses.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the CLI version from build flags.
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedPolicyCmd)
	rootCmd.AddCommand(workflowCmd)
}

// openDB connects to the database using the server's configuration.
// The caller owns the returned handle.
func openDB() (*postgres.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	db, err := postgres.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vulnwatch-admin version %s\n", version)
		fmt.Printf("  Go:       %s\n", runtime.Version())
		fmt.Printf("  OS/Arch:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}
