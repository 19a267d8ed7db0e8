// Package cmd implements the capscan-admin CLI commands.
package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/capscanio/capscan/internal/config"
	"github.com/capscanio/capscan/pkg/logger"
)

var (
	version string

	// Global flags
	flagOutput  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "capscan-admin",
	Short: "capscan administration CLI",
	Long: `capscan-admin manages the capability scan service: inspect and clean
up scan sessions, browse the capability index and run database
migrations.

Connection settings come from the same environment variables the server
uses (DB_*, REDIS_*).`,
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
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "Output format: table, json")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(capabilitiesCmd)
	rootCmd.AddCommand(migrateCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("capscan-admin %s (%s/%s, %s)\n", version, runtime.GOOS, runtime.GOARCH, runtime.Version())
	},
}

// loadConfig reads the environment and builds a logger for commands.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	log := logger.NewNop()
	if flagVerbose {
		log = logger.NewDevelopment()
	}
	return cfg, log, nil
}
