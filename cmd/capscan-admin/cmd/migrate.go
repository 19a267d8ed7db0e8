package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/capscanio/capscan/internal/infra/postgres"
	"github.com/capscanio/capscan/pkg/migrations"
)

var flagMigrationsDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		runner, cleanup, err := migrationRunner()
		if err != nil {
			return err
		}
		defer cleanup()
		return runner.Up(cmd.Context())
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		runner, cleanup, err := migrationRunner()
		if err != nil {
			return err
		}
		defer cleanup()
		return runner.Down(cmd.Context())
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		runner, cleanup, err := migrationRunner()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := runner.EnsureMigrationTable(cmd.Context()); err != nil {
			return err
		}

		applied, err := runner.GetAppliedMigrations(cmd.Context())
		if err != nil {
			return err
		}
		for _, rec := range applied {
			fmt.Printf("applied  %s  (%s)\n", rec.Version, rec.AppliedAt.Format("2006-01-02 15:04:05"))
		}

		pending, err := runner.GetPendingMigrations(cmd.Context())
		if err != nil {
			return err
		}
		for _, version := range pending {
			fmt.Printf("pending  %s\n", version)
		}
		return nil
	},
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&flagMigrationsDir, "dir", "migrations", "Directory containing migration files")
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func migrationRunner() (*migrations.Runner, func(), error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	db, err := postgres.New(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return migrations.NewRunner(db.DB, flagMigrationsDir), func() { _ = db.Close() }, nil
}
