package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/capscanio/capscan/internal/app/scan"
	"github.com/capscanio/capscan/internal/infra/postgres"
	"github.com/capscanio/capscan/pkg/domain/scansession"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and manage scan sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all scan sessions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		repo, cleanup, err := sessionRepo()
		if err != nil {
			return err
		}
		defer cleanup()

		sessions, err := repo.List(cmd.Context())
		if err != nil {
			return err
		}

		if flagOutput == "json" {
			return printJSON(sessions)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPHASE\tPROGRESS\tLAST ACTIVITY")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				s.ID.String(), s.Phase, formatProgress(s), s.LastActivity.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show the full record of a scan session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, cleanup, err := sessionRepo()
		if err != nil {
			return err
		}
		defer cleanup()

		session, err := repo.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(session)
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a scan session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, cleanup, err := sessionRepo()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := repo.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted session %s\n", args[0])
		return nil
	},
}

var sessionsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired sessions now instead of waiting for the background sweeper",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := postgres.New(&cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		sweeper := scan.NewSweeper(postgres.NewScanSessionRepository(db), scan.SweeperConfig{
			Interval:        cfg.Scan.SweepInterval,
			CompletionGrace: cfg.Scan.CompletionGrace,
			IdleTTL:         cfg.Scan.IdleTTL,
		}, log)

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		return sweeper.SweepOnce(ctx)
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsSweepCmd)
}

func sessionRepo() (*postgres.ScanSessionRepository, func(), error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	db, err := postgres.New(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewScanSessionRepository(db), func() { _ = db.Close() }, nil
}

func formatProgress(s *scansession.ScanSession) string {
	if s.Progress == nil {
		return "-"
	}
	return fmt.Sprintf("%d/%d (%s)", s.Progress.Current, s.Progress.Total, s.Progress.Status)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
