package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/capscanio/capscan/internal/infra/redis"
)

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "Browse the capability index",
}

var capabilitiesListCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List indexed capability records, optionally filtered by a search query",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, cleanup, err := capabilityIndex()
		if err != nil {
			return err
		}
		defer cleanup()

		query := ""
		if len(args) == 1 {
			query = args[0]
		}

		records, err := index.Search(cmd.Context(), query)
		if err != nil {
			return err
		}

		if flagOutput == "json" {
			return printJSON(records)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCOMPLEXITY\tCONFIDENCE\tTAGS\tSCANNED")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%v\t%s\n",
				r.Name, r.Complexity, r.Confidence, r.Tags, r.ScannedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var capabilitiesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show the full record for a capability",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, cleanup, err := capabilityIndex()
		if err != nil {
			return err
		}
		defer cleanup()

		record, err := index.GetByName(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(record)
	},
}

func init() {
	capabilitiesCmd.AddCommand(capabilitiesListCmd)
	capabilitiesCmd.AddCommand(capabilitiesShowCmd)
}

func capabilityIndex() (*redis.CapabilityIndex, func(), error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	client, err := redis.New(&cfg.Redis, log)
	if err != nil {
		return nil, nil, err
	}
	return redis.NewCapabilityIndex(client), func() { _ = client.Close() }, nil
}
