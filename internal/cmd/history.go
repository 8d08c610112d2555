package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/armada/internal/config"
	"github.com/harrison/armada/internal/history"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Long: `Show runs recorded in the history database.

Examples:
  armada history                 # recent runs
  armada history --limit 50
  armada history --run <run-id>  # one run's ticket results`,
		Args: cobra.NoArgs,
		RunE: historyCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .armada/config.yaml)")
	cmd.Flags().Int("limit", 20, "Maximum number of runs to list")
	cmd.Flags().String("run", "", "Show ticket results for one run id")

	return cmd
}

func historyCommand(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
	} else {
		cfg, err = config.LoadConfigFromDir(".")
	}
	if err != nil {
		return err
	}

	store, err := history.NewStore(cfg.History.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if runID, _ := cmd.Flags().GetString("run"); runID != "" {
		return printRunDetails(store, runID)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.RecentRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, "No recorded runs.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tDURATION\tWAVES\tTOTAL\tCOMPLETED\tFAILED\tVALIDATION")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.RunID,
			r.StartedAt.Format(time.RFC3339),
			r.CompletedAt.Sub(r.StartedAt).Round(time.Second),
			r.Waves, r.Total, r.Completed, r.Failed+r.Skipped,
			r.Validation)
	}
	return w.Flush()
}

func printRunDetails(store *history.Store, runID string) error {
	records, err := store.TicketResults(runID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no recorded run with id %s", runID)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WAVE\tTICKET\tSTATUS\tBRANCH\tERROR")
	for _, rec := range records {
		fmt.Fprintf(w, "%d\t#%d\t%s\t%s\t%s\n", rec.Wave, rec.Ticket, rec.Status, rec.Branch, rec.Error)
	}
	return w.Flush()
}
