package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/duovisor/internal/adapter/outbound/history"
	"github.com/Sentinel-Gate/duovisor/internal/config"
	"github.com/Sentinel-Gate/duovisor/internal/domain/supervisor"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded lifecycle events",
	Long: `Show the most recent supervisor events from the history database.

The database is chosen the same way as while supervising: PostgreSQL when
USE_POSTGRES is set or DATABASE_URL is a postgres:// URL, SQLite otherwise.
Events are only recorded when history.enabled is true.

Examples:
  duovisor history
  duovisor history --limit 100`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of events to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if historyLimit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", historyLimit)
	}

	backend, err := history.SelectBackend(os.Getenv, cfg.History.SQLitePath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return showHistory(ctx, cmd.OutOrStdout(), backend, historyLimit)
}

// showHistory prints the newest events without creating the database.
func showHistory(ctx context.Context, out io.Writer, backend history.Backend, limit int) error {
	store, err := history.OpenExisting(ctx, backend, discardLogger())
	if errors.Is(err, history.ErrNoHistory) {
		return printHistory(out, nil)
	}
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Backend: %s\n\n", store.Backend())
	return printHistory(out, entries)
}

func printHistory(out io.Writer, entries []supervisor.HistoryEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "no events recorded")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tRUN\tROLE\tEVENT\tDETAIL\tEXIT")
	for _, e := range entries {
		role := string(e.Role)
		if role == "" {
			role = "-"
		}
		exit := "-"
		if e.ExitCode != nil {
			exit = fmt.Sprint(*e.ExitCode)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.At.Local().Format(time.RFC3339),
			shortRunID(e.RunID),
			role,
			e.Kind,
			e.Detail,
			exit,
		)
	}
	return w.Flush()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
