package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/duovisor/internal/adapter/outbound/state"
	"github.com/Sentinel-Gate/duovisor/internal/config"
	"github.com/Sentinel-Gate/duovisor/internal/domain/supervisor"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running supervisor and its children",
	Long: `Show the supervisor PID, lifecycle state and child PIDs from the state file.

Examples:
  duovisor status
  duovisor status --json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw state file")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, _ := config.LoadConfigRaw()
	store := state.NewFileStateStore(resolveStatePath(cfg), discardLogger())
	return printStatus(cmd.OutOrStdout(), store, statusJSON)
}

func printStatus(out io.Writer, store *state.FileStateStore, asJSON bool) error {
	st, err := store.Load()
	if errors.Is(err, state.ErrNoState) {
		fmt.Fprintln(out, "duovisor is not running")
		return nil
	}
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	alive := false
	if proc, err := os.FindProcess(st.PID); err == nil {
		alive = processIsAlive(proc)
	}

	fmt.Fprintf(out, "Run:        %s\n", st.RunID)
	fmt.Fprintf(out, "PID:        %d", st.PID)
	if !alive {
		fmt.Fprint(out, " (not running, stale state file)")
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "State:      %s\n", st.State)
	fmt.Fprintf(out, "Started:    %s\n", st.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(out, "Updated:    %s\n", st.UpdatedAt.Local().Format(time.RFC3339))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tNAME\tPID\tRUNNING")
	for _, role := range supervisor.Roles {
		c := st.Child(role)
		if c == nil {
			continue
		}
		pid := "-"
		if c.PID != 0 {
			pid = fmt.Sprint(c.PID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", c.Role, c.Name, pid, c.Running)
	}
	return w.Flush()
}

// discardLogger is used by read-only commands that open stores.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
