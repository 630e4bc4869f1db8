package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/duovisor/internal/adapter/outbound/state"
	"github.com/Sentinel-Gate/duovisor/internal/config"
)

const (
	stopPollInterval = 200 * time.Millisecond
	stopTimeout      = 10 * time.Second
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running supervisor",
	Long: `Stop a running duovisor by reading its state file and sending SIGTERM.

The supervisor forwards the request to the app server and the bot, waits
its one-second grace period and exits. If it is still alive after 10 seconds
it is killed.

Examples:
  # Stop the supervisor using the default state file
  duovisor stop

  # Stop a supervisor started with a custom state file
  duovisor --state /run/duovisor.json stop`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, _ := config.LoadConfigRaw()
	store := state.NewFileStateStore(resolveStatePath(cfg), discardLogger())
	return stopSupervisor(store, cmd.ErrOrStderr(), stopPollInterval, stopTimeout)
}

func stopSupervisor(store *state.FileStateStore, out io.Writer, interval, timeout time.Duration) error {
	st, err := store.Load()
	if errors.Is(err, state.ErrNoState) {
		return fmt.Errorf("no state file found at %s\nIs duovisor running?", store.Path())
	}
	if err != nil {
		return err
	}

	proc, err := os.FindProcess(st.PID)
	if err != nil {
		_ = store.Remove()
		return fmt.Errorf("invalid PID %d: %w", st.PID, err)
	}
	if !processIsAlive(proc) {
		_ = store.Remove()
		return fmt.Errorf("supervisor process %d is not running (stale state file removed)", st.PID)
	}

	fmt.Fprintf(out, "Stopping duovisor (PID %d)...\n", st.PID)
	if err := sendGracefulStop(proc); err != nil {
		return fmt.Errorf("failed to stop supervisor: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		time.Sleep(interval)
		if !processIsAlive(proc) {
			fmt.Fprintln(out, "Supervisor stopped.")
			return nil
		}
	}

	fmt.Fprintln(out, "Supervisor did not stop gracefully, killing it...")
	_ = proc.Kill()
	_ = store.Remove()
	fmt.Fprintln(out, "Supervisor killed.")
	return nil
}
