package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/duovisor/internal/adapter/outbound/history"
	"github.com/Sentinel-Gate/duovisor/internal/config"
)

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Show which history database the environment selects",
	Long: `Show the database backend chosen from USE_POSTGRES and DATABASE_URL.

  USE_POSTGRES=1|true|yes   PostgreSQL at DATABASE_URL (required)
  DATABASE_URL=postgres://  PostgreSQL
  otherwise                 SQLite at history.sqlite_path

Passwords in DATABASE_URL are redacted.`,
	Args: cobra.NoArgs,
	RunE: runBackend,
}

func init() {
	rootCmd.AddCommand(backendCmd)
}

func runBackend(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return printBackend(cmd.OutOrStdout(), os.Getenv, cfg.History.SQLitePath)
}

func printBackend(out io.Writer, getenv func(string) string, sqlitePath string) error {
	backend, err := history.SelectBackend(getenv, sqlitePath)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, backend.String())
	return nil
}
