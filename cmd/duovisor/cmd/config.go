package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sentinel-Gate/duovisor/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration duovisor would run with, after the config file,
DUOVISOR_ environment overrides and defaults are applied.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.StatePath == "" {
		cfg.StatePath = resolveStatePath(cfg)
	}
	out := cmd.OutOrStdout()
	if used := config.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# loaded from %s\n", used)
	}
	return writeConfig(out, cfg)
}

func writeConfig(out io.Writer, cfg *config.Config) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
