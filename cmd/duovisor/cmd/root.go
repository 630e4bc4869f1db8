// Package cmd provides the CLI commands for duovisor.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/duovisor/internal/adapter/inbound/metrics"
	"github.com/Sentinel-Gate/duovisor/internal/adapter/outbound/history"
	"github.com/Sentinel-Gate/duovisor/internal/adapter/outbound/process"
	"github.com/Sentinel-Gate/duovisor/internal/adapter/outbound/state"
	"github.com/Sentinel-Gate/duovisor/internal/config"
	"github.com/Sentinel-Gate/duovisor/internal/domain/supervisor"
	"github.com/Sentinel-Gate/duovisor/internal/port/inbound"
	"github.com/Sentinel-Gate/duovisor/internal/service"
	"github.com/Sentinel-Gate/duovisor/internal/telemetry"
)

// shutdownTimeout bounds flushing of the metrics listener, tracer and
// history store after the children are gone.
const shutdownTimeout = 2 * time.Second

// historyOpenTimeout bounds connecting to the history database before the
// children are started.
const historyOpenTimeout = 5 * time.Second

var cfgFile string
var stateFilePath string

var rootCmd = &cobra.Command{
	Use:   "duovisor",
	Short: "duovisor - supervise an app server and its bot",
	Long: `duovisor starts the application server, then the companion bot two
seconds later with BOT_ENABLED=true, and keeps both in the foreground.

If either child exits, or duovisor receives SIGINT/SIGTERM, both children are
asked to terminate and duovisor exits one second later. The exit status is
the child's exit code, 1 for a child that stopped without one, or 0 when
duovisor itself was signaled.

Configuration:
  Config is loaded from duovisor.yaml in the current directory,
  $HOME/.duovisor/, or /etc/duovisor/.

  Environment variables can override config values with the DUOVISOR_ prefix.
  Example: DUOVISOR_LOG_LEVEL=debug

Commands:
  stop        Stop the running supervisor
  status      Show the running supervisor and its children
  history     Show recorded lifecycle events
  backend     Show which history database USE_POSTGRES/DATABASE_URL select
  config      Print the effective configuration
  version     Print version information`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSupervise,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./duovisor.yaml)")
	rootCmd.PersistentFlags().StringVar(&stateFilePath, "state", "", "path to the run-state file (default: ~/.duovisor/state.json)")
}

func initConfig() {
	config.InitViper(cfgFile)
}

// runSupervise calls superviseInternal, where all defers run, and then
// exits with the supervisor's status.
func runSupervise(cmd *cobra.Command, args []string) error {
	exitCode, err := superviseInternal(cmd.Context())
	if err != nil {
		return err
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}

func superviseInternal(ctx context.Context) (exitCode int, retErr error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return 0, fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	stateStore := state.NewFileStateStore(resolveStatePath(cfg), logger)
	if err := checkNotRunning(stateStore); err != nil {
		return 0, err
	}

	reg := prometheus.NewRegistry()
	observer := metrics.NewMetrics(reg)
	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr, reg, logger)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown failed", "error", err)
			}
		}()
	}

	tp, err := telemetry.NewProvider(cfg.Tracing.Enabled, os.Stderr, Version)
	if err != nil {
		return 0, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	opts := []service.SupervisorOption{
		service.WithObserver(observer),
		service.WithTracer(tp.Tracer()),
		service.WithRunState(stateStore),
	}

	// History is optional: a broken database must not keep the app down.
	if cfg.History.Enabled {
		store, err := openHistory(ctx, cfg, logger)
		if err != nil {
			logger.Warn("history disabled", "error", err)
		} else {
			defer store.Close()
			logger.Info("recording history", "backend", store.Backend().String())
			opts = append(opts, service.WithRecorder(store))
		}
	}

	var sup inbound.Supervisor = service.NewSupervisor(
		process.NewExecSpawner(),
		childSpec(cfg.Primary),
		childSpec(cfg.Secondary),
		logger,
		opts...,
	)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, gracefulSignals()...)
	defer signal.Stop(signals)

	code := sup.Run(ctx, signals)
	logger.Debug("supervisor run finished", "run_id", sup.RunID(), "exit_code", code)
	return code, nil
}

// checkNotRunning refuses to start over a live supervisor's state file and
// clears a stale one.
func checkNotRunning(store *state.FileStateStore) error {
	st, err := store.Load()
	if err != nil {
		// Missing or unreadable: the first transition overwrites it.
		return nil
	}
	if proc, err := os.FindProcess(st.PID); err == nil && st.PID != os.Getpid() && processIsAlive(proc) {
		return fmt.Errorf("duovisor is already running (PID %d, state file %s)\n"+
			"If no supervisor is running, the PID was reused: remove %s and retry",
			st.PID, store.Path(), store.Path())
	}
	return store.Remove()
}

func openHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*history.SQLStore, error) {
	backend, err := history.SelectBackend(os.Getenv, cfg.History.SQLitePath)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, historyOpenTimeout)
	defer cancel()
	return history.Open(ctx, backend, logger)
}

func childSpec(c config.ChildConfig) supervisor.ProcessSpec {
	return supervisor.ProcessSpec{
		Name:    c.Name,
		Command: c.Command,
		Args:    c.Args,
		Env:     c.Env,
	}
}

// resolveStatePath picks the state file: --state flag, then config, then default.
func resolveStatePath(cfg *config.Config) string {
	if stateFilePath != "" {
		return stateFilePath
	}
	if cfg != nil && cfg.StatePath != "" {
		return cfg.StatePath
	}
	return state.DefaultPath()
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	}))
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
