// Package config provides configuration types for duovisor.
//
// The configuration is intentionally small: the two child command lines,
// logging, and the optional observability and history features. The
// supervisor's delays are fixed and are not configurable.
package config

// Default child command lines.
const (
	DefaultPrimaryCommand   = "node"
	DefaultPrimaryScript    = "server/index.js"
	DefaultSecondaryCommand = "node"
	DefaultSecondaryScript  = "bot/index.js"

	// DefaultSQLitePath is used for the history database when no
	// PostgreSQL backend is selected.
	DefaultSQLitePath = "duovisor-history.db"
)

// Config is the top-level configuration for duovisor.
type Config struct {
	// Primary is the application server.
	Primary ChildConfig `yaml:"primary" mapstructure:"primary"`

	// Secondary is the companion bot. It always receives BOT_ENABLED=true,
	// regardless of its env overrides.
	Secondary ChildConfig `yaml:"secondary" mapstructure:"secondary"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error". Defaults to "info".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// MetricsAddr is the listen address for the Prometheus /metrics endpoint.
	// Empty disables the listener.
	MetricsAddr string `yaml:"metrics_addr" mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`

	// StatePath is where the run-state file is written while supervising.
	// Empty means ~/.duovisor/state.json. The --state flag takes precedence.
	StatePath string `yaml:"state_path" mapstructure:"state_path"`

	// Tracing configures the OpenTelemetry stdout exporter.
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`

	// History configures the lifecycle event store.
	History HistoryConfig `yaml:"history" mapstructure:"history"`
}

// ChildConfig describes one supervised child.
type ChildConfig struct {
	// Name is used in log lines. Defaults to "server" / "bot".
	Name string `yaml:"name" mapstructure:"name"`

	// Command is the executable, resolved through PATH.
	Command string `yaml:"command" mapstructure:"command" validate:"required"`

	// Args are passed verbatim.
	Args []string `yaml:"args" mapstructure:"args"`

	// Env holds variables set on top of the inherited environment.
	Env map[string]string `yaml:"env" mapstructure:"env" validate:"omitempty,dive,keys,env_name,endkeys"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	// Enabled writes spans to stderr. Default: false.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// HistoryConfig configures the lifecycle history store. The backend is
// chosen from USE_POSTGRES and DATABASE_URL; SQLitePath is only used when
// those select SQLite.
type HistoryConfig struct {
	// Enabled records supervisor events. Default: false.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// SQLitePath is the SQLite database file.
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// SetDefaults applies default values to unset fields.
func (c *Config) SetDefaults() {
	// A child with neither command nor args gets the stock entry point.
	if c.Primary.Command == "" && len(c.Primary.Args) == 0 {
		c.Primary.Command = DefaultPrimaryCommand
		c.Primary.Args = []string{DefaultPrimaryScript}
	}
	if c.Primary.Name == "" {
		c.Primary.Name = "server"
	}
	if c.Secondary.Command == "" && len(c.Secondary.Args) == 0 {
		c.Secondary.Command = DefaultSecondaryCommand
		c.Secondary.Args = []string{DefaultSecondaryScript}
	}
	if c.Secondary.Name == "" {
		c.Secondary.Name = "bot"
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.History.SQLitePath == "" {
		c.History.SQLitePath = DefaultSQLitePath
	}
}
