package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/viper"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.Primary.Command != "node" || !reflect.DeepEqual(cfg.Primary.Args, []string{"server/index.js"}) {
		t.Errorf("Primary = %s %v, want node [server/index.js]", cfg.Primary.Command, cfg.Primary.Args)
	}
	if cfg.Secondary.Command != "node" || !reflect.DeepEqual(cfg.Secondary.Args, []string{"bot/index.js"}) {
		t.Errorf("Secondary = %s %v, want node [bot/index.js]", cfg.Secondary.Command, cfg.Secondary.Args)
	}
	if cfg.Primary.Name != "server" || cfg.Secondary.Name != "bot" {
		t.Errorf("names = %q/%q, want server/bot", cfg.Primary.Name, cfg.Secondary.Name)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.History.SQLitePath != DefaultSQLitePath {
		t.Errorf("History.SQLitePath = %q, want %q", cfg.History.SQLitePath, DefaultSQLitePath)
	}
	if cfg.History.Enabled || cfg.Tracing.Enabled {
		t.Error("history and tracing should default to disabled")
	}
	if cfg.StatePath != "" {
		t.Errorf("StatePath = %q, want empty (resolved by the CLI)", cfg.StatePath)
	}
	if cfg.MetricsAddr != "" {
		t.Errorf("MetricsAddr = %q, want empty (disabled)", cfg.MetricsAddr)
	}
}

func TestConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Primary:   ChildConfig{Name: "api", Command: "./api", Args: []string{"--port", "3000"}},
		Secondary: ChildConfig{Command: "python3", Args: []string{"bot.py"}},
		LogLevel:  "debug",
		StatePath: "/run/duovisor.json",
		History:   HistoryConfig{SQLitePath: "/var/lib/duovisor.db"},
	}
	cfg.SetDefaults()

	if cfg.Primary.Name != "api" || cfg.Primary.Command != "./api" {
		t.Errorf("Primary = %+v, want preserved", cfg.Primary)
	}
	if !reflect.DeepEqual(cfg.Primary.Args, []string{"--port", "3000"}) {
		t.Errorf("Primary.Args = %v, want preserved", cfg.Primary.Args)
	}
	if cfg.Secondary.Command != "python3" {
		t.Errorf("Secondary.Command = %q, want python3", cfg.Secondary.Command)
	}
	if cfg.Secondary.Name != "bot" {
		t.Errorf("Secondary.Name = %q, want default bot", cfg.Secondary.Name)
	}
	if cfg.LogLevel != "debug" || cfg.StatePath != "/run/duovisor.json" {
		t.Errorf("LogLevel/StatePath = %q/%q, want preserved", cfg.LogLevel, cfg.StatePath)
	}
	if cfg.History.SQLitePath != "/var/lib/duovisor.db" {
		t.Errorf("History.SQLitePath = %q, want preserved", cfg.History.SQLitePath)
	}
}

func TestConfig_SetDefaults_ArgsWithoutCommand(t *testing.T) {
	t.Parallel()

	// Args alone are not replaced with the stock command line.
	cfg := Config{Primary: ChildConfig{Args: []string{"server.js"}}}
	cfg.SetDefaults()

	if cfg.Primary.Command != "" {
		t.Errorf("Primary.Command = %q, want empty so validation reports it", cfg.Primary.Command)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for args without command")
	}
}

func TestFindConfigFileInPaths_EmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	if got := findConfigFileInPaths([]string{dir}); got != "" {
		t.Errorf("findConfigFileInPaths(empty dir) = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_MatchesYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "duovisor.yml")
	_ = os.WriteFile(cfgPath, []byte("log_level: debug\n"), 0644)

	if got := findConfigFileInPaths([]string{dir}); got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_IgnoresNoExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	// The binary itself: "duovisor" with no extension.
	_ = os.WriteFile(filepath.Join(dir, "duovisor"), []byte("\x7fELF binary"), 0755)

	if got := findConfigFileInPaths([]string{dir}); got != "" {
		t.Errorf("findConfigFileInPaths matched binary = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_PrefersYAMLOverYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "duovisor.yaml")
	_ = os.WriteFile(yamlPath, []byte("log_level: info\n"), 0644)
	_ = os.WriteFile(filepath.Join(dir, "duovisor.yml"), []byte("log_level: debug\n"), 0644)

	if got := findConfigFileInPaths([]string{dir}); got != yamlPath {
		t.Errorf("findConfigFileInPaths = %q, want %q (.yaml preferred)", got, yamlPath)
	}
}

func TestFindConfigFileInPaths_SearchOrder(t *testing.T) {
	t.Parallel()
	first, second := t.TempDir(), t.TempDir()
	want := filepath.Join(second, "duovisor.yaml")
	_ = os.WriteFile(want, []byte("log_level: info\n"), 0644)

	if got := findConfigFileInPaths([]string{first, second}); got != want {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, want)
	}
}

// The loader tests share viper's global instance and must not run in parallel.

func TestLoadConfig_FromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "duovisor.yaml")
	content := `
primary:
  name: api
  command: ./bin/api
  args: ["--port", "3000"]
secondary:
  command: ./bin/bot
  env:
    BOT_TOKEN: secret
log_level: debug
metrics_addr: 127.0.0.1:9464
history:
  enabled: true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	InitViper(path)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Primary.Name != "api" || cfg.Primary.Command != "./bin/api" {
		t.Errorf("Primary = %+v", cfg.Primary)
	}
	if !reflect.DeepEqual(cfg.Primary.Args, []string{"--port", "3000"}) {
		t.Errorf("Primary.Args = %v", cfg.Primary.Args)
	}
	if cfg.Secondary.Env["BOT_TOKEN"] != "secret" {
		t.Errorf("Secondary.Env = %v, want BOT_TOKEN", cfg.Secondary.Env)
	}
	if cfg.Secondary.Name != "bot" {
		t.Errorf("Secondary.Name = %q, want default bot", cfg.Secondary.Name)
	}
	if cfg.LogLevel != "debug" || cfg.MetricsAddr != "127.0.0.1:9464" {
		t.Errorf("LogLevel/MetricsAddr = %q/%q", cfg.LogLevel, cfg.MetricsAddr)
	}
	if !cfg.History.Enabled {
		t.Error("History.Enabled = false, want true")
	}
	if ConfigFileUsed() != path {
		t.Errorf("ConfigFileUsed() = %q, want %q", ConfigFileUsed(), path)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("DUOVISOR_LOG_LEVEL", "warn")
	t.Setenv("DUOVISOR_TRACING_ENABLED", "true")

	dir := t.TempDir()
	path := filepath.Join(dir, "duovisor.yaml")
	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0600); err != nil {
		t.Fatal(err)
	}

	InitViper(path)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn from env", cfg.LogLevel)
	}
	if !cfg.Tracing.Enabled {
		t.Error("Tracing.Enabled = false, want true from env")
	}
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "duovisor.yaml")
	if err := os.WriteFile(path, []byte("log_level: loud\n"), 0600); err != nil {
		t.Fatal(err)
	}

	InitViper(path)
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() expected validation error for log_level: loud")
	}
}
