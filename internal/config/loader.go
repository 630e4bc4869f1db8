package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configBaseName is the config file name without extension.
const configBaseName = "duovisor"

// InitViper initializes Viper with the configuration file and environment variables.
// If configFile is empty, it searches for duovisor.yaml/.yml in standard locations.
// The search requires an explicit YAML extension so it never matches the
// duovisor binary sitting in the working directory.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No search paths: ReadInConfig returns ConfigFileNotFoundError,
		// which LoadConfig treats as "env and defaults only".
		viper.SetConfigName(configBaseName)
		viper.SetConfigType("yaml")
	}

	// DUOVISOR_LOG_LEVEL, DUOVISOR_HISTORY_ENABLED, ...
	viper.SetEnvPrefix("DUOVISOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".duovisor"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "duovisor"))
		}
	} else {
		paths = append(paths, "/etc/duovisor")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths returns the first duovisor.yaml or duovisor.yml found
// in paths, or "".
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, configBaseName+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds scalar keys so AutomaticEnv can see them before
// they appear in a config file. Args and env maps are file-only.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("log_level")
	_ = viper.BindEnv("metrics_addr")
	_ = viper.BindEnv("state_path")

	_ = viper.BindEnv("primary.name")
	_ = viper.BindEnv("primary.command")
	_ = viper.BindEnv("secondary.name")
	_ = viper.BindEnv("secondary.command")

	_ = viper.BindEnv("tracing.enabled")

	_ = viper.BindEnv("history.enabled")
	_ = viper.BindEnv("history.sqlite_path")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and validates the result.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults,
// but does NOT validate. Used when CLI flags may still override fields.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file: continue with env vars and defaults.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := restoreEnvCase(&cfg, viper.ConfigFileUsed()); err != nil {
		return nil, err
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// restoreEnvCase re-reads the child env maps from the YAML file. Viper
// lowercases map keys, but environment variable names are case-sensitive.
func restoreEnvCase(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var raw struct {
		Primary struct {
			Env map[string]string `yaml:"env"`
		} `yaml:"primary"`
		Secondary struct {
			Env map[string]string `yaml:"env"`
		} `yaml:"secondary"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse child env: %w", err)
	}
	if raw.Primary.Env != nil {
		cfg.Primary.Env = raw.Primary.Env
	}
	if raw.Secondary.Env != nil {
		cfg.Secondary.Env = raw.Secondary.Env
	}
	return nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
