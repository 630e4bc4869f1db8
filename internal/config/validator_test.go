package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	t.Parallel()

	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_Fields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing primary command",
			mutate:  func(c *Config) { c.Primary.Command = "" },
			wantErr: "Config.Primary.Command is required",
		},
		{
			name:    "missing secondary command",
			mutate:  func(c *Config) { c.Secondary.Command = "" },
			wantErr: "Config.Secondary.Command is required",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "must be one of",
		},
		{
			name:    "bad metrics addr",
			mutate:  func(c *Config) { c.MetricsAddr = "not an address" },
			wantErr: "must be a valid host:port",
		},
		{
			name:    "env name with equals",
			mutate:  func(c *Config) { c.Secondary.Env = map[string]string{"A=B": "x"} },
			wantErr: "invalid environment variable name",
		},
		{
			name:    "empty env name",
			mutate:  func(c *Config) { c.Primary.Env = map[string]string{"": "x"} },
			wantErr: "invalid environment variable name",
		},
		{
			name:    "same names",
			mutate:  func(c *Config) { c.Secondary.Name = c.Primary.Name },
			wantErr: "different names",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_AcceptsValidValues(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.LogLevel = "warning"
	cfg.MetricsAddr = "127.0.0.1:9464"
	cfg.Secondary.Env = map[string]string{"DISCORD_TOKEN": "x", "lower_case": "y"}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}
