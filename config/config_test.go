package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "20", cfg.CalculatorOptions().Threshold.String())
	assert.True(t, cfg.CalculatorOptions().LegacyZeroHeuristic)
	assert.False(t, cfg.EnableScenarios, "scenarios wipe the store")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown driver", func(c *Config) { c.Driver = "mysql" }, `unknown driver "mysql"`},
		{"postgres without dsn", func(c *Config) { c.Driver = DriverPostgres; c.DSN = "" }, "dsn is required for the postgres driver"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, `invalid log level "loud"`},
		{"bad threshold", func(c *Config) { c.ReviewThreshold = "twenty" }, "review threshold"},
		{"negative threshold", func(c *Config) { c.ReviewThreshold = "-1" }, "must not be negative"},
		{"empty addr", func(c *Config) { c.Addr = " " }, "addr must not be empty"},
		{"negative interval", func(c *Config) { c.RedFlagInterval = -time.Second }, "red flag interval"},
		{"scenarios on sqlite", func(c *Config) { c.EnableScenarios = true }, "enable them on the sqlite driver only with dev mode"},
		{"scenarios on postgres", func(c *Config) { c.Driver = DriverPostgres; c.EnableScenarios = true }, "postgres driver only with dev mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestValidate_MemoryNeedsNoDSN(t *testing.T) {
	cfg := Default()
	cfg.Driver = DriverMemory
	cfg.DSN = ""

	assert.NoError(t, cfg.Validate())
}

func TestValidate_ScenariosAllowed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"memory driver", func(c *Config) { c.Driver = DriverMemory }},
		{"sqlite in dev mode", func(c *Config) { c.DevMode = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.EnableScenarios = true
			tt.mutate(&cfg)

			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Driver = "mysql"
	cfg.LogLevel = "loud"

	err := cfg.Validate()

	assert.ErrorContains(t, err, "unknown driver")
	assert.ErrorContains(t, err, "invalid log level")
}

func TestCalculatorOptions_CustomThreshold(t *testing.T) {
	cfg := Default()
	cfg.ReviewThreshold = "12.50"
	cfg.LegacyZeroHeuristic = false

	opts := cfg.CalculatorOptions()

	assert.Equal(t, "12.5", opts.Threshold.String())
	assert.False(t, opts.LegacyZeroHeuristic)
}
