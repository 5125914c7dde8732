/*
Package config holds the server configuration.

PURPOSE:
  One struct for everything the server needs at startup. cmd/server binds
  each field to a command-line flag with an environment variable fallback;
  this package only defines defaults and validates the result.

FIELDS:
  Addr                 listen address              SHIFTS_ADDR
  Driver               sqlite | postgres | memory  SHIFTS_DRIVER
  DSN                  file path, :memory:, or pgx URL  SHIFTS_DSN
  LogLevel             zap level                   SHIFTS_LOG_LEVEL
  ReviewThreshold      |net over/short| tolerance  SHIFTS_REVIEW_THRESHOLD
  LegacyZeroHeuristic  flag all-zero shifts as incomplete  SHIFTS_LEGACY_ZERO_HEURISTIC
  AllowedOrigins       CORS origins                SHIFTS_CORS_ORIGINS
  RedFlagInterval      red flag sweep period (0 disables)  SHIFTS_RED_FLAG_INTERVAL
  EnableScenarios      mount demo scenario routes  SHIFTS_ENABLE_SCENARIOS
  DevMode              allow scenarios on a persistent store  SHIFTS_DEV_MODE

DEMO SCENARIOS:
  Loading or resetting a scenario wipes every table, audit streams
  included. Scenarios are off by default and may only be enabled on the
  memory driver, or on sqlite/postgres when DevMode is set explicitly.
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/reconcile"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Addr     string
	Driver   string
	DSN      string
	LogLevel string

	ReviewThreshold     string
	LegacyZeroHeuristic bool

	AllowedOrigins  []string
	RedFlagInterval time.Duration
	EnableScenarios bool
	DevMode         bool
}

// Default is the configuration for local development.
func Default() Config {
	return Config{
		Addr:                ":8080",
		Driver:              DriverSQLite,
		DSN:                 "shifts.db",
		LogLevel:            "info",
		ReviewThreshold:     reconcile.DefaultThreshold.String(),
		LegacyZeroHeuristic: true,
		AllowedOrigins:      []string{"http://localhost:5173", "http://localhost:8080"},
		RedFlagInterval:     15 * time.Minute,
		EnableScenarios:     false,
		DevMode:             false,
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	switch c.Driver {
	case DriverSQLite, DriverPostgres:
		if strings.TrimSpace(c.DSN) == "" {
			errs = append(errs, fmt.Errorf("dsn is required for the %s driver", c.Driver))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown driver %q (sqlite, postgres, memory)", c.Driver))
	}
	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.LogLevel))
	}
	if _, err := c.Threshold(); err != nil {
		errs = append(errs, err)
	}
	if c.RedFlagInterval < 0 {
		errs = append(errs, errors.New("red flag interval must not be negative"))
	}
	if c.EnableScenarios && c.Driver != DriverMemory && !c.DevMode {
		errs = append(errs, fmt.Errorf("scenarios erase the audit history; enable them on the %s driver only with dev mode", c.Driver))
	}
	return errors.Join(errs...)
}

// Threshold parses ReviewThreshold.
func (c Config) Threshold() (generic.Amount, error) {
	a, err := generic.ParseAmount(c.ReviewThreshold, generic.UnitCurrency)
	if err != nil {
		return generic.Amount{}, fmt.Errorf("review threshold: %w", err)
	}
	if a.IsNegative() {
		return generic.Amount{}, fmt.Errorf("review threshold must not be negative, got %s", a)
	}
	return a, nil
}

// CalculatorOptions converts the reconciliation settings. Call Validate first.
func (c Config) CalculatorOptions() reconcile.Options {
	threshold, err := c.Threshold()
	if err != nil {
		threshold = reconcile.DefaultThreshold
	}
	return reconcile.Options{
		Threshold:           threshold,
		LegacyZeroHeuristic: c.LegacyZeroHeuristic,
	}
}
