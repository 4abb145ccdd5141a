// Package config loads the shelfkeeper configuration from command-line flags,
// environment variables and defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvEnvironment  = "SHELFKEEPER_ENV"
	EnvLogLevel     = "SHELFKEEPER_LOG_LEVEL"
	EnvLogFormat    = "SHELFKEEPER_LOG_FORMAT"
	EnvSeed         = "SHELFKEEPER_SEED"
	EnvLegacy       = "SHELFKEEPER_LEGACY"
	EnvLoginRate    = "SHELFKEEPER_LOGIN_RATE"
	EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Library   LibraryConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // json or text; empty picks by environment
}

// LibraryConfig controls how the circulation manager is built.
type LibraryConfig struct {
	Seed      bool // load the sample books and demo accounts
	Legacy    bool // permissive removal and duplicate names
	LoginRate int  // logins per minute, 0 = unlimited
}

// TelemetryConfig holds tracing configuration.
type TelemetryConfig struct {
	OTLPEndpoint string // empty disables export
}

// Flags carries command-line values. An empty field means the flag was not
// given.
type Flags struct {
	Environment  string
	LogLevel     string
	LogFormat    string
	Seed         string
	Legacy       string
	LoginRate    string
	OTLPEndpoint string
}

// Load builds the configuration with precedence flags > environment >
// defaults, then validates it.
func Load(f Flags) (*Config, error) {
	seed, err := getBoolConfigValue(f.Seed, EnvSeed, true)
	if err != nil {
		return nil, err
	}
	legacy, err := getBoolConfigValue(f.Legacy, EnvLegacy, false)
	if err != nil {
		return nil, err
	}
	rate, err := getIntConfigValue(f.LoginRate, EnvLoginRate, 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(f.Environment, EnvEnvironment, "development"),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(f.LogLevel, EnvLogLevel, "info"),
			Format: getConfigValue(f.LogFormat, EnvLogFormat, ""),
		},
		Library: LibraryConfig{
			Seed:      seed,
			Legacy:    legacy,
			LoginRate: rate,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getConfigValue(f.OTLPEndpoint, EnvOTLPEndpoint, ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that all config values are present and valid.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "production":
	case "":
		return errors.New("environment is required")
	default:
		return fmt.Errorf("invalid environment: %s (must be development or production)", c.App.Environment)
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch strings.ToLower(c.Logger.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logger.Format)
	}

	if c.Library.LoginRate < 0 {
		return fmt.Errorf("invalid login rate: %d (must be zero or positive)", c.Library.LoginRate)
	}
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if value, ok := os.LookupEnv(envKey); ok && value != "" {
		return value
	}
	return defaultValue
}

func getBoolConfigValue(flagValue, envKey string, defaultValue bool) (bool, error) {
	s := getConfigValue(flagValue, envKey, "")
	if s == "" {
		return defaultValue, nil
	}
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q for %s", s, envKey)
}

func getIntConfigValue(flagValue, envKey string, defaultValue int) (int, error) {
	s := getConfigValue(flagValue, envKey, "")
	if s == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q for %s: %w", s, envKey, err)
	}
	return n, nil
}
