// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	// Storage layout (spec §6 "Persisted state layout").
	SpecDBDir  string // {specDbDir}/{category}.sqlite
	OutputRoot string // {outputRoot}/{category}/{product_id}/latest/*.json
	HelperRoot string // {helperRoot}/{category}/_generated/*.json, _overrides/*.json

	// Orchestrator / Aggressive Mode settings (spec §4.8).
	CortexEnabled                 bool
	CortexMaxDeepFieldsPerProduct int

	// Trace writer settings (spec §6).
	TraceRingSize int

	// Operational settings.
	LogLevel   string
	OTELEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if any environment variable contains an unparseable value.
// Missing variables use sensible defaults; only malformed values are rejected.
func Load() (Config, error) {
	var errs []error
	cfg := Config{
		SpecDBDir:  envStr("CURATION_SPEC_DB_DIR", "./data/spec-db"),
		OutputRoot: envStr("CURATION_OUTPUT_ROOT", "./data/output"),
		HelperRoot: envStr("CURATION_HELPER_ROOT", "./data/helpers"),
		LogLevel:   envStr("CURATION_LOG_LEVEL", "info"),
	}

	cfg.CortexEnabled, errs = collectBool(errs, "CORTEX_ENABLED", false)
	cfg.CortexMaxDeepFieldsPerProduct, errs = collectInt(errs, "CORTEX_MAX_DEEP_FIELDS_PER_PRODUCT", 3)
	cfg.TraceRingSize, errs = collectInt(errs, "CURATION_TRACE_RING_SIZE", 20)
	cfg.OTELEnabled, errs = collectBool(errs, "CURATION_OTEL_ENABLED", false)

	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return Config{}, fmt.Errorf("config: invalid environment variables:\n  %s", strings.Join(msgs, "\n  "))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// collectInt parses an int env var, appending any error to the accumulator.
func collectInt(errs []error, key string, fallback int) (int, []error) {
	v, err := envInt(key, fallback)
	if err != nil {
		errs = append(errs, err)
	}
	return v, errs
}

// collectBool parses a bool env var, appending any error to the accumulator.
func collectBool(errs []error, key string, fallback bool) (bool, []error) {
	v, err := envBool(key, fallback)
	if err != nil {
		errs = append(errs, err)
	}
	return v, errs
}

// Validate checks that required configuration is present and sane.
func (c Config) Validate() error {
	var errs []error

	if c.SpecDBDir == "" {
		errs = append(errs, errors.New("config: CURATION_SPEC_DB_DIR is required"))
	}
	if c.OutputRoot == "" {
		errs = append(errs, errors.New("config: CURATION_OUTPUT_ROOT is required"))
	}
	if c.HelperRoot == "" {
		errs = append(errs, errors.New("config: CURATION_HELPER_ROOT is required"))
	}
	if c.CortexMaxDeepFieldsPerProduct < 0 {
		errs = append(errs, errors.New("config: CORTEX_MAX_DEEP_FIELDS_PER_PRODUCT must not be negative"))
	}
	if c.TraceRingSize <= 0 {
		errs = append(errs, errors.New("config: CURATION_TRACE_RING_SIZE must be positive"))
	}

	return errors.Join(errs...)
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}
