package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	boterrors "github.com/ducminhle1904/pump-short-bot/internal/errors"
)

// EnvPrefix namespaces the environment overrides.
const EnvPrefix = "PUMP_"

// Load merges the file at path, if any, over Defaults, applies PUMP_*
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("failed to decode %s: %w", path, err)
		}
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return boterrors.NewConfigurationError("config", "load",
			fmt.Sprintf("unsupported config file extension %q", ext))
	}
	return nil
}

// applyEnvOverrides overwrites fields whose PUMP_* variable is set.
func applyEnvOverrides(cfg *Config) error {
	setStr(&cfg.Backtest.Symbol, "SYMBOL")
	setStr(&cfg.Backtest.Interval, "INTERVAL")
	setStr(&cfg.Data.File, "DATA_FILE")
	setStr(&cfg.Logging.Level, "LOG_LEVEL")
	setStr(&cfg.Logging.Dir, "LOG_DIR")
	setStr(&cfg.Monitoring.Addr, "METRICS_ADDR")
	setStr(&cfg.Report.OutputDir, "OUTPUT_DIR")

	floats := []struct {
		dst *float64
		key string
	}{
		{&cfg.Portfolio.InitialCapital, "INITIAL_CAPITAL"},
		{&cfg.Portfolio.FeeRate, "FEE_RATE"},
		{&cfg.Portfolio.SlippageRate, "SLIPPAGE_RATE"},
		{&cfg.Executor.MinSignalStrength, "MIN_SIGNAL_STRENGTH"},
	}
	for _, f := range floats {
		if err := setFloat(f.dst, f.key); err != nil {
			return err
		}
	}
	return setBool(&cfg.Monitoring.Enabled, "METRICS_ENABLED")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return boterrors.NewConfigurationError("config", EnvPrefix+key, fmt.Sprintf("invalid number %q", v))
	}
	*dst = f
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return boterrors.NewConfigurationError("config", EnvPrefix+key, fmt.Sprintf("invalid bool %q", v))
	}
	*dst = b
	return nil
}
