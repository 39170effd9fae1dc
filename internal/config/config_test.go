package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10, cfg.Backtest.WarmupBars)
	assert.Equal(t, 10000.0, cfg.Portfolio.InitialCapital)
	assert.Equal(t, 0.001, cfg.Portfolio.FeeRate)
	assert.Equal(t, 0.0005, cfg.Portfolio.SlippageRate)
	assert.Equal(t, 0.1, cfg.Portfolio.Risk.MaxPositionSizeRatio)
	assert.Equal(t, 0.8, cfg.Portfolio.Risk.MaxTotalExposureRatio)
	assert.Equal(t, 5, cfg.Portfolio.Risk.MaxConcurrentPositions)
	assert.Equal(t, 0.15, cfg.Portfolio.Risk.PortfolioStopLossRatio)
	assert.Equal(t, 0.6, cfg.Executor.MinSignalStrength)
	assert.Equal(t, 0.08, cfg.Executor.DefaultPositionSizeRatio)
	assert.Equal(t, 0.8, cfg.Strategy.PumpThreshold)
	assert.Equal(t, 3, cfg.Strategy.LookbackDays)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "run.toml", `
[backtest]
symbol = "WIFUSDT"
interval = "1h"

[portfolio]
initial_capital = 50000.0
fee_rate = 0.0004

[portfolio.risk_management]
max_position_size_ratio = 0.05
max_total_exposure_ratio = 0.5
max_concurrent_positions = 3
portfolio_stop_loss_ratio = 0.1

[strategy]
lookback_days = 9

[report]
formats = ["xlsx"]
output_dir = "out"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "WIFUSDT", cfg.Backtest.Symbol)
	assert.Equal(t, 50000.0, cfg.Portfolio.InitialCapital)
	assert.Equal(t, 0.0004, cfg.Portfolio.FeeRate)
	assert.Equal(t, 0.0005, cfg.Portfolio.SlippageRate)
	assert.Equal(t, 3, cfg.Portfolio.Risk.MaxConcurrentPositions)
	assert.Equal(t, 14, cfg.Backtest.WarmupBars)
	assert.Equal(t, 0.8, cfg.Strategy.PumpThreshold)
	assert.True(t, cfg.Report.Wants(FormatXLSX))
	assert.False(t, cfg.Report.Wants(FormatCSV))
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "run.json", `{
		"executor": {"min_signal_strength": 0.7, "default_position_size_ratio": 0.05},
		"data": {"file": "bars.csv", "start": "2024-01-01", "end": "2024-01-31"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.Executor.MinSignalStrength)
	assert.Equal(t, "bars.csv", cfg.Data.File)

	start, end, err := cfg.Data.Range()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 2024, end.Year())
	assert.Equal(t, 31, end.Day())
	assert.Equal(t, 23, end.Hour())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"unknown extension", "run.yaml", "backtest: {}"},
		{"broken toml", "run.toml", "[backtest"},
		{"broken json", "run.json", "{"},
		{"invalid risk", "run.toml", "[portfolio.risk_management]\nmax_position_size_ratio = 0.9\nmax_total_exposure_ratio = 0.5\nmax_concurrent_positions = 1\nportfolio_stop_loss_ratio = 0.1\n"},
		{"reversed dates", "run.json", `{"data": {"start": "2024-02-01", "end": "2024-01-01"}}`},
		{"bad date", "run.json", `{"data": {"start": "01/02/2024"}}`},
		{"unknown format", "run.json", `{"report": {"formats": ["pdf"], "output_dir": "x"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PUMP_INITIAL_CAPITAL", "25000")
	t.Setenv("PUMP_LOG_LEVEL", "debug")
	t.Setenv("PUMP_SYMBOL", "BONKUSDT")
	t.Setenv("PUMP_METRICS_ENABLED", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 25000.0, cfg.Portfolio.InitialCapital)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "BONKUSDT", cfg.Backtest.Symbol)
	assert.True(t, cfg.Monitoring.Enabled)
}

func TestEnvOverrideErrors(t *testing.T) {
	t.Setenv("PUMP_INITIAL_CAPITAL", "lots")
	_, err := Load("")
	assert.Error(t, err)
}
