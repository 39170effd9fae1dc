// Package config aggregates every section a backtest run needs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ducminhle1904/pump-short-bot/internal/backtest"
	boterrors "github.com/ducminhle1904/pump-short-bot/internal/errors"
	"github.com/ducminhle1904/pump-short-bot/internal/executor"
	"github.com/ducminhle1904/pump-short-bot/internal/logger"
	"github.com/ducminhle1904/pump-short-bot/internal/portfolio"
	"github.com/ducminhle1904/pump-short-bot/internal/strategy"
)

// Config is the complete run configuration.
type Config struct {
	Backtest   backtest.Config  `json:"backtest" toml:"backtest"`
	Portfolio  portfolio.Config `json:"portfolio" toml:"portfolio"`
	Executor   executor.Config  `json:"executor" toml:"executor"`
	Strategy   strategy.Params  `json:"strategy" toml:"strategy"`
	Data       DataConfig       `json:"data" toml:"data"`
	Logging    logger.Config    `json:"logging" toml:"logging"`
	Monitoring MonitoringConfig `json:"monitoring" toml:"monitoring"`
	Report     ReportConfig     `json:"report" toml:"report"`
}

// DataConfig locates the bar file and optionally narrows it to a date range.
type DataConfig struct {
	File string `json:"file" toml:"file"`
	// Start and End are YYYY-MM-DD, inclusive. Empty means unbounded.
	Start string `json:"start" toml:"start"`
	End   string `json:"end" toml:"end"`
}

// MonitoringConfig controls the optional metrics and health endpoint.
type MonitoringConfig struct {
	Enabled bool   `json:"enabled" toml:"enabled"`
	Addr    string `json:"addr" toml:"addr"`
}

// ReportConfig selects report outputs.
type ReportConfig struct {
	OutputDir string   `json:"output_dir" toml:"output_dir"`
	Formats   []string `json:"formats" toml:"formats"`
	Console   bool     `json:"console" toml:"console"`
	// TradeRows is how many of the latest trades the console prints.
	TradeRows int `json:"trade_rows" toml:"trade_rows"`
}

// Report formats understood by the CLI.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatJSON = "json"
)

const dateLayout = "2006-01-02"

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Backtest:   backtest.DefaultConfig(),
		Portfolio:  portfolio.DefaultConfig(),
		Executor:   executor.DefaultConfig(),
		Strategy:   strategy.DefaultParams(),
		Logging:    logger.DefaultConfig(),
		Monitoring: MonitoringConfig{Addr: ":9102"},
		Report: ReportConfig{
			OutputDir: "results",
			Formats:   []string{FormatCSV, FormatJSON},
			Console:   true,
			TradeRows: 20,
		},
	}
}

// Validate checks every section and fills the warm-up from the strategy
// lookback when it is unset.
func (c *Config) Validate() error {
	if c.Backtest.WarmupBars == 0 {
		c.Backtest.WarmupBars = backtest.WarmupFor(c.Strategy.LookbackDays)
	}

	checks := []func() error{
		c.Backtest.Validate,
		c.Portfolio.Validate,
		c.Executor.Validate,
		c.Strategy.Validate,
		c.Logging.Validate,
		c.Data.validate,
		c.Report.validate,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	if c.Monitoring.Enabled && c.Monitoring.Addr == "" {
		return boterrors.NewConfigurationError("config", "monitoring.addr", "address is required when monitoring is enabled")
	}
	return nil
}

func (d DataConfig) validate() error {
	start, end, err := d.Range()
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return boterrors.NewConfigurationError("config", "data.end",
			fmt.Sprintf("end %s is before start %s", d.End, d.Start))
	}
	return nil
}

// Range parses Start and End. End is extended to the last instant of its day.
func (d DataConfig) Range() (start, end time.Time, err error) {
	if d.Start != "" {
		if start, err = time.Parse(dateLayout, d.Start); err != nil {
			return time.Time{}, time.Time{}, boterrors.NewConfigurationError("config", "data.start",
				fmt.Sprintf("invalid date %q, want YYYY-MM-DD", d.Start))
		}
	}
	if d.End != "" {
		if end, err = time.Parse(dateLayout, d.End); err != nil {
			return time.Time{}, time.Time{}, boterrors.NewConfigurationError("config", "data.end",
				fmt.Sprintf("invalid date %q, want YYYY-MM-DD", d.End))
		}
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	return start, end, nil
}

func (r ReportConfig) validate() error {
	for _, f := range r.Formats {
		switch strings.ToLower(f) {
		case FormatCSV, FormatXLSX, FormatJSON:
		default:
			return boterrors.NewConfigurationError("config", "report.formats",
				fmt.Sprintf("unknown report format %q", f))
		}
	}
	if r.TradeRows < 0 {
		return boterrors.NewConfigurationError("config", "report.trade_rows", "must not be negative")
	}
	if len(r.Formats) > 0 && r.OutputDir == "" {
		return boterrors.NewConfigurationError("config", "report.output_dir", "output directory is required")
	}
	return nil
}

// Wants reports whether format is enabled.
func (r ReportConfig) Wants(format string) bool {
	for _, f := range r.Formats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}
