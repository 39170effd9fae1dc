package main

import (
	"flag"
	"strings"

	"github.com/ducminhle1904/pump-short-bot/cmd/common"
	"github.com/ducminhle1904/pump-short-bot/internal/config"
	"github.com/ducminhle1904/pump-short-bot/pkg/data"
)

// Flags holds the command line. Only flags given explicitly override the
// configuration file.
type Flags struct {
	*common.CommonFlags

	ConfigFile *string
	DataFiles  *string
	Symbols    *string
	Interval   *string
	Exchange   *string
	Period     *string
	Start      *string
	End        *string

	Capital      *float64
	FeeRate      *float64
	SlippageRate *float64
	MinStrength  *float64

	OutputDir *string
	Formats   *string
	TradeRows *int
	Workers   *int

	Metrics     *bool
	MetricsAddr *string
	LogDir      *string

	fs  *flag.FlagSet
	set map[string]bool
}

func NewFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		CommonFlags: common.RegisterCommonFlags(fs),

		ConfigFile: fs.String("config", "", "Configuration file (.toml or .json)"),
		DataFiles:  fs.String("data", "", "Bar CSV file, or a comma separated list for a batch run"),
		Symbols:    fs.String("symbol", "", "Symbol, or a comma separated list looked up under -data-root"),
		Interval:   fs.String("interval", "", "Bar interval (5m, 15m, 1h, 4h, 1d)"),
		Exchange:   fs.String("exchange", "bybit", "Exchange directory under -data-root"),
		Period:     fs.String("period", "", "Keep only the trailing period (7d, 30d, 720h)"),
		Start:      fs.String("start", "", "First day to replay, YYYY-MM-DD"),
		End:        fs.String("end", "", "Last day to replay, YYYY-MM-DD"),

		Capital:      fs.Float64("capital", 0, "Initial capital"),
		FeeRate:      fs.Float64("fee", 0, "Fee rate per fill (0.001 = 0.1%)"),
		SlippageRate: fs.Float64("slippage", 0, "Slippage rate per fill"),
		MinStrength:  fs.Float64("min-strength", 0, "Minimum signal strength to enter"),

		OutputDir: fs.String("output", "", "Report output directory"),
		Formats:   fs.String("formats", "", "Report formats: csv,xlsx,json"),
		TradeRows: fs.Int("trades", 0, "Latest trades to print"),
		Workers:   fs.Int("workers", 0, "Parallel batch workers (0 = one per CPU)"),

		Metrics:     fs.Bool("metrics", false, "Serve /metrics and /health while running"),
		MetricsAddr: fs.String("metrics-addr", "", "Metrics listen address"),
		LogDir:      fs.String("log-dir", "", "Log file directory"),

		fs: fs,
	}
}

// Parse parses args and records which flags were given.
func (f *Flags) Parse(args []string) error {
	if err := f.fs.Parse(args); err != nil {
		return err
	}
	f.set = common.SetFlags(f.fs)
	return nil
}

func (f *Flags) given(name string) bool { return f.set[name] }

// Validate checks the values of the flags that were given.
func (f *Flags) Validate() error {
	v := common.NewFlagValidator()
	if f.given("config") {
		v.ValidateFile("config", *f.ConfigFile, true)
	}
	for _, path := range common.SplitList(*f.DataFiles) {
		v.ValidateFile("data", path, true)
	}
	if f.given("capital") && *f.Capital <= 0 {
		v.AddError("capital must be positive")
	}
	if f.given("fee") {
		v.ValidateFloat("fee", *f.FeeRate, 0, 0.1)
	}
	if f.given("slippage") {
		v.ValidateFloat("slippage", *f.SlippageRate, 0, 0.1)
	}
	if f.given("min-strength") {
		v.ValidateFloat("min-strength", *f.MinStrength, 0, 1)
	}
	if f.given("period") {
		if _, ok := data.ParseTrailingPeriod(*f.Period); !ok {
			v.AddError("period must look like 7d, 30d or 720h, got: " + *f.Period)
		}
	}
	for _, format := range common.SplitList(*f.Formats) {
		v.ValidateChoice("formats", format, []string{config.FormatCSV, config.FormatXLSX, config.FormatJSON})
	}
	v.ValidateInt("trades", *f.TradeRows, 0, 10000)
	v.ValidateInt("workers", *f.Workers, 0, 256)
	if *f.Verbose && *f.Quiet {
		v.AddError("verbose and quiet are mutually exclusive")
	}
	return v.Error()
}

// Apply overlays the given flags on cfg.
func (f *Flags) Apply(cfg *config.Config) {
	if f.given("interval") {
		cfg.Backtest.Interval = *f.Interval
	}
	if symbols := common.SplitList(*f.Symbols); len(symbols) == 1 {
		cfg.Backtest.Symbol = strings.ToUpper(symbols[0])
	}
	if files := common.SplitList(*f.DataFiles); len(files) == 1 {
		cfg.Data.File = files[0]
	}
	if f.given("start") {
		cfg.Data.Start = *f.Start
	}
	if f.given("end") {
		cfg.Data.End = *f.End
	}
	if f.given("capital") {
		cfg.Portfolio.InitialCapital = *f.Capital
	}
	if f.given("fee") {
		cfg.Portfolio.FeeRate = *f.FeeRate
	}
	if f.given("slippage") {
		cfg.Portfolio.SlippageRate = *f.SlippageRate
	}
	if f.given("min-strength") {
		cfg.Executor.MinSignalStrength = *f.MinStrength
	}
	if f.given("output") {
		cfg.Report.OutputDir = *f.OutputDir
	}
	if f.given("formats") {
		cfg.Report.Formats = common.SplitList(strings.ToLower(*f.Formats))
	}
	if f.given("trades") {
		cfg.Report.TradeRows = *f.TradeRows
	}
	if *f.ConsoleOnly {
		cfg.Report.Formats = nil
	}
	if *f.Quiet {
		cfg.Report.Console = false
	}
	if f.given("metrics") {
		cfg.Monitoring.Enabled = *f.Metrics
	}
	if f.given("metrics-addr") {
		cfg.Monitoring.Addr = *f.MetricsAddr
	}
	if f.given("log-dir") {
		cfg.Logging.Dir = *f.LogDir
	}
	if level := f.LogLevel(); level != "" {
		cfg.Logging.Level = level
	}
}
