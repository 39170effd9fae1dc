package reporting

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ducminhle1904/pump-short-bot/internal/backtest"
	"github.com/ducminhle1904/pump-short-bot/internal/config"
)

// DefaultReporter implements Reporter by delegating to the per-format reporters.
type DefaultReporter struct {
	console *DefaultConsoleReporter
	csv     *DefaultCSVReporter
	excel   *DefaultExcelReporter
	json    *DefaultJSONFormatter
	paths   *DefaultPathManager
}

func NewDefaultReporter(out io.Writer) *DefaultReporter {
	return &DefaultReporter{
		console: NewDefaultConsoleReporter(out),
		csv:     NewDefaultCSVReporter(),
		excel:   NewDefaultExcelReporter(),
		json:    NewDefaultJSONFormatter(),
		paths:   NewDefaultPathManager(),
	}
}

func (r *DefaultReporter) OutputResults(res *backtest.Results)           { r.console.OutputResults(res) }
func (r *DefaultReporter) OutputTrades(res *backtest.Results, limit int) { r.console.OutputTrades(res, limit) }
func (r *DefaultReporter) OutputBatch(results []backtest.JobResult)      { r.console.OutputBatch(results) }

func (r *DefaultReporter) GetDefaultOutputDir(root, symbol, interval string) string {
	return r.paths.GetDefaultOutputDir(root, symbol, interval)
}

func (r *DefaultReporter) EnsureDirectoryExists(path string) error {
	return r.paths.EnsureDirectoryExists(path)
}

func (r *DefaultReporter) WriteTradesCSV(res *backtest.Results, path string) error {
	return r.csv.WriteTradesCSV(res, path)
}

func (r *DefaultReporter) WritePositionsCSV(res *backtest.Results, path string) error {
	return r.csv.WritePositionsCSV(res, path)
}

func (r *DefaultReporter) WriteEquityCSV(res *backtest.Results, path string) error {
	return r.csv.WriteEquityCSV(res, path)
}

func (r *DefaultReporter) WriteXLSX(res *backtest.Results, path string) error {
	return r.excel.WriteXLSX(res, path)
}

func (r *DefaultReporter) WriteJSON(res *backtest.Results, path string) error {
	return r.json.WriteJSON(res, path)
}

// ReportingManager applies Options to finished runs.
type ReportingManager struct {
	reporter *DefaultReporter
	opts     Options
	log      zerolog.Logger
}

func NewReportingManager(opts Options, out io.Writer, log zerolog.Logger) *ReportingManager {
	return &ReportingManager{
		reporter: NewDefaultReporter(out),
		opts:     opts,
		log:      log.With().Str("component", "reporting").Logger(),
	}
}

// OptionsFromConfig maps the report section of the run configuration.
func OptionsFromConfig(cfg config.ReportConfig) Options {
	return Options{
		OutputDir: cfg.OutputDir,
		Formats:   cfg.Formats,
		Console:   cfg.Console,
		TradeRows: cfg.TradeRows,
	}
}

func (o Options) wants(format string) bool {
	for _, f := range o.Formats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

// ReportResults prints and writes res. It returns the files written.
func (m *ReportingManager) ReportResults(res *backtest.Results) ([]string, error) {
	if m.opts.Console {
		m.reporter.OutputResults(res)
		if m.opts.TradeRows > 0 {
			m.reporter.OutputTrades(res, m.opts.TradeRows)
		}
	}
	if len(m.opts.Formats) == 0 {
		return nil, nil
	}

	dir := m.reporter.GetDefaultOutputDir(m.opts.OutputDir, res.Symbol, res.Interval)
	type output struct {
		format string
		name   string
		write  func(*backtest.Results, string) error
	}
	outputs := []output{
		{config.FormatCSV, "trades.csv", m.reporter.WriteTradesCSV},
		{config.FormatCSV, "positions.csv", m.reporter.WritePositionsCSV},
		{config.FormatCSV, "equity.csv", m.reporter.WriteEquityCSV},
		{config.FormatXLSX, "report.xlsx", m.reporter.WriteXLSX},
		{config.FormatJSON, "results.json", m.reporter.WriteJSON},
	}

	var written []string
	for _, o := range outputs {
		if !m.opts.wants(o.format) {
			continue
		}
		path := filepath.Join(dir, o.name)
		if err := o.write(res, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	m.log.Info().Str("dir", dir).Strs("files", written).Msg("reports written")
	return written, nil
}

// ReportBatch prints the batch table and writes batch.json when JSON is wanted.
func (m *ReportingManager) ReportBatch(results []backtest.JobResult) (string, error) {
	if m.opts.Console {
		m.reporter.OutputBatch(results)
	}
	if !m.opts.wants(config.FormatJSON) {
		return "", nil
	}
	root := m.opts.OutputDir
	if root == "" {
		root = "results"
	}
	path := filepath.Join(root, "batch.json")
	if err := m.reporter.json.WriteBatchJSON(results, path); err != nil {
		return "", err
	}
	m.log.Info().Str("path", path).Int("jobs", len(results)).Msg("batch report written")
	return path, nil
}
