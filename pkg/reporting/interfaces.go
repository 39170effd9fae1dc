package reporting

import (
	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/pump-short-bot/internal/backtest"
)

// Package reporting renders finished backtest runs to the console and to files.

// ConsoleReporter prints a run in human readable tables.
type ConsoleReporter interface {
	OutputResults(results *backtest.Results)
	OutputTrades(results *backtest.Results, limit int)
	OutputBatch(results []backtest.JobResult)
}

// FileReporter writes a run to disk, one method per format.
type FileReporter interface {
	WriteTradesCSV(results *backtest.Results, path string) error
	WritePositionsCSV(results *backtest.Results, path string) error
	WriteEquityCSV(results *backtest.Results, path string) error
	WriteXLSX(results *backtest.Results, path string) error
	WriteJSON(results *backtest.Results, path string) error
}

// PathManager decides where report files go.
type PathManager interface {
	GetDefaultOutputDir(root, symbol, interval string) string
	EnsureDirectoryExists(path string) error
}

// Reporter combines all reporting interfaces.
type Reporter interface {
	ConsoleReporter
	FileReporter
	PathManager
}

// ExcelStyles holds workbook style ids.
type ExcelStyles struct {
	HeaderStyle        int
	CurrencyStyle      int
	PriceStyle         int
	PercentStyle       int
	BaseStyle          int
	DateStyle          int
	EntryStyle         int
	ExitStyle          int
	GreenCurrencyStyle int
	RedCurrencyStyle   int
}

// ExcelFormatter writes individual workbook sheets.
type ExcelFormatter interface {
	WriteSummarySheet(fx *excelize.File, sheet string, results *backtest.Results, styles ExcelStyles) error
	WriteTradesSheet(fx *excelize.File, sheet string, results *backtest.Results, styles ExcelStyles) error
}

// Options selects what Write produces.
type Options struct {
	OutputDir string
	Formats   []string
	Console   bool
	// TradeRows caps the console trade table. Zero prints none.
	TradeRows int
}
