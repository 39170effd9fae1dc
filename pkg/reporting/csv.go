package reporting

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ducminhle1904/pump-short-bot/internal/backtest"
	boterrors "github.com/ducminhle1904/pump-short-bot/internal/errors"
)

// DefaultCSVReporter writes trade, position and equity CSV files.
type DefaultCSVReporter struct{}

func NewDefaultCSVReporter() *DefaultCSVReporter {
	return &DefaultCSVReporter{}
}

var (
	tradeHeader = []string{
		"id", "timestamp", "symbol", "action", "price", "quantity",
		"value", "fee", "pnl", "reason", "sequence", "signal_strength",
	}
	positionHeader = []string{
		"id", "symbol", "side", "status", "created_at", "closed_at",
		"average_price", "total_quantity", "entries", "exits", "add_up", "add_down",
		"total_investment", "realized_pnl", "return_rate",
		"max_unrealized_profit", "max_unrealized_loss",
	}
	equityHeader = []string{"timestamp", "value", "drawdown"}
)

// WriteTradesCSV writes one row per trade record. Entry rows leave pnl empty.
func (r *DefaultCSVReporter) WriteTradesCSV(res *backtest.Results, path string) error {
	return writeCSV(path, "trades_csv", tradeHeader, func(w *csv.Writer) error {
		for _, t := range res.Trades {
			pnl := ""
			if t.PnL != nil {
				pnl = formatFloat(*t.PnL)
			}
			row := []string{
				t.ID,
				formatTimestamp(t.Timestamp),
				t.Symbol,
				string(t.Action),
				formatFloat(t.Price),
				formatFloat(t.Quantity),
				formatFloat(t.Value),
				formatFloat(t.Fee),
				pnl,
				t.Reason,
				strconv.Itoa(t.Sequence),
				formatFloat(t.SignalStrength),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// WritePositionsCSV writes one row per closed position.
func (r *DefaultCSVReporter) WritePositionsCSV(res *backtest.Results, path string) error {
	return writeCSV(path, "positions_csv", positionHeader, func(w *csv.Writer) error {
		for _, p := range res.Positions {
			row := []string{
				p.ID,
				p.Symbol,
				string(p.Side),
				string(p.Status),
				formatTimestamp(p.CreatedAt),
				formatTimestamp(p.ClosedAt),
				formatFloat(p.AveragePrice),
				formatFloat(p.TotalQuantity),
				strconv.Itoa(p.TotalEntries),
				strconv.Itoa(p.TotalExits),
				strconv.Itoa(p.AddUpCount),
				strconv.Itoa(p.AddDownCount),
				formatFloat(p.TotalInvestment),
				formatFloat(p.RealizedPnL),
				formatFloat(p.ReturnRate),
				formatFloat(p.MaxUnrealizedProfit),
				formatFloat(p.MaxUnrealizedLoss),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteEquityCSV writes the equity curve with the running drawdown from peak.
func (r *DefaultCSVReporter) WriteEquityCSV(res *backtest.Results, path string) error {
	return writeCSV(path, "equity_csv", equityHeader, func(w *csv.Writer) error {
		peak := 0.0
		for _, pt := range res.EquityCurve {
			if pt.Value > peak {
				peak = pt.Value
			}
			dd := 0.0
			if peak > 0 {
				dd = (peak - pt.Value) / peak
			}
			row := []string{formatTimestamp(pt.Timestamp), formatFloat(pt.Value), formatFloat(dd)}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeCSV(path, op string, header []string, rows func(*csv.Writer) error) error {
	err := writeAtomic(path, func(f io.Writer) error {
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return err
		}
		if err := rows(w); err != nil {
			return err
		}
		w.Flush()
		return w.Error()
	})
	if err != nil {
		return boterrors.NewReportError("reporting", op, err)
	}
	return nil
}

// writeAtomic writes into a temporary sibling of path and renames it into
// place, so readers never see a half written report.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
