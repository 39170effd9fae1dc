package reporting

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/pump-short-bot/internal/backtest"
)

const timeLayout = "2006-01-02 15:04"

// DefaultConsoleReporter renders go-pretty tables to out.
type DefaultConsoleReporter struct {
	out io.Writer
}

// NewDefaultConsoleReporter writes to stdout when out is nil.
func NewDefaultConsoleReporter(out io.Writer) *DefaultConsoleReporter {
	if out == nil {
		out = os.Stdout
	}
	return &DefaultConsoleReporter{out: out}
}

func (r *DefaultConsoleReporter) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

// OutputResults prints the performance, execution and closed position tables.
func (r *DefaultConsoleReporter) OutputResults(res *backtest.Results) {
	if res == nil {
		return
	}
	r.outputPerformance(res)
	r.outputExecution(res)
	r.outputPositions(res)
}

func (r *DefaultConsoleReporter) outputPerformance(res *backtest.Results) {
	t := r.newTable(fmt.Sprintf("BACKTEST RESULTS %s %s", res.Symbol, res.Interval))

	t.AppendRows([]table.Row{
		{"Period", fmt.Sprintf("%s -> %s", formatTime(res.StartTime), formatTime(res.EndTime))},
		{"Bars", fmt.Sprintf("%d processed, %d skipped", res.BarsProcessed, res.BarsSkipped)},
		{"Run Time", res.Duration.Round(time.Millisecond).String()},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Initial Capital", money(res.InitialCapital)},
		{"Final Value", money(res.FinalValue)},
		{"Total Return", percent(res.TotalReturn)},
		{"Annualized Return", percent(res.AnnualizedReturn)},
		{"Volatility", percent(res.Volatility)},
		{"Sharpe Ratio", fmt.Sprintf("%.2f", res.SharpeRatio)},
		{"Calmar Ratio", fmt.Sprintf("%.2f", res.CalmarRatio)},
		{"Max Drawdown", percent(res.MaxDrawdown)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Closed Trades", res.TotalTrades},
		{"Winning / Losing", fmt.Sprintf("%d / %d", res.WinningTrades, res.LosingTrades)},
		{"Win Rate", percent(res.WinRate)},
		{"Avg Win / Avg Loss", fmt.Sprintf("%s / %s", money(res.AvgWin), money(res.AvgLoss))},
		{"Profit/Loss Ratio", fmt.Sprintf("%.2f", res.ProfitLossRatio)},
		{"Total Fees", fmt.Sprintf("%s (%s)", money(res.TotalFees), percent(res.FeeRatio))},
	})
	if res.StoppedTrading {
		t.AppendSeparator()
		t.AppendRow(table.Row{"Trading Halted", "portfolio stop reached"})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, Align: text.AlignRight},
	})
	t.Render()
	fmt.Fprintln(r.out)
}

func (r *DefaultConsoleReporter) outputExecution(res *backtest.Results) {
	ex := res.Execution
	t := r.newTable("EXECUTION")

	t.AppendRows([]table.Row{
		{"Signals", ex.TotalSignals},
		{"Executed", fmt.Sprintf("%d (%s)", ex.ExecutedSignals, percent(ex.ExecutionRate))},
		{"Rejected", fmt.Sprintf("%d (%s)", ex.RejectedSignals, percent(ex.RejectionRate))},
		{"Auto Stops", ex.AutoStops},
		{"Auto Profits", ex.AutoProfits},
	})

	if len(ex.RejectionReasons) > 0 {
		t.AppendSeparator()
		for _, k := range sortedKeys(ex.RejectionReasons) {
			t.AppendRow(table.Row{"reject: " + k, ex.RejectionReasons[k]})
		}
	}
	if len(ex.TradeTypes) > 0 {
		counts := make(map[string]int, len(ex.TradeTypes))
		for k, v := range ex.TradeTypes {
			counts[string(k)] = v
		}
		t.AppendSeparator()
		for _, k := range sortedKeys(counts) {
			t.AppendRow(table.Row{k, counts[k]})
		}
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 12, Align: text.AlignRight},
	})
	t.Render()
	fmt.Fprintln(r.out)
}

func (r *DefaultConsoleReporter) outputPositions(res *backtest.Results) {
	if len(res.Positions) == 0 {
		return
	}
	t := r.newTable("CLOSED POSITIONS")
	t.AppendHeader(table.Row{"#", "Opened", "Closed", "Avg Price", "Quantity", "Adds Up/Down", "PnL", "Return", "Status"})
	for i, p := range res.Positions {
		t.AppendRow(table.Row{
			i + 1,
			formatTime(p.CreatedAt),
			formatTime(p.ClosedAt),
			price(p.AveragePrice),
			fmt.Sprintf("%.4f", p.TotalQuantity),
			fmt.Sprintf("%d/%d", p.AddUpCount, p.AddDownCount),
			money(p.RealizedPnL),
			percent(p.ReturnRate),
			string(p.Status),
		})
	}
	t.Render()
	fmt.Fprintln(r.out)
}

// OutputTrades prints the last limit trade records. A non-positive limit prints all.
func (r *DefaultConsoleReporter) OutputTrades(res *backtest.Results, limit int) {
	if res == nil || len(res.Trades) == 0 {
		return
	}
	trades := res.Trades
	if limit > 0 && len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}

	t := r.newTable(fmt.Sprintf("TRADES (%d of %d)", len(trades), len(res.Trades)))
	t.AppendHeader(table.Row{"Time", "Action", "Price", "Quantity", "Value", "Fee", "PnL", "Reason"})
	for _, tr := range trades {
		pnl := ""
		if tr.PnL != nil {
			pnl = money(*tr.PnL)
		}
		t.AppendRow(table.Row{
			formatTime(tr.Timestamp),
			string(tr.Action),
			price(tr.Price),
			fmt.Sprintf("%.4f", tr.Quantity),
			money(tr.Value),
			money(tr.Fee),
			pnl,
			tr.Reason,
		})
	}
	t.Render()
	fmt.Fprintln(r.out)
}

// OutputBatch prints one row per batch job, in submission order.
func (r *DefaultConsoleReporter) OutputBatch(results []backtest.JobResult) {
	if len(results) == 0 {
		return
	}
	t := r.newTable("BATCH SUMMARY")
	t.AppendHeader(table.Row{"Job", "Symbol", "Return", "Max DD", "Sharpe", "Trades", "Win Rate", "Error"})
	for _, jr := range results {
		if jr.Err != nil || jr.Results == nil {
			msg := "no results"
			if jr.Err != nil {
				msg = jr.Err.Error()
			}
			t.AppendRow(table.Row{jr.ID, jr.Config.Symbol, "", "", "", "", "", msg})
			continue
		}
		res := jr.Results
		t.AppendRow(table.Row{
			jr.ID,
			res.Symbol,
			percent(res.TotalReturn),
			percent(res.MaxDrawdown),
			fmt.Sprintf("%.2f", res.SharpeRatio),
			res.TotalTrades,
			percent(res.WinRate),
			"",
		})
	}
	t.Render()
	fmt.Fprintln(r.out)
}

func money(v float64) string   { return fmt.Sprintf("$%.2f", v) }
func percent(v float64) string { return fmt.Sprintf("%.2f%%", v*100) }

// price keeps enough precision for sub-cent meme coins.
func price(v float64) string {
	if v != 0 && v < 1 && v > -1 {
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.8f", v), "0"), ".")
	}
	return fmt.Sprintf("%.4f", v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
