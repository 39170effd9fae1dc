package reporting

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/pump-short-bot/internal/backtest"
	boterrors "github.com/ducminhle1904/pump-short-bot/internal/errors"
)

const (
	summarySheet   = "Summary"
	tradesSheet    = "Trades"
	positionsSheet = "Positions"
	equitySheet    = "Equity"
)

// DefaultExcelReporter writes a four sheet workbook.
type DefaultExcelReporter struct{}

func NewDefaultExcelReporter() *DefaultExcelReporter {
	return &DefaultExcelReporter{}
}

// WriteXLSX writes Summary, Trades, Positions and Equity sheets to path.
func (r *DefaultExcelReporter) WriteXLSX(res *backtest.Results, path string) error {
	fx := excelize.NewFile()
	defer fx.Close()

	if err := r.build(fx, res); err != nil {
		return boterrors.NewReportError("reporting", "xlsx", err)
	}
	if err := writeAtomic(path, func(w io.Writer) error { return fx.Write(w) }); err != nil {
		return boterrors.NewReportError("reporting", "xlsx", err)
	}
	return nil
}

func (r *DefaultExcelReporter) build(fx *excelize.File, res *backtest.Results) error {
	if err := fx.SetSheetName(fx.GetSheetName(0), summarySheet); err != nil {
		return err
	}
	for _, name := range []string{tradesSheet, positionsSheet, equitySheet} {
		if _, err := fx.NewSheet(name); err != nil {
			return err
		}
	}

	styles, err := r.createExcelStyles(fx)
	if err != nil {
		return err
	}

	if err := r.WriteSummarySheet(fx, summarySheet, res, styles); err != nil {
		return err
	}
	if err := r.WriteTradesSheet(fx, tradesSheet, res, styles); err != nil {
		return err
	}
	if err := r.writePositionsSheet(fx, positionsSheet, res, styles); err != nil {
		return err
	}
	return r.writeEquitySheet(fx, equitySheet, res, styles)
}

var lightBorder = []excelize.Border{
	{Type: "left", Color: "E0E0E0", Style: 1},
	{Type: "right", Color: "E0E0E0", Style: 1},
	{Type: "bottom", Color: "E0E0E0", Style: 1},
}

func (r *DefaultExcelReporter) createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	right := &excelize.Alignment{Horizontal: "right"}

	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&styles.HeaderStyle, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
			Border: []excelize.Border{
				{Type: "left", Color: "000000", Style: 1},
				{Type: "right", Color: "000000", Style: 1},
				{Type: "top", Color: "000000", Style: 1},
				{Type: "bottom", Color: "000000", Style: 1},
			},
		}},
		{&styles.CurrencyStyle, &excelize.Style{NumFmt: 7, Alignment: right, Border: lightBorder}},
		{&styles.PriceStyle, &excelize.Style{CustomNumFmt: strPtr("0.00000000"), Alignment: right, Border: lightBorder}},
		{&styles.PercentStyle, &excelize.Style{NumFmt: 10, Alignment: right, Border: lightBorder}},
		{&styles.BaseStyle, &excelize.Style{Border: lightBorder}},
		{&styles.DateStyle, &excelize.Style{CustomNumFmt: strPtr("yyyy-mm-dd hh:mm"), Border: lightBorder}},
		{&styles.EntryStyle, &excelize.Style{
			Fill:   excelize.Fill{Type: "pattern", Color: []string{"FFE6E6"}, Pattern: 1},
			Border: lightBorder,
		}},
		{&styles.ExitStyle, &excelize.Style{
			Fill:   excelize.Fill{Type: "pattern", Color: []string{"E6F3FF"}, Pattern: 1},
			Border: lightBorder,
		}},
		{&styles.GreenCurrencyStyle, &excelize.Style{
			NumFmt: 7, Font: &excelize.Font{Color: "008000"}, Alignment: right, Border: lightBorder,
		}},
		{&styles.RedCurrencyStyle, &excelize.Style{
			NumFmt: 7, Font: &excelize.Font{Color: "FF0000"}, Alignment: right, Border: lightBorder,
		}},
	}

	for _, d := range defs {
		id, err := fx.NewStyle(d.style)
		if err != nil {
			return styles, err
		}
		*d.dst = id
	}
	return styles, nil
}

// WriteSummarySheet writes metric/value pairs.
func (r *DefaultExcelReporter) WriteSummarySheet(fx *excelize.File, sheet string, res *backtest.Results, styles ExcelStyles) error {
	if err := fx.SetColWidth(sheet, "A", "A", 24); err != nil {
		return err
	}
	if err := fx.SetColWidth(sheet, "B", "B", 22); err != nil {
		return err
	}
	if err := writeHeader(fx, sheet, []string{"Metric", "Value"}, styles.HeaderStyle); err != nil {
		return err
	}

	type metric struct {
		name  string
		value interface{}
		style int
	}
	rows := []metric{
		{"Run ID", res.RunID, styles.BaseStyle},
		{"Symbol", res.Symbol, styles.BaseStyle},
		{"Interval", res.Interval, styles.BaseStyle},
		{"Start", res.StartTime, styles.DateStyle},
		{"End", res.EndTime, styles.DateStyle},
		{"Bars Processed", res.BarsProcessed, styles.BaseStyle},
		{"Bars Skipped", res.BarsSkipped, styles.BaseStyle},
		{"Initial Capital", res.InitialCapital, styles.CurrencyStyle},
		{"Final Value", res.FinalValue, styles.CurrencyStyle},
		{"Total Return", res.TotalReturn, styles.PercentStyle},
		{"Annualized Return", res.AnnualizedReturn, styles.PercentStyle},
		{"Volatility", res.Volatility, styles.PercentStyle},
		{"Sharpe Ratio", res.SharpeRatio, styles.BaseStyle},
		{"Calmar Ratio", res.CalmarRatio, styles.BaseStyle},
		{"Max Drawdown", res.MaxDrawdown, styles.PercentStyle},
		{"Total Trades", res.TotalTrades, styles.BaseStyle},
		{"Winning Trades", res.WinningTrades, styles.BaseStyle},
		{"Losing Trades", res.LosingTrades, styles.BaseStyle},
		{"Win Rate", res.WinRate, styles.PercentStyle},
		{"Avg Win", res.AvgWin, styles.CurrencyStyle},
		{"Avg Loss", res.AvgLoss, styles.CurrencyStyle},
		{"Profit/Loss Ratio", res.ProfitLossRatio, styles.BaseStyle},
		{"Total Fees", res.TotalFees, styles.CurrencyStyle},
		{"Fee Ratio", res.FeeRatio, styles.PercentStyle},
		{"Signals", res.Execution.TotalSignals, styles.BaseStyle},
		{"Executed Signals", res.Execution.ExecutedSignals, styles.BaseStyle},
		{"Stopped Trading", res.StoppedTrading, styles.BaseStyle},
	}

	for i, m := range rows {
		row := i + 2
		if err := setRow(fx, sheet, row, []interface{}{m.name, m.value}); err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, cell(1, row), cell(1, row), styles.BaseStyle); err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, cell(2, row), cell(2, row), m.style); err != nil {
			return err
		}
	}
	return nil
}

// WriteTradesSheet writes the trade log, shading entries and exits apart.
func (r *DefaultExcelReporter) WriteTradesSheet(fx *excelize.File, sheet string, res *backtest.Results, styles ExcelStyles) error {
	header := []string{"Time", "Action", "Price", "Quantity", "Value", "Fee", "PnL", "Reason", "Sequence"}
	widths := []float64{18, 14, 14, 14, 14, 12, 14, 16, 10}
	if err := setWidths(fx, sheet, widths); err != nil {
		return err
	}
	if err := writeHeader(fx, sheet, header, styles.HeaderStyle); err != nil {
		return err
	}

	for i, t := range res.Trades {
		row := i + 2
		var pnl interface{}
		if t.PnL != nil {
			pnl = *t.PnL
		}
		values := []interface{}{t.Timestamp, string(t.Action), t.Price, t.Quantity, t.Value, t.Fee, pnl, t.Reason, t.Sequence}
		if err := setRow(fx, sheet, row, values); err != nil {
			return err
		}

		rowStyle := styles.EntryStyle
		if t.IsExit() {
			rowStyle = styles.ExitStyle
		}
		cellStyles := []int{styles.DateStyle, rowStyle, styles.PriceStyle, rowStyle, styles.CurrencyStyle, styles.CurrencyStyle, pnlStyle(t.PnL, styles), rowStyle, rowStyle}
		if err := applyStyles(fx, sheet, row, cellStyles); err != nil {
			return err
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writePositionsSheet(fx *excelize.File, sheet string, res *backtest.Results, styles ExcelStyles) error {
	header := []string{"Opened", "Closed", "Status", "Avg Price", "Quantity", "Entries", "Adds Up", "Adds Down", "Investment", "PnL", "Return"}
	widths := []float64{18, 18, 14, 14, 14, 10, 10, 10, 14, 14, 10}
	if err := setWidths(fx, sheet, widths); err != nil {
		return err
	}
	if err := writeHeader(fx, sheet, header, styles.HeaderStyle); err != nil {
		return err
	}

	for i, p := range res.Positions {
		row := i + 2
		values := []interface{}{
			p.CreatedAt, p.ClosedAt, string(p.Status), p.AveragePrice, p.TotalQuantity,
			p.TotalEntries, p.AddUpCount, p.AddDownCount, p.TotalInvestment, p.RealizedPnL, p.ReturnRate,
		}
		if err := setRow(fx, sheet, row, values); err != nil {
			return err
		}
		pnl := p.RealizedPnL
		cellStyles := []int{
			styles.DateStyle, styles.DateStyle, styles.BaseStyle, styles.PriceStyle, styles.BaseStyle,
			styles.BaseStyle, styles.BaseStyle, styles.BaseStyle, styles.CurrencyStyle, pnlStyle(&pnl, styles), styles.PercentStyle,
		}
		if err := applyStyles(fx, sheet, row, cellStyles); err != nil {
			return err
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeEquitySheet(fx *excelize.File, sheet string, res *backtest.Results, styles ExcelStyles) error {
	if err := setWidths(fx, sheet, []float64{18, 16}); err != nil {
		return err
	}
	if err := writeHeader(fx, sheet, []string{"Time", "Value"}, styles.HeaderStyle); err != nil {
		return err
	}
	for i, pt := range res.EquityCurve {
		row := i + 2
		if err := setRow(fx, sheet, row, []interface{}{pt.Timestamp, pt.Value}); err != nil {
			return err
		}
		if err := applyStyles(fx, sheet, row, []int{styles.DateStyle, styles.CurrencyStyle}); err != nil {
			return err
		}
	}
	return nil
}

func pnlStyle(pnl *float64, styles ExcelStyles) int {
	switch {
	case pnl == nil:
		return styles.BaseStyle
	case *pnl < 0:
		return styles.RedCurrencyStyle
	default:
		return styles.GreenCurrencyStyle
	}
}

func writeHeader(fx *excelize.File, sheet string, header []string, style int) error {
	values := make([]interface{}, len(header))
	for i, h := range header {
		values[i] = h
	}
	if err := setRow(fx, sheet, 1, values); err != nil {
		return err
	}
	return fx.SetCellStyle(sheet, cell(1, 1), cell(len(header), 1), style)
}

func setRow(fx *excelize.File, sheet string, row int, values []interface{}) error {
	return fx.SetSheetRow(sheet, cell(1, row), &values)
}

func applyStyles(fx *excelize.File, sheet string, row int, styles []int) error {
	for col, style := range styles {
		c := cell(col+1, row)
		if err := fx.SetCellStyle(sheet, c, c, style); err != nil {
			return err
		}
	}
	return nil
}

func setWidths(fx *excelize.File, sheet string, widths []float64) error {
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := fx.SetColWidth(sheet, col, col, w); err != nil {
			return err
		}
	}
	return nil
}

// cell panics on out of range coordinates, which only a programming error produces.
func cell(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		panic(fmt.Sprintf("reporting: bad cell %d,%d: %v", col, row, err))
	}
	return name
}

func strPtr(s string) *string { return &s }
