package backtest

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ducminhle1904/pump-short-bot/internal/executor"
	"github.com/ducminhle1904/pump-short-bot/internal/portfolio"
	"github.com/ducminhle1904/pump-short-bot/internal/position"
)

// Results is everything a finished run produced.
type Results struct {
	RunID     string        `json:"run_id"`
	Symbol    string        `json:"symbol"`
	Interval  string        `json:"interval"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	BarsProcessed  int    `json:"bars_processed"`
	BarsSkipped    int    `json:"bars_skipped"`
	StoppedTrading bool   `json:"stopped_trading"`
	StopReason     string `json:"stop_reason,omitempty"`

	InitialCapital   float64 `json:"initial_capital"`
	FinalValue       float64 `json:"final_value"`
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`

	Volatility  float64 `json:"volatility"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	CalmarRatio float64 `json:"calmar_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`

	TotalTrades     int     `json:"total_trades"`
	WinningTrades   int     `json:"winning_trades"`
	LosingTrades    int     `json:"losing_trades"`
	WinRate         float64 `json:"win_rate"`
	AvgWin          float64 `json:"avg_win"`
	AvgLoss         float64 `json:"avg_loss"`
	ProfitLossRatio float64 `json:"profit_loss_ratio"`

	TotalFees float64 `json:"total_fees"`
	FeeRatio  float64 `json:"fee_ratio"`

	Portfolio   portfolio.Summary       `json:"portfolio"`
	Execution   executor.Summary        `json:"execution"`
	Trades      []executor.TradeRecord  `json:"trades"`
	Signals     []executor.SignalRecord `json:"-"`
	Positions   []position.Summary      `json:"positions"`
	EquityCurve []portfolio.EquityPoint `json:"equity_curve"`
}

func (r *Results) fill(exec *executor.Executor, riskFreeRate float64) {
	pf := exec.Portfolio()
	summary := pf.Summary(nil)

	r.Portfolio = summary
	r.Execution = exec.ExecutionSummary()
	r.Trades = exec.TradeLog(executor.TradeFilter{})
	r.Signals = exec.SignalLog()
	r.Positions = pf.ClosedPositions()
	r.EquityCurve = pf.EquityCurve()

	r.FinalValue = summary.CurrentValue
	r.TotalReturn = summary.TotalReturn
	r.TotalTrades = summary.TotalTrades
	r.WinningTrades = summary.WinningTrades
	r.LosingTrades = summary.LosingTrades
	r.WinRate = summary.WinRate
	r.TotalFees = summary.TotalFees
	if r.InitialCapital > 0 {
		r.FeeRatio = r.TotalFees / r.InitialCapital
	}

	returns := pf.Returns()
	if len(returns) > 0 {
		r.AnnualizedReturn = annualizedReturn(returns)
		r.Volatility = volatility(returns)
		r.SharpeRatio = sharpeRatio(returns, riskFreeRate)
		r.CalmarRatio = calmarRatio(returns)
	}
	values := make([]float64, len(r.EquityCurve))
	for i, p := range r.EquityCurve {
		values[i] = p.Value
	}
	r.MaxDrawdown = maxDrawdown(values)

	r.AvgWin, r.AvgLoss = averageWinLoss(r.Positions)
	if r.AvgLoss != 0 {
		r.ProfitLossRatio = math.Abs(r.AvgWin / r.AvgLoss)
	}
}

func annualizedReturn(returns []float64) float64 {
	return math.Pow(1+stat.Mean(returns, nil), portfolio.TradingDays) - 1
}

// volatility is the annualized sample standard deviation.
func volatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil) * math.Sqrt(portfolio.TradingDays)
}

func sharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	sd := stat.StdDev(returns, nil)
	if sd == 0 || math.IsNaN(sd) {
		return 0
	}
	excess := stat.Mean(returns, nil) - riskFreeRate/portfolio.TradingDays
	return excess / sd * math.Sqrt(portfolio.TradingDays)
}

// calmarRatio compounds the returns, annualizes the final growth and divides
// by the drawdown of the compounded series. A series that never draws down
// reports zero.
func calmarRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	growth := make([]float64, len(returns))
	for i, r := range returns {
		growth[i] = 1 + r
	}
	floats.CumProd(growth, growth)

	dd := maxDrawdown(growth)
	if dd == 0 {
		return 0
	}
	annual := math.Pow(growth[len(growth)-1], float64(portfolio.TradingDays)/float64(len(returns))) - 1
	return annual / dd
}

// maxDrawdown is the largest peak-to-trough decline as a positive fraction.
func maxDrawdown(values []float64) float64 {
	peak, worst := 0.0, 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

func averageWinLoss(closed []position.Summary) (avgWin, avgLoss float64) {
	var wins, losses []float64
	for _, p := range closed {
		switch {
		case p.RealizedPnL > 0:
			wins = append(wins, p.RealizedPnL)
		case p.RealizedPnL < 0:
			losses = append(losses, p.RealizedPnL)
		}
	}
	if len(wins) > 0 {
		avgWin = stat.Mean(wins, nil)
	}
	if len(losses) > 0 {
		avgLoss = stat.Mean(losses, nil)
	}
	return avgWin, avgLoss
}
