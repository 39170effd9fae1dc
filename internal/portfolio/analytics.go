package portfolio

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/ducminhle1904/pump-short-bot/internal/position"
	"github.com/ducminhle1904/pump-short-bot/internal/risk"
)

// TradingDays annualizes per-sample statistics.
const TradingDays = 252

// minVaRSamples is the number of returns required before VaR is reported.
const minVaRSamples = 20

// RiskMetrics is a snapshot of exposure against the configured limits.
type RiskMetrics struct {
	PortfolioValue       float64     `json:"portfolio_value"`
	TotalExposure        float64     `json:"total_exposure"`
	ExposureRatio        float64     `json:"exposure_ratio"`
	MaxPositionRatio     float64     `json:"max_position_ratio"`
	MaxDrawdown          float64     `json:"max_drawdown"`
	VaR95                float64     `json:"var_95"`
	ActivePositions      int         `json:"active_positions_count"`
	Limits               risk.Limits `json:"risk_limits"`
	ExposureWarning      bool        `json:"exposure_warning"`
	PositionCountWarning bool        `json:"position_count_warning"`
	DrawdownWarning      bool        `json:"drawdown_warning"`
}

// Summary is the portfolio-level report.
type Summary struct {
	InitialCapital float64 `json:"initial_capital"`
	CurrentValue   float64 `json:"current_value"`
	Cash           float64 `json:"cash"`
	TotalPnL       float64 `json:"total_pnl"`
	TotalReturn    float64 `json:"total_return"`

	ActivePositionsCount int     `json:"active_positions_count"`
	ClosedPositionsCount int     `json:"closed_positions_count"`
	TotalTrades          int     `json:"total_trades"`
	WinningTrades        int     `json:"winning_trades"`
	LosingTrades         int     `json:"losing_trades"`
	WinRate              float64 `json:"win_rate"`

	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	TotalFees     float64 `json:"total_fees"`

	MaxDrawdown float64 `json:"max_drawdown"`
	SharpeRatio float64 `json:"sharpe_ratio"`

	ActivePositions []position.Summary `json:"active_positions"`
	LastUpdated     time.Time          `json:"last_updated"`
}

// WinRate is winning closes over all closes.
func (p *Portfolio) WinRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.winRateLocked()
}

func (p *Portfolio) winRateLocked() float64 {
	closes := p.winningTrades + p.losingTrades
	if closes == 0 {
		return 0
	}
	return float64(p.winningTrades) / float64(closes)
}

// SharpeRatio annualizes mean over population standard deviation of the
// per-sample returns. It is zero until there are two returns with non-zero
// dispersion.
func (p *Portfolio) SharpeRatio() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sharpe(p.returns)
}

func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	std := stat.PopStdDev(returns, nil)
	if std <= 0 || math.IsNaN(std) {
		return 0
	}
	return stat.Mean(returns, nil) / std * math.Sqrt(TradingDays)
}

// ValueAtRisk95 is the 5th percentile return scaled by the current value.
// It is zero until more than minVaRSamples returns have been recorded.
func (p *Portfolio) ValueAtRisk95(prices map[string]float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return valueAtRisk(p.returns, p.valueLocked(prices))
}

func valueAtRisk(returns []float64, value float64) float64 {
	if len(returns) <= minVaRSamples {
		return 0
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)
	return percentile(sorted, 0.05) * value
}

// percentile interpolates linearly between the closest ranks of sorted,
// placing q at rank q·(n−1).
func percentile(sorted []float64, q float64) float64 {
	rank := q * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// AvailableCash is cash above a reserve of reservedRatio of the portfolio
// value, valued at cost.
func (p *Portfolio) AvailableCash(reservedRatio float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	reserved := p.valueLocked(nil) * reservedRatio
	return math.Max(p.cash-reserved, 0)
}

// RiskMetrics reports exposure and drawdown against the limits. Warnings fire
// at 80% of each limit.
func (p *Portfolio) RiskMetrics(prices map[string]float64) RiskMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	limits := p.risk.Limits()
	value := p.valueLocked(prices)
	exposure := p.exposureLocked()

	m := RiskMetrics{
		PortfolioValue:  value,
		TotalExposure:   exposure,
		MaxDrawdown:     p.maxDrawdown,
		VaR95:           valueAtRisk(p.returns, value),
		ActivePositions: len(p.positions),
		Limits:          limits,
	}
	if value > 0 {
		m.ExposureRatio = exposure / value
		for _, pos := range p.positions {
			if r := pos.Exposure() / value; r > m.MaxPositionRatio {
				m.MaxPositionRatio = r
			}
		}
	}
	m.ExposureWarning = m.ExposureRatio > limits.MaxTotalExposureRatio*0.8
	m.PositionCountWarning = float64(len(p.positions)) >= float64(limits.MaxConcurrentPositions)*0.8
	m.DrawdownWarning = p.maxDrawdown > limits.PortfolioStopLossRatio*0.8
	return m
}

// Summary builds the portfolio report without touching any state.
func (p *Portfolio) Summary(prices map[string]float64) Summary {
	p.mu.Lock()
	defer p.mu.Unlock()

	value := p.valueLocked(prices)
	s := Summary{
		InitialCapital:       p.cfg.InitialCapital,
		CurrentValue:         value,
		Cash:                 p.cash,
		TotalPnL:             value - p.cfg.InitialCapital,
		TotalReturn:          (value - p.cfg.InitialCapital) / p.cfg.InitialCapital,
		ActivePositionsCount: len(p.positions),
		ClosedPositionsCount: len(p.closed),
		TotalTrades:          p.totalTrades,
		WinningTrades:        p.winningTrades,
		LosingTrades:         p.losingTrades,
		WinRate:              p.winRateLocked(),
		TotalFees:            p.totalFees,
		MaxDrawdown:          p.maxDrawdown,
		SharpeRatio:          sharpe(p.returns),
		ActivePositions:      make([]position.Summary, 0, len(p.positions)),
		LastUpdated:          p.timestamps[len(p.timestamps)-1],
	}

	for _, pos := range p.closed {
		s.RealizedPnL += pos.RealizedPnL()
	}
	symbols := make([]string, 0, len(p.positions))
	for sym := range p.positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		pos := p.positions[sym]
		var ps position.Summary
		if price, ok := prices[sym]; ok {
			ps = pos.SummaryAt(price)
		} else {
			ps = pos.Summary()
		}
		s.RealizedPnL += ps.RealizedPnL
		s.UnrealizedPnL += ps.UnrealizedPnL
		s.ActivePositions = append(s.ActivePositions, ps)
	}
	return s
}
