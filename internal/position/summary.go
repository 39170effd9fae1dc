package position

import (
	"time"

	boterrors "github.com/ducminhle1904/pump-short-bot/internal/errors"
	"github.com/ducminhle1904/pump-short-bot/pkg/types"
)

// Summary is a read-only projection of a position.
type Summary struct {
	ID        string               `json:"id"`
	Symbol    string               `json:"symbol"`
	Side      types.PositionSide   `json:"side"`
	Status    types.PositionStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
	ClosedAt  time.Time            `json:"closed_at,omitempty"`

	TotalQuantity     float64 `json:"total_quantity"`
	RemainingQuantity float64 `json:"remaining_quantity"`
	AveragePrice      float64 `json:"average_price"`

	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	TotalPnL      float64 `json:"total_pnl"`
	ReturnRate    float64 `json:"return_rate"`

	TotalEntries        int     `json:"total_entries"`
	TotalExits          int     `json:"total_exits"`
	AddUpCount          int     `json:"add_up_count"`
	AddDownCount        int     `json:"add_down_count"`
	MaxUnrealizedProfit float64 `json:"max_unrealized_profit"`
	MaxUnrealizedLoss   float64 `json:"max_unrealized_loss"`

	TotalInvestment    float64 `json:"total_investment"`
	CurrentPrice       float64 `json:"current_price,omitempty"`
	CurrentMarketValue float64 `json:"current_market_value"`
}

// Summary projects the position using the last marked unrealized P&L.
func (p *Position) Summary() Summary {
	return p.summary(0, p.unrealizedPnL)
}

// SummaryAt projects the position as if marked at currentPrice. Unlike Mark,
// it does not touch the stored unrealized P&L or its extremes.
func (p *Position) SummaryAt(currentPrice float64) Summary {
	if !boterrors.PositiveFinite(currentPrice) {
		return p.Summary()
	}
	unrealized := 0.0
	if p.remainingQuantity > 0 {
		unrealized = p.pnlAt(currentPrice, p.remainingQuantity)
	}
	return p.summary(currentPrice, unrealized)
}

func (p *Position) summary(currentPrice, unrealized float64) Summary {
	investment := p.TotalInvestment()
	total := p.realizedPnL + unrealized
	rate := 0.0
	if investment > 0 {
		rate = total / investment
	}

	s := Summary{
		ID:                  p.id,
		Symbol:              p.symbol,
		Side:                p.side,
		Status:              p.status,
		CreatedAt:           p.createdAt,
		TotalQuantity:       p.totalQuantity,
		RemainingQuantity:   p.remainingQuantity,
		AveragePrice:        p.averagePrice,
		RealizedPnL:         p.realizedPnL,
		UnrealizedPnL:       unrealized,
		TotalPnL:            total,
		ReturnRate:          rate,
		TotalEntries:        len(p.entries),
		TotalExits:          len(p.exits),
		AddUpCount:          p.addUpCount,
		AddDownCount:        p.addDownCount,
		MaxUnrealizedProfit: p.maxUnrealizedProfit,
		MaxUnrealizedLoss:   p.maxUnrealizedLoss,
		TotalInvestment:     investment,
		CurrentPrice:        currentPrice,
		CurrentMarketValue:  p.remainingQuantity * currentPrice,
	}
	if p.status.IsTerminal() && len(p.exits) > 0 {
		s.ClosedAt = p.exits[len(p.exits)-1].Timestamp
	}
	return s
}
