package executor

import (
	"time"

	"github.com/ducminhle1904/pump-short-bot/internal/strategy"
	"github.com/ducminhle1904/pump-short-bot/pkg/types"
)

// TradeRecord is one entry of the audit trail. PnL is set for exits only.
type TradeRecord struct {
	ID             string       `json:"id"`
	Timestamp      time.Time    `json:"timestamp"`
	Symbol         string       `json:"symbol"`
	Action         types.Action `json:"action"`
	Price          float64      `json:"price"`
	Quantity       float64      `json:"quantity"`
	Value          float64      `json:"value"`
	Fee            float64      `json:"fee"`
	Reason         string       `json:"reason"`
	PnL            *float64     `json:"pnl,omitempty"`
	Sequence       int          `json:"sequence,omitempty"`
	SignalStrength float64      `json:"signal_strength,omitempty"`
}

// IsExit reports whether the record reduced a position.
func (r TradeRecord) IsExit() bool {
	return r.PnL != nil
}

// Rejection categories recorded on signals the executor did not act on.
const (
	RejectIncompleteSignal  = "incomplete_signal"
	RejectInvalidSignal     = "invalid_signal"
	RejectWeakSignal        = "weak_signal"
	RejectPositionExists    = "position_exists"
	RejectInvalidEntryPrice = "invalid_entry_price"
	RejectPortfolio         = "portfolio_rejected"
	RejectInternal          = "internal_fault"
)

// SignalRecord is one entry of the signal log.
type SignalRecord struct {
	Timestamp         time.Time       `json:"timestamp"`
	Symbol            string          `json:"symbol"`
	Signal            strategy.Signal `json:"signal"`
	Executed          bool            `json:"executed"`
	RejectionCategory string          `json:"rejection_category,omitempty"`
	RejectionReason   string          `json:"rejection_reason,omitempty"`
	EntryPrice        float64         `json:"entry_price,omitempty"`
	Quantity          float64         `json:"quantity,omitempty"`
	PositionValue     float64         `json:"position_value,omitempty"`
}

// TradeFilter narrows TradeLog. Zero fields match everything; bounds are inclusive.
type TradeFilter struct {
	Symbol string
	Start  time.Time
	End    time.Time
}

func (f TradeFilter) match(r TradeRecord) bool {
	if f.Symbol != "" && r.Symbol != f.Symbol {
		return false
	}
	if !f.Start.IsZero() && r.Timestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && r.Timestamp.After(f.End) {
		return false
	}
	return true
}

// Summary aggregates executor activity.
type Summary struct {
	TotalSignals     int                  `json:"total_signals"`
	ExecutedSignals  int                  `json:"executed_signals"`
	RejectedSignals  int                  `json:"rejected_signals"`
	ExecutionRate    float64              `json:"execution_rate"`
	RejectionRate    float64              `json:"rejection_rate"`
	AutoStops        int                  `json:"auto_stops"`
	AutoProfits      int                  `json:"auto_profits"`
	RejectionReasons map[string]int       `json:"rejection_reasons"`
	TradeTypes       map[types.Action]int `json:"trade_types"`
	ActivePositions  int                  `json:"active_positions"`
	TotalTrades      int                  `json:"total_trades"`
	SignalsLogged    int                  `json:"total_signals_logged"`
	Config           Config               `json:"config"`
}

type addCounts struct {
	up, down int
}

func (c *addCounts) get(dir types.Direction) int {
	if dir == types.DirectionUp {
		return c.up
	}
	return c.down
}

func (c *addCounts) inc(dir types.Direction) int {
	if dir == types.DirectionUp {
		c.up++
		return c.up
	}
	c.down++
	return c.down
}
