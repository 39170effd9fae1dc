package strategy

import (
	"time"

	"github.com/ducminhle1904/pump-short-bot/pkg/types"
)

// Strategy produces entry signals from a bar window and answers the exit and
// grid-add questions the executor asks on every tick.
type Strategy interface {
	// Name returns the name of the strategy
	Name() string

	// GenerateSignal analyzes the window, oldest bar first. A window that
	// cannot produce an entry yields a Signal with both flags false.
	GenerateSignal(window []types.OHLCV) Signal

	// CheckStopLoss reports whether a short entered at avgPrice must be stopped.
	CheckStopLoss(avgPrice, currentPrice float64) (bool, string)

	// CheckTakeProfit reports whether a short entered at avgPrice should take profit.
	CheckTakeProfit(avgPrice, currentPrice float64) (bool, string)

	// ShouldAddPosition decides the next grid add in one direction given the
	// number of adds already made in that direction.
	ShouldAddPosition(avgPrice, currentPrice float64, existingAdds int, dir types.Direction) (bool, AddDecision)
}

// Signal is the entry contract consumed by the executor.
type Signal struct {
	HasPumpSignal     bool        `json:"has_pump_signal"`
	HasReversalSignal bool        `json:"has_reversal_signal"`
	EntryPrice        float64     `json:"entry_price"`
	SignalStrength    float64     `json:"signal_strength"`
	AddPositions      []GridLevel `json:"add_positions"`
	StopLossPrice     float64     `json:"stop_loss_price"`
	TakeProfitPrice   float64     `json:"take_profit_price"`
	Metadata          Metadata    `json:"metadata"`
}

// Actionable reports whether both the pump and the reversal were detected.
func (s Signal) Actionable() bool {
	return s.HasPumpSignal && s.HasReversalSignal
}

// Metadata carries detection details alongside a signal.
type Metadata struct {
	PumpGain     float64   `json:"pump_gain"`
	ReversalType string    `json:"reversal_type,omitempty"`
	VolumeRatio  float64   `json:"volume_ratio"`
	Timestamp    time.Time `json:"timestamp"`
	Reason       string    `json:"reason,omitempty"`
}

// GridLevel is one planned add, ordered by trigger price within a signal.
type GridLevel struct {
	Kind         types.EntryKind `json:"type"`
	TriggerPrice float64         `json:"trigger_price"`
	AddRatio     float64         `json:"add_ratio"`
	Sequence     int             `json:"sequence"`
	Description  string          `json:"description"`
}

// AddDecision describes a grid add that should fire now.
type AddDecision struct {
	Kind         types.EntryKind `json:"type"`
	TriggerPrice float64         `json:"trigger_price"`
	AddRatio     float64         `json:"add_ratio"`
	Sequence     int             `json:"sequence"`
	PriceChange  float64         `json:"price_change"`
	Description  string          `json:"description"`
}
