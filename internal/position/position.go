// Package position tracks the lifecycle of a single symbol's position:
// entries, exits, blended cost basis, realized and unrealized P&L.
package position

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	boterrors "github.com/ducminhle1904/pump-short-bot/internal/errors"
	"github.com/ducminhle1904/pump-short-bot/pkg/types"
)

// Epsilon is the remaining quantity at or below which a position is flat.
const Epsilon = 1e-8

// Entry is one fill that increased the position.
type Entry struct {
	Price     float64         `json:"price"`
	Quantity  float64         `json:"quantity"`
	Timestamp time.Time       `json:"timestamp"`
	Kind      types.EntryKind `json:"kind"`
}

func (e Entry) Value() float64 { return e.Price * e.Quantity }

// Exit is one fill that reduced the position.
type Exit struct {
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
	PnL       float64   `json:"pnl"`
}

func (e Exit) Value() float64 { return e.Price * e.Quantity }

// Position is owned by a portfolio; callers outside the portfolio only ever
// see Summary projections.
type Position struct {
	id        string
	symbol    string
	side      types.PositionSide
	status    types.PositionStatus
	createdAt time.Time

	entries []Entry
	exits   []Exit

	totalQuantity     float64
	remainingQuantity float64
	averagePrice      float64
	realizedPnL       float64
	unrealizedPnL     float64

	addUpCount          int
	addDownCount        int
	maxUnrealizedProfit float64
	maxUnrealizedLoss   float64

	log zerolog.Logger
}

// New opens an ACTIVE position with a single "initial" entry.
func New(symbol string, side types.PositionSide, price, quantity float64, ts time.Time, log zerolog.Logger) (*Position, error) {
	if symbol == "" {
		return nil, boterrors.NewValidationError("position", "create", "empty symbol")
	}
	if side != types.SideLong && side != types.SideShort {
		return nil, boterrors.NewValidationError("position", "create", "unknown side "+string(side))
	}
	if !boterrors.PositiveFinite(price) || !boterrors.PositiveFinite(quantity) {
		return nil, boterrors.NewValidationError("position", "create", "price and quantity must be positive").
			WithContext("price", price).
			WithContext("quantity", quantity)
	}

	p := &Position{
		id:                uuid.NewString(),
		symbol:            symbol,
		side:              side,
		status:            types.StatusActive,
		createdAt:         ts,
		totalQuantity:     quantity,
		remainingQuantity: quantity,
		averagePrice:      price,
		log:               log.With().Str("component", "position").Str("symbol", symbol).Logger(),
	}
	p.entries = append(p.entries, Entry{Price: price, Quantity: quantity, Timestamp: ts, Kind: types.EntryInitial})

	p.log.Debug().
		Str("side", string(side)).
		Float64("price", price).
		Float64("quantity", quantity).
		Msg("position opened")
	return p, nil
}

// Add appends an entry and re-blends the average price. It rejects without
// mutation when the position is terminal or the inputs are invalid.
func (p *Position) Add(price, quantity float64, kind types.EntryKind, ts time.Time) boterrors.Result {
	if p.status != types.StatusActive {
		return boterrors.Invalid("position %s is %s, cannot add", p.symbol, p.status)
	}
	if !boterrors.PositiveFinite(price) || !boterrors.PositiveFinite(quantity) {
		return boterrors.Invalid("invalid add parameters: price=%v quantity=%v", price, quantity)
	}
	if kind != types.EntryAddOnUp && kind != types.EntryAddOnDown {
		return boterrors.Invalid("invalid add kind %q", kind)
	}

	p.entries = append(p.entries, Entry{Price: price, Quantity: quantity, Timestamp: ts, Kind: kind})
	if kind == types.EntryAddOnUp {
		p.addUpCount++
	} else {
		p.addDownCount++
	}

	newTotal := p.totalQuantity + quantity
	p.averagePrice = (p.averagePrice*p.totalQuantity + price*quantity) / newTotal
	p.totalQuantity = newTotal
	p.remainingQuantity += quantity

	p.log.Debug().
		Str("kind", string(kind)).
		Float64("price", price).
		Float64("quantity", quantity).
		Float64("average_price", p.averagePrice).
		Msg("position increased")
	return boterrors.Success("add accepted")
}

// Close reduces the position by quantity at price. The average price is a
// blended cost basis and is never changed by an exit.
func (p *Position) Close(price, quantity float64, reason string, ts time.Time) (Exit, boterrors.Result) {
	if p.status != types.StatusActive {
		return Exit{}, boterrors.Invalid("position %s is already %s", p.symbol, p.status)
	}
	if !boterrors.PositiveFinite(price) {
		return Exit{}, boterrors.Invalid("invalid close price %v", price)
	}
	if !boterrors.PositiveFinite(quantity) || quantity > p.remainingQuantity {
		return Exit{}, boterrors.Invalid("invalid close quantity %v (remaining %v)", quantity, p.remainingQuantity)
	}

	pnl := p.pnlAt(price, quantity)
	exit := Exit{Price: price, Quantity: quantity, Timestamp: ts, Reason: reason, PnL: pnl}
	p.exits = append(p.exits, exit)
	p.realizedPnL += pnl
	p.remainingQuantity -= quantity

	if p.remainingQuantity <= Epsilon {
		p.remainingQuantity = 0
		p.unrealizedPnL = 0
		p.status = terminalStatus(reason)
	}

	p.log.Debug().
		Str("reason", reason).
		Float64("price", price).
		Float64("quantity", quantity).
		Float64("pnl", pnl).
		Str("status", string(p.status)).
		Msg("position reduced")
	return exit, boterrors.Success("close accepted")
}

// CloseAll closes the whole remaining quantity.
func (p *Position) CloseAll(price float64, reason string, ts time.Time) (Exit, boterrors.Result) {
	return p.Close(price, p.remainingQuantity, reason, ts)
}

// Mark revalues the open quantity at currentPrice and tracks the running
// unrealized extremes. Invalid prices are ignored.
func (p *Position) Mark(currentPrice float64) float64 {
	if p.remainingQuantity <= 0 {
		p.unrealizedPnL = 0
		return 0
	}
	if !boterrors.PositiveFinite(currentPrice) {
		return p.unrealizedPnL
	}

	p.unrealizedPnL = p.pnlAt(currentPrice, p.remainingQuantity)
	if p.unrealizedPnL > p.maxUnrealizedProfit {
		p.maxUnrealizedProfit = p.unrealizedPnL
	}
	if p.unrealizedPnL < p.maxUnrealizedLoss {
		p.maxUnrealizedLoss = p.unrealizedPnL
	}
	return p.unrealizedPnL
}

func (p *Position) pnlAt(price, quantity float64) float64 {
	if p.side == types.SideShort {
		return (p.averagePrice - price) * quantity
	}
	return (price - p.averagePrice) * quantity
}

func terminalStatus(reason string) types.PositionStatus {
	switch reason {
	case types.ReasonStopLoss:
		return types.StatusStopped
	case types.ReasonTakeProfit:
		return types.StatusProfitTaken
	default:
		return types.StatusClosed
	}
}

func (p *Position) ID() string                   { return p.id }
func (p *Position) Symbol() string               { return p.symbol }
func (p *Position) Side() types.PositionSide     { return p.side }
func (p *Position) Status() types.PositionStatus { return p.status }
func (p *Position) CreatedAt() time.Time         { return p.createdAt }
func (p *Position) TotalQuantity() float64       { return p.totalQuantity }
func (p *Position) RemainingQuantity() float64   { return p.remainingQuantity }
func (p *Position) AveragePrice() float64        { return p.averagePrice }
func (p *Position) RealizedPnL() float64         { return p.realizedPnL }
func (p *Position) UnrealizedPnL() float64       { return p.unrealizedPnL }
func (p *Position) AddCounts() (up, down int)    { return p.addUpCount, p.addDownCount }
func (p *Position) MaxUnrealizedProfit() float64 { return p.maxUnrealizedProfit }
func (p *Position) MaxUnrealizedLoss() float64   { return p.maxUnrealizedLoss }

// IsActive reports whether the position still accepts entries and exits.
func (p *Position) IsActive() bool {
	return p.status == types.StatusActive && p.remainingQuantity > 0
}

// Exposure is the open quantity valued at cost basis.
func (p *Position) Exposure() float64 {
	return p.remainingQuantity * p.averagePrice
}

// Entries returns a copy of the entry records in fill order.
func (p *Position) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Exits returns a copy of the exit records in fill order.
func (p *Position) Exits() []Exit {
	out := make([]Exit, len(p.exits))
	copy(out, p.exits)
	return out
}

// TotalInvestment is the gross notional of all entries.
func (p *Position) TotalInvestment() float64 {
	total := 0.0
	for _, e := range p.entries {
		total += e.Value()
	}
	return total
}

// Duration is the time between opening and end (or the last exit when end is zero).
func (p *Position) Duration(end time.Time) time.Duration {
	if end.IsZero() && len(p.exits) > 0 {
		end = p.exits[len(p.exits)-1].Timestamp
	}
	if end.IsZero() {
		return 0
	}
	return end.Sub(p.createdAt)
}

func (p *Position) String() string {
	return "Position(" + p.symbol + ", " + string(p.side) + ", " + string(p.status) + ")"
}
