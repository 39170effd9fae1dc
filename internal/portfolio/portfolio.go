// Package portfolio owns cash and the active position book. Every state
// change is gated by risk checks that run before anything is applied.
package portfolio

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	boterrors "github.com/ducminhle1904/pump-short-bot/internal/errors"
	"github.com/ducminhle1904/pump-short-bot/internal/monitoring"
	"github.com/ducminhle1904/pump-short-bot/internal/position"
	"github.com/ducminhle1904/pump-short-bot/internal/risk"
	"github.com/ducminhle1904/pump-short-bot/pkg/types"
)

// Config holds capital and execution cost settings.
type Config struct {
	InitialCapital float64     `json:"initial_capital" toml:"initial_capital"`
	FeeRate        float64     `json:"fee_rate" toml:"fee_rate"`
	SlippageRate   float64     `json:"slippage_rate" toml:"slippage_rate"`
	Risk           risk.Limits `json:"risk_management" toml:"risk_management"`
}

func DefaultConfig() Config {
	return Config{
		InitialCapital: 10000,
		FeeRate:        0.001,
		SlippageRate:   0.0005,
		Risk:           risk.DefaultLimits(),
	}
}

func (c Config) Validate() error {
	if !boterrors.PositiveFinite(c.InitialCapital) {
		return boterrors.NewConfigurationError("portfolio", "initial_capital",
			fmt.Sprintf("must be positive, got %v", c.InitialCapital))
	}
	if c.FeeRate < 0 || c.SlippageRate < 0 || c.FeeRate+c.SlippageRate >= 1 {
		return boterrors.NewConfigurationError("portfolio", "fee_rate",
			fmt.Sprintf("fee %v and slippage %v must be non-negative and sum below 1", c.FeeRate, c.SlippageRate))
	}
	return c.Risk.Validate()
}

// Fill describes an accepted portfolio operation.
type Fill struct {
	Symbol   string
	Price    float64
	Quantity float64
	Notional float64
	Fee      float64
	// CashFlow is the signed change to cash: negative for entries.
	CashFlow float64
	// PnL is the realized P&L of an exit; zero for entries.
	PnL    float64
	Status types.PositionStatus
	// Closed is set when the operation made the position terminal.
	Closed bool
}

// Option customizes a Portfolio.
type Option func(*Portfolio)

// WithRiskChecker replaces the Manager built from Config.Risk.
func WithRiskChecker(c risk.Checker) Option {
	return func(p *Portfolio) { p.risk = c }
}

// WithTelemetry attaches a telemetry sink.
func WithTelemetry(s monitoring.Sink) Option {
	return func(p *Portfolio) { p.sink = s }
}

// WithStartTime stamps the initial equity sample.
func WithStartTime(ts time.Time) Option {
	return func(p *Portfolio) { p.timestamps[0] = ts }
}

// Portfolio is safe for concurrent use; all operations serialize on one lock
// so that risk checks observe a consistent snapshot.
type Portfolio struct {
	mu sync.Mutex

	cfg  Config
	risk risk.Checker
	sink monitoring.Sink
	log  zerolog.Logger
	root zerolog.Logger

	cash      float64
	positions map[string]*position.Position
	closed    []*position.Position

	totalTrades   int
	winningTrades int
	losingTrades  int
	totalFees     float64

	equityCurve []float64
	timestamps  []time.Time
	returns     []float64
	peakValue   float64
	maxDrawdown float64
}

// New validates cfg and returns a portfolio holding only cash.
func New(cfg Config, log zerolog.Logger, opts ...Option) (*Portfolio, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Portfolio{
		cfg:         cfg,
		sink:        monitoring.NopSink{},
		log:         log.With().Str("component", "portfolio").Logger(),
		root:        log,
		cash:        cfg.InitialCapital,
		positions:   make(map[string]*position.Position),
		equityCurve: []float64{cfg.InitialCapital},
		timestamps:  []time.Time{{}},
		peakValue:   cfg.InitialCapital,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.risk == nil {
		m, err := risk.NewManager(cfg.Risk)
		if err != nil {
			return nil, err
		}
		p.risk = m
	}

	p.log.Info().Float64("initial_capital", cfg.InitialCapital).Msg("portfolio created")
	return p, nil
}

// Value returns cash plus every active position marked at prices, falling
// back to the average price for symbols without a quote.
func (p *Portfolio) Value(prices map[string]float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.valueLocked(prices)
}

func (p *Portfolio) valueLocked(prices map[string]float64) float64 {
	total := p.cash
	for symbol, pos := range p.positions {
		if !pos.IsActive() {
			continue
		}
		price, ok := prices[symbol]
		if !ok || !boterrors.PositiveFinite(price) {
			price = pos.AveragePrice()
		}
		total += pos.RemainingQuantity() * price
	}
	return total
}

func (p *Portfolio) exposureLocked() float64 {
	total := 0.0
	for _, pos := range p.positions {
		total += pos.Exposure()
	}
	return total
}

// CreatePosition opens a new position after the size, cash, exposure and
// concurrency checks all pass, in that order.
func (p *Portfolio) CreatePosition(symbol string, side types.PositionSide, price, quantity float64, ts time.Time) (fill Fill, res boterrors.Result) {
	const op = "create_position"
	p.mu.Lock()
	defer p.mu.Unlock()
	defer boterrors.Recover(op, &res, p.onFault)

	if symbol == "" || !boterrors.PositiveFinite(price) || !boterrors.PositiveFinite(quantity) {
		return p.rejected(op, boterrors.Invalid("invalid create parameters: symbol=%q price=%v quantity=%v", symbol, price, quantity))
	}
	if _, exists := p.positions[symbol]; exists {
		return p.rejected(op, boterrors.Invalid("active position already exists for %s", symbol))
	}

	positionValue := price * quantity
	portfolioValue := p.valueLocked(nil)

	if ok, reason := p.risk.CheckPositionSize(portfolioValue, positionValue); !ok {
		return p.rejected(op, boterrors.RiskLimit("%s", reason))
	}
	totalCost := positionValue * (1 + p.cfg.FeeRate + p.cfg.SlippageRate)
	if totalCost > p.cash {
		return p.rejected(op, boterrors.RiskLimit("insufficient cash: need %.2f, have %.2f", totalCost, p.cash))
	}
	if ok, reason := p.risk.CheckTotalExposure(portfolioValue, p.exposureLocked()+positionValue); !ok {
		return p.rejected(op, boterrors.RiskLimit("%s", reason))
	}
	if ok, reason := p.risk.CheckConcurrency(len(p.positions)); !ok {
		return p.rejected(op, boterrors.RiskLimit("%s", reason))
	}

	pos, err := position.New(symbol, side, price, quantity, ts, p.root)
	if err != nil {
		return p.rejected(op, boterrors.Invalid("%v", err))
	}

	fee := positionValue * p.cfg.FeeRate
	p.positions[symbol] = pos
	p.cash -= totalCost
	p.totalTrades++
	p.totalFees += fee

	p.log.Info().
		Str("symbol", symbol).
		Str("side", string(side)).
		Float64("price", price).
		Float64("quantity", quantity).
		Float64("cash", p.cash).
		Msg("position created")

	return Fill{
		Symbol:   symbol,
		Price:    price,
		Quantity: quantity,
		Notional: positionValue,
		Fee:      fee,
		CashFlow: -totalCost,
		Status:   pos.Status(),
	}, boterrors.Success("position created")
}

// AddToPosition increases an active position. The size check runs against
// the position's exposure after the add.
func (p *Portfolio) AddToPosition(symbol string, price, quantity float64, kind types.EntryKind, ts time.Time) (fill Fill, res boterrors.Result) {
	const op = "add_to_position"
	p.mu.Lock()
	defer p.mu.Unlock()
	defer boterrors.Recover(op, &res, p.onFault)

	pos, ok := p.positions[symbol]
	if !ok || !pos.IsActive() {
		return p.rejected(op, boterrors.Invalid("no active position for %s", symbol))
	}
	if !boterrors.PositiveFinite(price) || !boterrors.PositiveFinite(quantity) {
		return p.rejected(op, boterrors.Invalid("invalid add parameters: price=%v quantity=%v", price, quantity))
	}

	addValue := price * quantity
	totalCost := addValue * (1 + p.cfg.FeeRate + p.cfg.SlippageRate)
	if totalCost > p.cash {
		return p.rejected(op, boterrors.RiskLimit("insufficient cash: need %.2f, have %.2f", totalCost, p.cash))
	}
	if ok, reason := p.risk.CheckPositionSize(p.valueLocked(nil), pos.Exposure()+addValue); !ok {
		return p.rejected(op, boterrors.RiskLimit("%s", reason))
	}

	if r := pos.Add(price, quantity, kind, ts); !r.OK {
		return p.rejected(op, r)
	}

	fee := addValue * p.cfg.FeeRate
	p.cash -= totalCost
	p.totalFees += fee

	p.log.Info().
		Str("symbol", symbol).
		Str("kind", string(kind)).
		Float64("price", price).
		Float64("quantity", quantity).
		Float64("average_price", pos.AveragePrice()).
		Msg("position increased")

	return Fill{
		Symbol:   symbol,
		Price:    price,
		Quantity: quantity,
		Notional: addValue,
		Fee:      fee,
		CashFlow: -totalCost,
		Status:   pos.Status(),
	}, boterrors.Success("position increased")
}

// ClosePosition closes the whole remaining quantity of symbol.
func (p *Portfolio) ClosePosition(symbol string, price float64, reason string, ts time.Time) (Fill, boterrors.Result) {
	return p.closePosition(symbol, price, 0, true, reason, ts)
}

// ReducePosition closes quantity of symbol.
func (p *Portfolio) ReducePosition(symbol string, price, quantity float64, reason string, ts time.Time) (Fill, boterrors.Result) {
	return p.closePosition(symbol, price, quantity, false, reason, ts)
}

func (p *Portfolio) closePosition(symbol string, price, quantity float64, all bool, reason string, ts time.Time) (fill Fill, res boterrors.Result) {
	const op = "close_position"
	p.mu.Lock()
	defer p.mu.Unlock()
	defer boterrors.Recover(op, &res, p.onFault)

	pos, ok := p.positions[symbol]
	if !ok || !pos.IsActive() {
		return p.rejected(op, boterrors.Invalid("no active position for %s", symbol))
	}
	if all {
		quantity = pos.RemainingQuantity()
	}

	exit, r := pos.Close(price, quantity, reason, ts)
	if !r.OK {
		return p.rejected(op, r)
	}

	closeValue := price * quantity
	netProceeds := closeValue * (1 - p.cfg.FeeRate - p.cfg.SlippageRate)
	fee := closeValue * p.cfg.FeeRate
	p.cash += netProceeds
	p.totalFees += fee

	closed := pos.Status().IsTerminal()
	if closed {
		delete(p.positions, symbol)
		p.closed = append(p.closed, pos)
		if pos.RealizedPnL() > 0 {
			p.winningTrades++
		} else {
			p.losingTrades++
		}
	}

	p.log.Info().
		Str("symbol", symbol).
		Str("reason", reason).
		Float64("price", price).
		Float64("quantity", quantity).
		Float64("pnl", exit.PnL).
		Bool("closed", closed).
		Msg("position reduced")

	return Fill{
		Symbol:   symbol,
		Price:    price,
		Quantity: quantity,
		Notional: closeValue,
		Fee:      fee,
		CashFlow: netProceeds,
		PnL:      exit.PnL,
		Status:   pos.Status(),
		Closed:   closed,
	}, boterrors.Success("position reduced")
}

// UpdatePortfolio marks every active position, appends an equity sample and
// updates the peak and maximum drawdown.
func (p *Portfolio) UpdatePortfolio(prices map[string]float64, ts time.Time) (res boterrors.Result) {
	const op = "update_portfolio"
	p.mu.Lock()
	defer p.mu.Unlock()
	defer boterrors.Recover(op, &res, p.onFault)

	for symbol, pos := range p.positions {
		if price, ok := prices[symbol]; ok {
			pos.Mark(price)
		}
	}

	value := p.valueLocked(prices)
	prev := p.equityCurve[len(p.equityCurve)-1]
	p.equityCurve = append(p.equityCurve, value)
	p.timestamps = append(p.timestamps, ts)
	if prev != 0 {
		p.returns = append(p.returns, (value-prev)/prev)
	}

	if value > p.peakValue {
		p.peakValue = value
	}
	if p.peakValue > 0 {
		if dd := 1 - value/p.peakValue; dd > p.maxDrawdown {
			p.maxDrawdown = dd
		}
	}

	p.sink.EquityUpdated(value, p.maxDrawdown, len(p.positions))
	return boterrors.Success("portfolio updated")
}

// ShouldStopTrading reports whether the portfolio stop-loss has been hit,
// either by loss against initial capital or by maximum drawdown, and which.
// The loss trigger is checked first.
func (p *Portfolio) ShouldStopTrading(prices map[string]float64) (bool, string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stop := p.risk.Limits().PortfolioStopLossRatio
	loss := (p.cfg.InitialCapital - p.valueLocked(prices)) / p.cfg.InitialCapital
	if loss >= stop {
		return true, fmt.Sprintf("loss from initial capital %.2f%% reached stop %.2f%%", loss*100, stop*100)
	}
	if p.maxDrawdown >= stop {
		return true, fmt.Sprintf("max drawdown %.2f%% reached stop %.2f%%", p.maxDrawdown*100, stop*100)
	}
	return false, ""
}

func (p *Portfolio) rejected(op string, res boterrors.Result) (Fill, boterrors.Result) {
	p.log.Debug().
		Str("operation", op).
		Str("kind", string(res.Kind)).
		Str("reason", res.Reason).
		Msg("operation rejected")
	p.sink.OperationRejected(op, res.Kind)
	return Fill{}, res
}

func (p *Portfolio) onFault(op string, fault interface{}) {
	p.log.Error().Str("operation", op).Interface("fault", fault).Msg("internal fault recovered")
	p.sink.InternalFault(op)
	p.sink.OperationRejected(op, boterrors.KindInternal)
}

// HasPosition reports whether symbol has an active position.
func (p *Portfolio) HasPosition(symbol string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.positions[symbol]
	return ok
}

// Position returns the summary of the active position for symbol.
func (p *Portfolio) Position(symbol string) (position.Summary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[symbol]
	if !ok {
		return position.Summary{}, false
	}
	return pos.Summary(), true
}

// ActiveSymbols returns the symbols with active positions in sorted order.
func (p *Portfolio) ActiveSymbols() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	symbols := make([]string, 0, len(p.positions))
	for s := range p.positions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// ClosedPositions returns summaries of the closed history in close order.
func (p *Portfolio) ClosedPositions() []position.Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]position.Summary, len(p.closed))
	for i, pos := range p.closed {
		out[i] = pos.Summary()
	}
	return out
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

func (p *Portfolio) EquityCurve() []EquityPoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EquityPoint, len(p.equityCurve))
	for i, v := range p.equityCurve {
		out[i] = EquityPoint{Timestamp: p.timestamps[i], Value: v}
	}
	return out
}

// Returns returns a copy of the per-sample simple returns.
func (p *Portfolio) Returns() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]float64, len(p.returns))
	copy(out, p.returns)
	return out
}

func (p *Portfolio) Cash() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash
}

func (p *Portfolio) MaxDrawdown() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxDrawdown
}

func (p *Portfolio) PeakValue() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peakValue
}

func (p *Portfolio) TotalFees() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalFees
}

func (p *Portfolio) Config() Config { return p.cfg }
