// Package executor turns strategy signals and live prices into portfolio
// operations and keeps the trade and signal audit logs.
package executor

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	boterrors "github.com/ducminhle1904/pump-short-bot/internal/errors"
	"github.com/ducminhle1904/pump-short-bot/internal/monitoring"
	"github.com/ducminhle1904/pump-short-bot/internal/portfolio"
	"github.com/ducminhle1904/pump-short-bot/internal/strategy"
	"github.com/ducminhle1904/pump-short-bot/pkg/types"
)

// Config controls signal acceptance and the automatic exit and add rules.
type Config struct {
	MinSignalStrength        float64 `json:"min_signal_strength" toml:"min_signal_strength"`
	DefaultPositionSizeRatio float64 `json:"default_position_size_ratio" toml:"default_position_size_ratio"`
	EnableAddPositions       bool    `json:"enable_add_positions" toml:"enable_add_positions"`
	EnableAutoStopLoss       bool    `json:"enable_auto_stop_loss" toml:"enable_auto_stop_loss"`
	EnableAutoTakeProfit     bool    `json:"enable_auto_take_profit" toml:"enable_auto_take_profit"`
}

func DefaultConfig() Config {
	return Config{
		MinSignalStrength:        0.6,
		DefaultPositionSizeRatio: 0.08,
		EnableAddPositions:       true,
		EnableAutoStopLoss:       true,
		EnableAutoTakeProfit:     true,
	}
}

func (c Config) Validate() error {
	if c.MinSignalStrength < 0 || c.MinSignalStrength > 1 {
		return boterrors.NewConfigurationError("executor", "min_signal_strength",
			fmt.Sprintf("must be in [0, 1], got %v", c.MinSignalStrength))
	}
	if !(c.DefaultPositionSizeRatio > 0 && c.DefaultPositionSizeRatio <= 1) {
		return boterrors.NewConfigurationError("executor", "default_position_size_ratio",
			fmt.Sprintf("must be in (0, 1], got %v", c.DefaultPositionSizeRatio))
	}
	return nil
}

// Executor is a thin coordinator: the portfolio is the only authoritative
// book, the add counters here are auxiliary and reset on every open and close.
type Executor struct {
	mu sync.Mutex

	portfolio *portfolio.Portfolio
	strategy  strategy.Strategy
	cfg       Config
	sink      monitoring.Sink
	log       zerolog.Logger

	tradeLog   []TradeRecord
	signalLog  []SignalRecord
	lastPrices map[string]float64
	adds       map[string]*addCounts

	totalSignals    int
	executedSignals int
	rejectedSignals int
	autoStops       int
	autoProfits     int
}

// Option customizes an Executor.
type Option func(*Executor)

// WithTelemetry attaches a telemetry sink.
func WithTelemetry(s monitoring.Sink) Option {
	return func(e *Executor) { e.sink = s }
}

func New(p *portfolio.Portfolio, s strategy.Strategy, cfg Config, log zerolog.Logger, opts ...Option) (*Executor, error) {
	if p == nil || s == nil {
		return nil, boterrors.NewValidationError("executor", "new", "portfolio and strategy are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Executor{
		portfolio:  p,
		strategy:   s,
		cfg:        cfg,
		sink:       monitoring.NopSink{},
		log:        log.With().Str("component", "executor").Logger(),
		lastPrices: make(map[string]float64),
		adds:       make(map[string]*addCounts),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.log.Info().
		Float64("min_signal_strength", cfg.MinSignalStrength).
		Float64("position_size_ratio", cfg.DefaultPositionSizeRatio).
		Str("strategy", s.Name()).
		Msg("executor initialized")
	return e, nil
}

// EvaluateSignal asks the strategy for a signal over window and processes it.
func (e *Executor) EvaluateSignal(symbol string, window []types.OHLCV, ts time.Time) boterrors.Result {
	return e.ProcessSignal(symbol, e.strategy.GenerateSignal(window), ts)
}

// ProcessSignal opens a short sized at DefaultPositionSizeRatio of the
// portfolio value when the signal passes every gate.
func (e *Executor) ProcessSignal(symbol string, sig strategy.Signal, ts time.Time) (res boterrors.Result) {
	const op = "process_signal"
	e.mu.Lock()
	defer e.mu.Unlock()

	e.totalSignals++
	rec := SignalRecord{Timestamp: ts, Symbol: symbol, Signal: sig}
	defer func() {
		if r := recover(); r != nil {
			res = boterrors.Reject(boterrors.KindInternal, "%s: unexpected fault: %v", op, r)
			e.onFault(op, r)
			e.rejectSignal(rec, RejectInternal, res)
		}
	}()

	switch {
	case !sig.HasPumpSignal || !sig.HasReversalSignal:
		return e.rejectSignal(rec, RejectIncompleteSignal, boterrors.Invalid("incomplete signal"))
	case !validStrength(sig.SignalStrength):
		return e.rejectSignal(rec, RejectInvalidSignal, boterrors.Invalid("signal strength %v outside [0, 1]", sig.SignalStrength))
	case !(sig.SignalStrength >= e.cfg.MinSignalStrength):
		return e.rejectSignal(rec, RejectWeakSignal, boterrors.Invalid("signal strength %.2f below minimum %.2f",
			sig.SignalStrength, e.cfg.MinSignalStrength))
	case e.portfolio.HasPosition(symbol):
		return e.rejectSignal(rec, RejectPositionExists, boterrors.Invalid("active position already exists for %s", symbol))
	case !boterrors.PositiveFinite(sig.EntryPrice):
		return e.rejectSignal(rec, RejectInvalidEntryPrice, boterrors.Invalid("invalid entry price %v", sig.EntryPrice))
	}

	positionValue := e.portfolio.Value(nil) * e.cfg.DefaultPositionSizeRatio
	quantity := positionValue / sig.EntryPrice

	fill, r := e.portfolio.CreatePosition(symbol, types.SideShort, sig.EntryPrice, quantity, ts)
	if !r.OK {
		return e.rejectSignal(rec, RejectPortfolio, r)
	}

	rec.Executed = true
	rec.EntryPrice = sig.EntryPrice
	rec.Quantity = quantity
	rec.PositionValue = positionValue
	e.signalLog = append(e.signalLog, rec)
	e.executedSignals++
	e.adds[symbol] = &addCounts{}
	e.lastPrices[symbol] = sig.EntryPrice

	e.record(TradeRecord{
		Timestamp:      ts,
		Symbol:         symbol,
		Action:         types.ActionOpenShort,
		Price:          fill.Price,
		Quantity:       fill.Quantity,
		Value:          fill.Notional,
		Fee:            fill.Fee,
		Reason:         types.ReasonSignal,
		SignalStrength: sig.SignalStrength,
	})
	e.sink.SignalProcessed(symbol, true)

	e.log.Info().
		Str("symbol", symbol).
		Float64("entry_price", sig.EntryPrice).
		Float64("quantity", quantity).
		Float64("strength", sig.SignalStrength).
		Msg("short signal executed")
	return boterrors.Success("signal executed")
}

func validStrength(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func (e *Executor) rejectSignal(rec SignalRecord, category string, res boterrors.Result) boterrors.Result {
	rec.RejectionCategory = category
	rec.RejectionReason = res.Reason
	e.signalLog = append(e.signalLog, rec)
	e.rejectedSignals++
	e.sink.SignalProcessed(rec.Symbol, false)

	e.log.Debug().
		Str("symbol", rec.Symbol).
		Str("category", category).
		Str("kind", string(res.Kind)).
		Str("reason", res.Reason).
		Msg("signal rejected")
	return res
}

// MonitorPositions records an equity sample, then for every active symbol
// with a price checks stop-loss, take-profit and grid adds in that order. A
// triggered close ends that symbol's tick. It returns the trades executed.
func (e *Executor) MonitorPositions(prices map[string]float64, ts time.Time) []TradeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	if res := e.portfolio.UpdatePortfolio(prices, ts); !res.OK {
		e.log.Warn().
			Str("kind", string(res.Kind)).
			Str("reason", res.Reason).
			Msg("equity update failed")
	}

	var trades []TradeRecord
	for _, symbol := range e.portfolio.ActiveSymbols() {
		price, ok := prices[symbol]
		if !ok {
			continue
		}
		if boterrors.PositiveFinite(price) {
			e.lastPrices[symbol] = price
		}
		trades = append(trades, e.monitorSymbol(symbol, price, ts)...)
	}
	return trades
}

func (e *Executor) monitorSymbol(symbol string, price float64, ts time.Time) (trades []TradeRecord) {
	const op = "monitor_positions"
	var res boterrors.Result
	defer boterrors.Recover(op, &res, e.onFault)

	pos, ok := e.portfolio.Position(symbol)
	if !ok {
		return nil
	}
	// Both directions are judged against the book as it stood at the start of the tick.
	avg, total := pos.AveragePrice, pos.TotalQuantity

	if e.cfg.EnableAutoStopLoss {
		if hit, why := e.strategy.CheckStopLoss(avg, price); hit {
			if rec, ok := e.closeLocked(symbol, price, types.ReasonStopLoss, types.ActionStopLoss, why, ts); ok {
				e.autoStops++
				trades = append(trades, rec)
			}
			return trades
		}
	}
	if e.cfg.EnableAutoTakeProfit {
		if hit, why := e.strategy.CheckTakeProfit(avg, price); hit {
			if rec, ok := e.closeLocked(symbol, price, types.ReasonTakeProfit, types.ActionTakeProfit, why, ts); ok {
				e.autoProfits++
				trades = append(trades, rec)
			}
			return trades
		}
	}
	if !e.cfg.EnableAddPositions {
		return trades
	}

	counts := e.adds[symbol]
	if counts == nil {
		counts = &addCounts{}
		e.adds[symbol] = counts
	}
	for _, dir := range []types.Direction{types.DirectionUp, types.DirectionDown} {
		ok, decision := e.strategy.ShouldAddPosition(avg, price, counts.get(dir), dir)
		if !ok {
			continue
		}
		quantity := total * decision.AddRatio
		fill, r := e.portfolio.AddToPosition(symbol, price, quantity, dir.EntryKind(), ts)
		if !r.OK {
			e.log.Debug().
				Str("symbol", symbol).
				Str("direction", string(dir)).
				Str("reason", r.Reason).
				Msg("grid add rejected")
			continue
		}
		seq := counts.inc(dir)
		action := types.ActionAddOnUp
		if dir == types.DirectionDown {
			action = types.ActionAddOnDown
		}
		trades = append(trades, e.record(TradeRecord{
			Timestamp: ts,
			Symbol:    symbol,
			Action:    action,
			Price:     fill.Price,
			Quantity:  fill.Quantity,
			Value:     fill.Notional,
			Fee:       fill.Fee,
			Reason:    decision.Description,
			Sequence:  seq,
		}))
		e.log.Info().
			Str("symbol", symbol).
			Str("direction", string(dir)).
			Int("sequence", seq).
			Float64("price", price).
			Float64("quantity", quantity).
			Msg("grid add executed")
	}
	return trades
}

// ForceClosePosition closes symbol regardless of signals and clears its add counters.
func (e *Executor) ForceClosePosition(symbol string, price float64, reason string, ts time.Time) (rec TradeRecord, res boterrors.Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer boterrors.Recover("force_close_position", &res, e.onFault)

	if !e.portfolio.HasPosition(symbol) {
		return TradeRecord{}, boterrors.Invalid("no active position for %s", symbol)
	}
	fill, r := e.portfolio.ClosePosition(symbol, price, reason, ts)
	if !r.OK {
		return TradeRecord{}, r
	}
	delete(e.adds, symbol)
	rec = e.record(exitRecord(fill, types.ActionForceClose, reason, ts))

	e.log.Info().
		Str("symbol", symbol).
		Float64("price", price).
		Str("reason", reason).
		Float64("pnl", fill.PnL).
		Msg("position force closed")
	return rec, boterrors.Success("position closed")
}

func (e *Executor) closeLocked(symbol string, price float64, reason string, action types.Action, why string, ts time.Time) (TradeRecord, bool) {
	fill, r := e.portfolio.ClosePosition(symbol, price, reason, ts)
	if !r.OK {
		e.log.Warn().
			Str("symbol", symbol).
			Str("action", string(action)).
			Str("reason", r.Reason).
			Msg("automatic close rejected")
		return TradeRecord{}, false
	}
	delete(e.adds, symbol)
	rec := e.record(exitRecord(fill, action, why, ts))

	e.log.Info().
		Str("symbol", symbol).
		Str("action", string(action)).
		Float64("price", price).
		Float64("pnl", fill.PnL).
		Str("reason", why).
		Msg("position closed")
	return rec, true
}

func exitRecord(fill portfolio.Fill, action types.Action, reason string, ts time.Time) TradeRecord {
	pnl := fill.PnL
	return TradeRecord{
		Timestamp: ts,
		Symbol:    fill.Symbol,
		Action:    action,
		Price:     fill.Price,
		Quantity:  fill.Quantity,
		Value:     fill.Notional,
		Fee:       fill.Fee,
		Reason:    reason,
		PnL:       &pnl,
	}
}

func (e *Executor) record(rec TradeRecord) TradeRecord {
	rec.ID = uuid.NewString()
	e.tradeLog = append(e.tradeLog, rec)
	e.sink.TradeExecuted(rec.Symbol, rec.Action, rec.Price, rec.Quantity)
	return rec
}

func (e *Executor) onFault(op string, fault interface{}) {
	e.log.Error().Str("operation", op).Interface("fault", fault).Msg("internal fault recovered")
	e.sink.InternalFault(op)
}

// TradeLog returns the trade records matching f in execution order.
func (e *Executor) TradeLog(f TradeFilter) []TradeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TradeRecord, 0, len(e.tradeLog))
	for _, r := range e.tradeLog {
		if f.match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (e *Executor) SignalLog() []SignalRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]SignalRecord, len(e.signalLog))
	copy(out, e.signalLog)
	return out
}

// LastPrice returns the most recent price seen for symbol.
func (e *Executor) LastPrice(symbol string) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.lastPrices[symbol]
	return p, ok
}

// AddCounts returns the grid adds made on symbol's current position.
func (e *Executor) AddCounts(symbol string) (up, down int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.adds[symbol]; ok {
		return c.up, c.down
	}
	return 0, 0
}

func (e *Executor) ExecutionSummary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Summary{
		TotalSignals:     e.totalSignals,
		ExecutedSignals:  e.executedSignals,
		RejectedSignals:  e.rejectedSignals,
		AutoStops:        e.autoStops,
		AutoProfits:      e.autoProfits,
		RejectionReasons: make(map[string]int),
		TradeTypes:       make(map[types.Action]int),
		ActivePositions:  len(e.portfolio.ActiveSymbols()),
		TotalTrades:      len(e.tradeLog),
		SignalsLogged:    len(e.signalLog),
		Config:           e.cfg,
	}
	if e.totalSignals > 0 {
		s.ExecutionRate = float64(e.executedSignals) / float64(e.totalSignals)
		s.RejectionRate = float64(e.rejectedSignals) / float64(e.totalSignals)
	}
	for _, r := range e.signalLog {
		if !r.Executed && r.RejectionCategory != "" {
			s.RejectionReasons[r.RejectionCategory]++
		}
	}
	for _, r := range e.tradeLog {
		s.TradeTypes[r.Action]++
	}
	return s
}

func (e *Executor) Portfolio() *portfolio.Portfolio { return e.portfolio }

func (e *Executor) Strategy() strategy.Strategy { return e.strategy }
