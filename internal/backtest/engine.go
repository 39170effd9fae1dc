// Package backtest replays a historical bar series through the executor.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	boterrors "github.com/ducminhle1904/pump-short-bot/internal/errors"
	"github.com/ducminhle1904/pump-short-bot/internal/executor"
	"github.com/ducminhle1904/pump-short-bot/internal/strategy"
	"github.com/ducminhle1904/pump-short-bot/pkg/types"
)

const (
	minWarmupBars        = 10
	defaultProgressEvery = 100
	defaultRiskFreeRate  = 0.02
)

// Config describes a single-symbol run.
type Config struct {
	Symbol   string `json:"symbol" toml:"symbol"`
	Interval string `json:"interval" toml:"interval"`
	// WarmupBars is the index of the first bar evaluated. Zero derives it
	// from the strategy lookback.
	WarmupBars    int     `json:"warmup_bars" toml:"warmup_bars"`
	ProgressEvery int     `json:"progress_every" toml:"progress_every"`
	RiskFreeRate  float64 `json:"risk_free_rate" toml:"risk_free_rate"`
}

func DefaultConfig() Config {
	return Config{
		Symbol:        "TEST",
		Interval:      "1h",
		ProgressEvery: defaultProgressEvery,
		RiskFreeRate:  defaultRiskFreeRate,
	}
}

func (c Config) Validate() error {
	if c.Symbol == "" {
		return boterrors.NewConfigurationError("backtest", "symbol", "symbol is required")
	}
	if c.WarmupBars < 0 {
		return boterrors.NewConfigurationError("backtest", "warmup_bars",
			fmt.Sprintf("must not be negative, got %d", c.WarmupBars))
	}
	if c.ProgressEvery < 0 {
		return boterrors.NewConfigurationError("backtest", "progress_every",
			fmt.Sprintf("must not be negative, got %d", c.ProgressEvery))
	}
	return nil
}

// WarmupFor returns the default warm-up for a strategy lookback in days.
func WarmupFor(lookbackDays int) int {
	if w := lookbackDays + 5; w > minWarmupBars {
		return w
	}
	return minWarmupBars
}

type paramsProvider interface {
	Params() strategy.Params
}

// Engine drives one executor over one symbol's bars. An Engine is single-use.
type Engine struct {
	cfg      Config
	executor *executor.Executor
	log      zerolog.Logger
	warmup   int
}

func NewEngine(cfg Config, exec *executor.Executor, log zerolog.Logger) (*Engine, error) {
	if exec == nil {
		return nil, boterrors.NewValidationError("backtest", "new_engine", "executor is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	warmup := cfg.WarmupBars
	if warmup == 0 {
		warmup = minWarmupBars
		if p, ok := exec.Strategy().(paramsProvider); ok {
			warmup = WarmupFor(p.Params().LookbackDays)
		}
	}

	return &Engine{
		cfg:      cfg,
		executor: exec,
		log:      log.With().Str("component", "backtest").Str("symbol", cfg.Symbol).Logger(),
		warmup:   warmup,
	}, nil
}

// Warmup returns the index of the first evaluated bar.
func (e *Engine) Warmup() int { return e.warmup }

// Run replays bars in order. Malformed bars are dropped before the replay.
// On every bar past the warm-up the strategy is consulted when the symbol is
// flat and the portfolio stop has not fired, then open positions are
// monitored at the bar close. Anything still open at the end is force closed
// at the last close.
func (e *Engine) Run(ctx context.Context, bars []types.OHLCV) (*Results, error) {
	started := time.Now()
	pf := e.executor.Portfolio()
	symbol := e.cfg.Symbol

	clean := make([]types.OHLCV, 0, len(bars))
	for _, b := range bars {
		if b.Valid() {
			clean = append(clean, b)
		}
	}
	skipped := len(bars) - len(clean)
	if skipped > 0 {
		e.log.Warn().Int("skipped", skipped).Msg("dropped malformed bars")
	}

	res := &Results{
		RunID:          uuid.NewString(),
		Symbol:         symbol,
		Interval:       e.cfg.Interval,
		InitialCapital: pf.Config().InitialCapital,
		BarsSkipped:    skipped,
	}
	if len(clean) > 0 {
		res.StartTime = clean[0].Timestamp
		res.EndTime = clean[len(clean)-1].Timestamp
	}

	total := len(clean) - e.warmup
	e.log.Info().
		Str("run_id", res.RunID).
		Int("bars", len(clean)).
		Int("warmup", e.warmup).
		Msg("backtest started")

	for i := e.warmup; i < len(clean); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest %s interrupted at bar %d: %w", symbol, i, err)
		}

		bar := clean[i]
		prices := map[string]float64{symbol: bar.Close}

		if !pf.HasPosition(symbol) && !res.StoppedTrading {
			if stop, reason := pf.ShouldStopTrading(prices); stop {
				res.StoppedTrading = true
				res.StopReason = reason
				e.log.Warn().
					Time("at", bar.Timestamp).
					Float64("value", pf.Value(prices)).
					Str("reason", reason).
					Msg("portfolio stop reached, no new positions")
			} else {
				e.executor.EvaluateSignal(symbol, clean[:i+1], bar.Timestamp)
			}
		}
		e.executor.MonitorPositions(prices, bar.Timestamp)
		res.BarsProcessed++

		if e.cfg.ProgressEvery > 0 && (res.BarsProcessed%e.cfg.ProgressEvery == 0 || res.BarsProcessed == total) {
			e.log.Info().
				Int("processed", res.BarsProcessed).
				Int("total", total).
				Float64("progress_pct", float64(res.BarsProcessed)/float64(total)*100).
				Float64("value", pf.Value(prices)).
				Msg("backtest progress")
		}
	}

	if n := len(clean); n > 0 && pf.HasPosition(symbol) {
		last := clean[n-1]
		if _, r := e.executor.ForceClosePosition(symbol, last.Close, types.ReasonBacktestEnd, last.Timestamp); !r.OK {
			return nil, r.Err("backtest", "final_liquidation")
		}
	}

	res.fill(e.executor, e.cfg.RiskFreeRate)
	res.Duration = time.Since(started)

	e.log.Info().
		Str("run_id", res.RunID).
		Float64("final_value", res.FinalValue).
		Float64("total_return", res.TotalReturn).
		Int("trades", res.TotalTrades).
		Dur("elapsed", res.Duration).
		Msg("backtest finished")
	return res, nil
}
