package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/pump-short-bot/internal/executor"
	"github.com/ducminhle1904/pump-short-bot/internal/portfolio"
	"github.com/ducminhle1904/pump-short-bot/internal/strategy"
	"github.com/ducminhle1904/pump-short-bot/pkg/types"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// scriptedStrategy fires a full-strength short when the window reaches one of
// the configured lengths and defers every other decision to the real strategy.
type scriptedStrategy struct {
	*strategy.PumpShortStrategy
	fireAt map[int]bool
	calls  int
}

func (s *scriptedStrategy) GenerateSignal(window []types.OHLCV) strategy.Signal {
	s.calls++
	if !s.fireAt[len(window)] {
		return strategy.Signal{}
	}
	return strategy.Signal{
		HasPumpSignal:     true,
		HasReversalSignal: true,
		EntryPrice:        window[len(window)-1].Close,
		SignalStrength:    0.9,
	}
}

func newScripted(t *testing.T, fireAt ...int) *scriptedStrategy {
	t.Helper()
	base, err := strategy.NewPumpShortStrategy(strategy.DefaultParams(), zerolog.Nop())
	require.NoError(t, err)
	s := &scriptedStrategy{PumpShortStrategy: base, fireAt: make(map[int]bool)}
	for _, n := range fireAt {
		s.fireAt[n] = true
	}
	return s
}

func newExecutor(t *testing.T, strat strategy.Strategy, mutate func(c *portfolio.Config)) *executor.Executor {
	t.Helper()
	cfg := portfolio.DefaultConfig()
	cfg.FeeRate, cfg.SlippageRate = 0, 0
	if mutate != nil {
		mutate(&cfg)
	}
	pf, err := portfolio.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	exec, err := executor.New(pf, strat, executor.DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	return exec
}

func newEngine(t *testing.T, exec *executor.Executor) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Symbol = "PEPEUSDT"
	e, err := NewEngine(cfg, exec, zerolog.Nop())
	require.NoError(t, err)
	return e
}

// steps builds hourly bars whose close is levels[k] for every bar in the k-th block of size n.
func steps(n int, levels ...float64) []types.OHLCV {
	bars := make([]types.OHLCV, 0, n*len(levels))
	for _, level := range levels {
		for i := 0; i < n; i++ {
			ts := t0.Add(time.Duration(len(bars)) * time.Hour)
			bars = append(bars, types.OHLCV{
				Open: level, High: level * 1.001, Low: level * 0.999, Close: level, Volume: 100, Timestamp: ts,
			})
		}
	}
	return bars
}

func actions(trades []executor.TradeRecord) []types.Action {
	out := make([]types.Action, len(trades))
	for i, tr := range trades {
		out[i] = tr.Action
	}
	return out
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"no symbol", func(c *Config) { c.Symbol = "" }, true},
		{"negative warmup", func(c *Config) { c.WarmupBars = -1 }, true},
		{"negative progress", func(c *Config) { c.ProgressEvery = -5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestWarmup(t *testing.T) {
	assert.Equal(t, 10, WarmupFor(3))
	assert.Equal(t, 12, WarmupFor(7))

	e := newEngine(t, newExecutor(t, newScripted(t), nil))
	assert.Equal(t, 10, e.Warmup())
}

func TestRunWithoutEnoughBars(t *testing.T) {
	tests := []struct {
		name string
		bars []types.OHLCV
	}{
		{"empty", nil},
		{"shorter than warmup", steps(8, 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strat := newScripted(t, 9)
			e := newEngine(t, newExecutor(t, strat, nil))

			res, err := e.Run(context.Background(), tt.bars)
			require.NoError(t, err)
			assert.NotEmpty(t, res.RunID)
			assert.Zero(t, res.BarsProcessed)
			assert.Zero(t, strat.calls)
			assert.Empty(t, res.Trades)
			assert.Equal(t, 10000.0, res.FinalValue)
			assert.Equal(t, 0.0, res.TotalReturn)
			assert.Equal(t, 0.0, res.SharpeRatio)
		})
	}
}

func TestRunLiquidatesAtEnd(t *testing.T) {
	strat := newScripted(t, 15)
	exec := newExecutor(t, strat, nil)
	e := newEngine(t, exec)
	bars := steps(30, 100)

	res, err := e.Run(context.Background(), bars)
	require.NoError(t, err)

	assert.Equal(t, 20, res.BarsProcessed)
	assert.Equal(t, 5, strat.calls)
	assert.Equal(t, []types.Action{types.ActionOpenShort, types.ActionForceClose}, actions(res.Trades))

	final := res.Trades[1]
	assert.Equal(t, types.ReasonBacktestEnd, final.Reason)
	assert.Equal(t, bars[29].Timestamp, final.Timestamp)
	assert.InDelta(t, 0, *final.PnL, 1e-9)

	assert.False(t, exec.Portfolio().HasPosition("PEPEUSDT"))
	require.Len(t, res.Positions, 1)
	assert.Equal(t, types.StatusClosed, res.Positions[0].Status)
	assert.InDelta(t, 10000, res.FinalValue, 1e-9)
	assert.Len(t, res.EquityCurve, 21)
	assert.Equal(t, 5, res.Execution.TotalSignals)
	assert.Equal(t, 1, res.Execution.ExecutedSignals)
}

func TestRunTakesProfitAndReenters(t *testing.T) {
	strat := newScripted(t, 15, 25)
	e := newEngine(t, newExecutor(t, strat, nil))

	res, err := e.Run(context.Background(), steps(20, 100, 85))
	require.NoError(t, err)

	assert.Equal(t, []types.Action{
		types.ActionOpenShort,
		types.ActionTakeProfit,
		types.ActionOpenShort,
		types.ActionForceClose,
	}, actions(res.Trades))
	assert.InDelta(t, 15*8, *res.Trades[1].PnL, 1e-9)
	assert.Equal(t, 1, res.Execution.AutoProfits)
	assert.Equal(t, 1, res.WinningTrades)
	assert.Greater(t, res.AvgWin, 0.0)
	assert.Equal(t, 0.0, res.ProfitLossRatio)
	assert.False(t, res.StoppedTrading)
}

func TestRunHonoursPortfolioStop(t *testing.T) {
	strat := newScripted(t, 15, 25)
	exec := newExecutor(t, strat, func(c *portfolio.Config) { c.Risk.PortfolioStopLossRatio = 0.005 })
	e := newEngine(t, exec)

	res, err := e.Run(context.Background(), steps(20, 100, 85))
	require.NoError(t, err)

	assert.True(t, res.StoppedTrading)
	assert.Contains(t, res.StopReason, "loss from initial capital")
	assert.Equal(t, []types.Action{types.ActionOpenShort, types.ActionTakeProfit}, actions(res.Trades))
	assert.Equal(t, 1, res.Execution.ExecutedSignals)
}

func TestRunDropsMalformedBars(t *testing.T) {
	strat := newScripted(t)
	e := newEngine(t, newExecutor(t, strat, nil))

	bars := steps(20, 100)
	bars[5].Close = math.NaN()
	bars[12].High = 0

	res, err := e.Run(context.Background(), bars)
	require.NoError(t, err)
	assert.Equal(t, 2, res.BarsSkipped)
	assert.Equal(t, 8, res.BarsProcessed)
	assert.Equal(t, 8, strat.calls)
}

func TestRunStopsOnCancel(t *testing.T) {
	e := newEngine(t, newExecutor(t, newScripted(t), nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, steps(30, 100))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunWithPumpShortStrategy(t *testing.T) {
	strat, err := strategy.NewPumpShortStrategy(strategy.DefaultParams(), zerolog.Nop())
	require.NoError(t, err)
	exec := newExecutor(t, strat, nil)
	e := newEngine(t, exec)

	// 90 quiet bars, a nine bar surge on heavy volume, a bearish top and a slide.
	var bars []types.OHLCV
	add := func(open, high, low, close, volume float64) {
		bars = append(bars, types.OHLCV{
			Open: open, High: high, Low: low, Close: close, Volume: volume,
			Timestamp: t0.Add(time.Duration(len(bars)) * time.Hour),
		})
	}
	for i := 0; i < 90; i++ {
		add(1.0, 1.01, 0.99, 1.0, 100)
	}
	for i := 1; i <= 9; i++ {
		c := 1.0 + 0.1*float64(i)
		add(c-0.05, c, c-0.06, c, 500)
	}
	add(2.2, 2.3, 1.9, 2.0, 1000)
	for i := 0; i < 10; i++ {
		add(1.75, 1.76, 1.7, 1.72, 300)
	}

	res, err := e.Run(context.Background(), bars)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(res.Trades), 2)
	assert.Equal(t, types.ActionOpenShort, res.Trades[0].Action)
	assert.Equal(t, 2.0, res.Trades[0].Price)
	assert.Equal(t, types.ActionTakeProfit, res.Trades[1].Action)
	assert.Greater(t, *res.Trades[1].PnL, 0.0)
	assert.False(t, exec.Portfolio().HasPosition("PEPEUSDT"))
}
