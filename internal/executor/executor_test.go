package executor

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boterrors "github.com/ducminhle1904/pump-short-bot/internal/errors"
	"github.com/ducminhle1904/pump-short-bot/internal/monitoring"
	"github.com/ducminhle1904/pump-short-bot/internal/portfolio"
	"github.com/ducminhle1904/pump-short-bot/internal/strategy"
	"github.com/ducminhle1904/pump-short-bot/pkg/types"
)

var t0 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	portfolio *portfolio.Portfolio
	executor  *Executor
	sink      *tradeSink
}

type setup struct {
	portfolio func(c *portfolio.Config)
	params    func(p *strategy.Params)
	executor  func(c *Config)
}

func newFixture(t *testing.T, s setup) fixture {
	t.Helper()

	pcfg := portfolio.DefaultConfig()
	pcfg.InitialCapital = 10000
	pcfg.FeeRate, pcfg.SlippageRate = 0, 0
	if s.portfolio != nil {
		s.portfolio(&pcfg)
	}
	p, err := portfolio.New(pcfg, zerolog.Nop(), portfolio.WithStartTime(t0))
	require.NoError(t, err)

	params := strategy.DefaultParams()
	if s.params != nil {
		s.params(&params)
	}
	strat, err := strategy.NewPumpShortStrategy(params, zerolog.Nop())
	require.NoError(t, err)

	cfg := DefaultConfig()
	if s.executor != nil {
		s.executor(&cfg)
	}
	sink := &tradeSink{trades: make(map[types.Action]int)}
	e, err := New(p, strat, cfg, zerolog.Nop(), WithTelemetry(sink))
	require.NoError(t, err)

	return fixture{portfolio: p, executor: e, sink: sink}
}

type tradeSink struct {
	monitoring.NopSink
	trades   map[types.Action]int
	accepted int
	rejected int
}

func (s *tradeSink) TradeExecuted(_ string, action types.Action, _, _ float64) { s.trades[action]++ }

func (s *tradeSink) SignalProcessed(_ string, accepted bool) {
	if accepted {
		s.accepted++
	} else {
		s.rejected++
	}
}

func shortSignal(entry, strength float64) strategy.Signal {
	return strategy.Signal{
		HasPumpSignal:     true,
		HasReversalSignal: true,
		EntryPrice:        entry,
		SignalStrength:    strength,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"strength above one", func(c *Config) { c.MinSignalStrength = 1.2 }, true},
		{"zero size", func(c *Config) { c.DefaultPositionSizeRatio = 0 }, true},
		{"nan size", func(c *Config) { c.DefaultPositionSizeRatio = math.NaN() }, true},
		{"accept everything", func(c *Config) { c.MinSignalStrength = 0 }, false},
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

func TestProcessSignalOpensShort(t *testing.T) {
	f := newFixture(t, setup{})

	res := f.executor.ProcessSignal("PEPEUSDT", shortSignal(100, 0.8), t0)
	require.True(t, res.OK, res.Reason)

	pos, ok := f.portfolio.Position("PEPEUSDT")
	require.True(t, ok)
	assert.Equal(t, types.SideShort, pos.Side)
	assert.InDelta(t, 8.0, pos.TotalQuantity, 1e-9)
	assert.Equal(t, 100.0, pos.AveragePrice)

	trades := f.executor.TradeLog(TradeFilter{})
	require.Len(t, trades, 1)
	assert.Equal(t, types.ActionOpenShort, trades[0].Action)
	assert.Equal(t, types.ReasonSignal, trades[0].Reason)
	assert.Equal(t, 0.8, trades[0].SignalStrength)
	assert.InDelta(t, 800.0, trades[0].Value, 1e-9)
	assert.Nil(t, trades[0].PnL)
	assert.NotEmpty(t, trades[0].ID)

	price, ok := f.executor.LastPrice("PEPEUSDT")
	assert.True(t, ok)
	assert.Equal(t, 100.0, price)
	assert.Equal(t, 1, f.sink.accepted)
	assert.Equal(t, 1, f.sink.trades[types.ActionOpenShort])
}

func TestProcessSignalRejections(t *testing.T) {
	tests := []struct {
		name     string
		setup    setup
		signal   strategy.Signal
		kind     boterrors.ErrorKind
		category string
	}{
		{
			name:     "no reversal",
			signal:   strategy.Signal{HasPumpSignal: true, EntryPrice: 100, SignalStrength: 0.9},
			kind:     boterrors.KindValidation,
			category: RejectIncompleteSignal,
		},
		{
			name:     "weak signal",
			signal:   shortSignal(100, 0.55),
			kind:     boterrors.KindValidation,
			category: RejectWeakSignal,
		},
		{
			name:     "NaN strength",
			signal:   shortSignal(100, math.NaN()),
			kind:     boterrors.KindValidation,
			category: RejectInvalidSignal,
		},
		{
			name:     "strength above one",
			signal:   shortSignal(100, 7.5),
			kind:     boterrors.KindValidation,
			category: RejectInvalidSignal,
		},
		{
			name:     "negative strength",
			signal:   shortSignal(100, -0.1),
			kind:     boterrors.KindValidation,
			category: RejectInvalidSignal,
		},
		{
			name:     "infinite entry",
			signal:   shortSignal(math.Inf(1), 0.9),
			kind:     boterrors.KindValidation,
			category: RejectInvalidEntryPrice,
		},
		{
			name:     "zero entry",
			signal:   shortSignal(0, 0.9),
			kind:     boterrors.KindValidation,
			category: RejectInvalidEntryPrice,
		},
		{
			name:     "oversized by portfolio limits",
			setup:    setup{executor: func(c *Config) { c.DefaultPositionSizeRatio = 0.2 }},
			signal:   shortSignal(100, 0.9),
			kind:     boterrors.KindRiskLimit,
			category: RejectPortfolio,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.setup)

			res := f.executor.ProcessSignal("PEPEUSDT", tt.signal, t0)
			assert.False(t, res.OK)
			assert.Equal(t, tt.kind, res.Kind)
			assert.False(t, f.portfolio.HasPosition("PEPEUSDT"))
			assert.Empty(t, f.executor.TradeLog(TradeFilter{}))

			log := f.executor.SignalLog()
			require.Len(t, log, 1)
			assert.False(t, log[0].Executed)
			assert.Equal(t, tt.category, log[0].RejectionCategory)
			assert.Equal(t, res.Reason, log[0].RejectionReason)
			assert.Equal(t, 1, f.sink.rejected)
		})
	}
}

func TestProcessSignalRejectsSecondEntry(t *testing.T) {
	f := newFixture(t, setup{})

	require.True(t, f.executor.ProcessSignal("PEPEUSDT", shortSignal(100, 0.8), t0).OK)
	res := f.executor.ProcessSignal("PEPEUSDT", shortSignal(105, 0.95), t0.Add(time.Hour))

	assert.False(t, res.OK)
	assert.Equal(t, boterrors.KindValidation, res.Kind)
	assert.Contains(t, res.Reason, "active position already exists")

	pos, _ := f.portfolio.Position("PEPEUSDT")
	assert.Equal(t, 100.0, pos.AveragePrice)
	assert.Len(t, f.portfolio.ActiveSymbols(), 1)

	s := f.executor.ExecutionSummary()
	assert.Equal(t, 2, s.TotalSignals)
	assert.Equal(t, 1, s.ExecutedSignals)
	assert.Equal(t, 1, s.RejectedSignals)
	assert.Equal(t, 0.5, s.ExecutionRate)
	assert.Equal(t, map[string]int{RejectPositionExists: 1}, s.RejectionReasons)
	assert.Equal(t, 1, s.TradeTypes[types.ActionOpenShort])
	assert.Equal(t, 1, s.ActivePositions)
}

func TestForceCloseRoundTrip(t *testing.T) {
	f := newFixture(t, setup{})

	require.True(t, f.executor.ProcessSignal("PEPEUSDT", shortSignal(100, 0.8), t0).OK)
	rec, res := f.executor.ForceClosePosition("PEPEUSDT", 100, types.ReasonManual, t0.Add(time.Hour))
	require.True(t, res.OK, res.Reason)

	assert.Equal(t, types.ActionForceClose, rec.Action)
	require.NotNil(t, rec.PnL)
	assert.InDelta(t, 0, *rec.PnL, 1e-9)
	assert.InDelta(t, 8.0, rec.Quantity, 1e-9)
	assert.InDelta(t, 10000, f.portfolio.Cash(), 1e-9)
	assert.False(t, f.portfolio.HasPosition("PEPEUSDT"))

	up, down := f.executor.AddCounts("PEPEUSDT")
	assert.Zero(t, up+down)

	_, res = f.executor.ForceClosePosition("PEPEUSDT", 100, types.ReasonManual, t0.Add(2*time.Hour))
	assert.False(t, res.OK)
	assert.Equal(t, boterrors.KindValidation, res.Kind)
}

func TestMonitorPositionsExits(t *testing.T) {
	tests := []struct {
		name   string
		price  float64
		action types.Action
		pnl    float64
		status types.PositionStatus
	}{
		{"stop loss", 136, types.ActionStopLoss, -288, types.StatusStopped},
		{"take profit", 87, types.ActionTakeProfit, 104, types.StatusProfitTaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, setup{})
			require.True(t, f.executor.ProcessSignal("PEPEUSDT", shortSignal(100, 0.8), t0).OK)

			trades := f.executor.MonitorPositions(map[string]float64{"PEPEUSDT": tt.price}, t0.Add(time.Hour))

			require.Len(t, trades, 1)
			assert.Equal(t, tt.action, trades[0].Action)
			require.NotNil(t, trades[0].PnL)
			assert.InDelta(t, tt.pnl, *trades[0].PnL, 1e-9)
			assert.False(t, f.portfolio.HasPosition("PEPEUSDT"))

			closed := f.portfolio.ClosedPositions()
			require.Len(t, closed, 1)
			assert.Equal(t, tt.status, closed[0].Status)

			s := f.executor.ExecutionSummary()
			assert.Equal(t, 2, s.TotalTrades)
			assert.Equal(t, 1, s.TradeTypes[tt.action])
		})
	}
}

func TestMonitorPositionsGridAdds(t *testing.T) {
	f := newFixture(t, setup{
		portfolio: func(c *portfolio.Config) { c.Risk.MaxPositionSizeRatio = 0.5 },
	})
	require.True(t, f.executor.ProcessSignal("PEPEUSDT", shortSignal(100, 0.8), t0).OK)

	trades := f.executor.MonitorPositions(map[string]float64{"PEPEUSDT": 112}, t0.Add(time.Hour))
	require.Len(t, trades, 1)
	assert.Equal(t, types.ActionAddOnUp, trades[0].Action)
	assert.Equal(t, 1, trades[0].Sequence)
	assert.InDelta(t, 4.0, trades[0].Quantity, 1e-9)

	pos, _ := f.portfolio.Position("PEPEUSDT")
	assert.InDelta(t, 12.0, pos.TotalQuantity, 1e-9)
	assert.InDelta(t, 104.0, pos.AveragePrice, 1e-9)
	up, down := f.executor.AddCounts("PEPEUSDT")
	assert.Equal(t, 1, up)
	assert.Equal(t, 0, down)

	// the second up level is measured from the new average
	trades = f.executor.MonitorPositions(map[string]float64{"PEPEUSDT": 112}, t0.Add(2*time.Hour))
	assert.Empty(t, trades)

	trades = f.executor.MonitorPositions(map[string]float64{"PEPEUSDT": 96}, t0.Add(3*time.Hour))
	require.Len(t, trades, 1)
	assert.Equal(t, types.ActionAddOnDown, trades[0].Action)
	assert.InDelta(t, 6.0, trades[0].Quantity, 1e-9)
}

func TestMonitorPositionsRespectsMaxAdds(t *testing.T) {
	f := newFixture(t, setup{
		portfolio: func(c *portfolio.Config) { c.Risk.MaxPositionSizeRatio = 0.5 },
		params:    func(p *strategy.Params) { p.MaxAddTimes = 1 },
	})
	require.True(t, f.executor.ProcessSignal("PEPEUSDT", shortSignal(100, 0.8), t0).OK)

	require.Len(t, f.executor.MonitorPositions(map[string]float64{"PEPEUSDT": 112}, t0.Add(time.Hour)), 1)
	assert.Empty(t, f.executor.MonitorPositions(map[string]float64{"PEPEUSDT": 130}, t0.Add(2*time.Hour)))

	pos, _ := f.portfolio.Position("PEPEUSDT")
	assert.Equal(t, 1, pos.AddUpCount)
}

func TestMonitorPositionsDisabledRules(t *testing.T) {
	f := newFixture(t, setup{
		executor: func(c *Config) {
			c.EnableAutoStopLoss = false
			c.EnableAutoTakeProfit = false
			c.EnableAddPositions = false
		},
	})
	require.True(t, f.executor.ProcessSignal("PEPEUSDT", shortSignal(100, 0.8), t0).OK)

	assert.Empty(t, f.executor.MonitorPositions(map[string]float64{"PEPEUSDT": 150}, t0.Add(time.Hour)))
	assert.Empty(t, f.executor.MonitorPositions(map[string]float64{"PEPEUSDT": 50}, t0.Add(2*time.Hour)))
	assert.True(t, f.portfolio.HasPosition("PEPEUSDT"))

	price, _ := f.executor.LastPrice("PEPEUSDT")
	assert.Equal(t, 50.0, price)
}

func TestMonitorPositionsSkipsUnquotedSymbols(t *testing.T) {
	f := newFixture(t, setup{})
	require.True(t, f.executor.ProcessSignal("PEPEUSDT", shortSignal(100, 0.8), t0).OK)

	trades := f.executor.MonitorPositions(map[string]float64{"WIFUSDT": 1}, t0.Add(time.Hour))
	assert.Empty(t, trades)
	assert.True(t, f.portfolio.HasPosition("PEPEUSDT"))
	assert.Len(t, f.portfolio.EquityCurve(), 2)
}

func TestMonitorPositionsIgnoresBadQuotes(t *testing.T) {
	f := newFixture(t, setup{})
	require.True(t, f.executor.ProcessSignal("PEPEUSDT", shortSignal(100, 0.8), t0).OK)

	for i, quote := range []float64{-1, 0, math.NaN(), math.Inf(1)} {
		f.executor.MonitorPositions(map[string]float64{"PEPEUSDT": quote}, t0.Add(time.Duration(i+1)*time.Hour))

		price, ok := f.executor.LastPrice("PEPEUSDT")
		assert.True(t, ok)
		assert.Equal(t, 100.0, price, "quote %v", quote)
		assert.True(t, f.portfolio.HasPosition("PEPEUSDT"))
	}
}

type faultySink struct{ monitoring.NopSink }

func (faultySink) EquityUpdated(float64, float64, int) { panic("sink down") }

func TestMonitorPositionsLogsFailedEquityUpdate(t *testing.T) {
	pcfg := portfolio.DefaultConfig()
	p, err := portfolio.New(pcfg, zerolog.Nop(), portfolio.WithStartTime(t0), portfolio.WithTelemetry(faultySink{}))
	require.NoError(t, err)
	strat, err := strategy.NewPumpShortStrategy(strategy.DefaultParams(), zerolog.Nop())
	require.NoError(t, err)

	var buf bytes.Buffer
	e, err := New(p, strat, DefaultConfig(), zerolog.New(&buf))
	require.NoError(t, err)
	require.True(t, e.ProcessSignal("PEPEUSDT", shortSignal(100, 0.8), t0).OK)

	// the tick still runs its exit checks
	trades := e.MonitorPositions(map[string]float64{"PEPEUSDT": 80}, t0.Add(time.Hour))
	require.Len(t, trades, 1)
	assert.Equal(t, types.ActionTakeProfit, trades[0].Action)

	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "equity update failed")
	assert.Contains(t, buf.String(), string(boterrors.KindInternal))
}

func TestTradeLogFilter(t *testing.T) {
	f := newFixture(t, setup{})
	require.True(t, f.executor.ProcessSignal("PEPEUSDT", shortSignal(100, 0.8), t0).OK)
	require.True(t, f.executor.ProcessSignal("WIFUSDT", shortSignal(2, 0.8), t0.Add(time.Hour)).OK)
	_, res := f.executor.ForceClosePosition("PEPEUSDT", 90, types.ReasonManual, t0.Add(2*time.Hour))
	require.True(t, res.OK)

	assert.Len(t, f.executor.TradeLog(TradeFilter{}), 3)
	assert.Len(t, f.executor.TradeLog(TradeFilter{Symbol: "PEPEUSDT"}), 2)
	assert.Len(t, f.executor.TradeLog(TradeFilter{Start: t0.Add(time.Hour)}), 2)
	assert.Len(t, f.executor.TradeLog(TradeFilter{End: t0}), 1)
	assert.Len(t, f.executor.TradeLog(TradeFilter{Symbol: "WIFUSDT", End: t0}), 0)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(nil, nil, DefaultConfig(), zerolog.Nop())
	assert.Error(t, err)
}
