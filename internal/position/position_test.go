package position

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boterrors "github.com/ducminhle1904/pump-short-bot/internal/errors"
	"github.com/ducminhle1904/pump-short-bot/pkg/types"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newShort(t *testing.T, price, qty float64) *Position {
	t.Helper()
	p, err := New("PUMPUSDT", types.SideShort, price, qty, t0, zerolog.Nop())
	require.NoError(t, err)
	return p
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		symbol  string
		side    types.PositionSide
		price   float64
		qty     float64
		wantErr bool
	}{
		{"valid short", "BTCUSDT", types.SideShort, 100, 1, false},
		{"valid long", "BTCUSDT", types.SideLong, 100, 1, false},
		{"empty symbol", "", types.SideShort, 100, 1, true},
		{"unknown side", "BTCUSDT", types.PositionSide("FLAT"), 100, 1, true},
		{"zero price", "BTCUSDT", types.SideShort, 0, 1, true},
		{"negative qty", "BTCUSDT", types.SideShort, 100, -1, true},
		{"nan price", "BTCUSDT", types.SideShort, math.NaN(), 1, true},
		{"inf qty", "BTCUSDT", types.SideShort, 100, math.Inf(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.symbol, tt.side, tt.price, tt.qty, t0, zerolog.Nop())
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, types.StatusActive, p.Status())
			assert.NotEmpty(t, p.ID())
			require.Len(t, p.Entries(), 1)
			assert.Equal(t, types.EntryInitial, p.Entries()[0].Kind)
			assert.Equal(t, tt.qty, p.RemainingQuantity())
			assert.Equal(t, tt.price, p.AveragePrice())
		})
	}
}

func TestShortCloseRealizesProfit(t *testing.T) {
	p := newShort(t, 100, 10)

	exit, res := p.Close(90, 10, types.ReasonManual, t0.Add(time.Hour))
	require.True(t, res.OK, res.Reason)

	assert.InDelta(t, 100.0, exit.PnL, 1e-9)
	assert.InDelta(t, 100.0, p.RealizedPnL(), 1e-9)
	assert.Equal(t, 0.0, p.RemainingQuantity())
	assert.Equal(t, types.StatusClosed, p.Status())
	assert.False(t, p.IsActive())
}

func TestLongClosePnL(t *testing.T) {
	p, err := New("ETHUSDT", types.SideLong, 100, 2, t0, zerolog.Nop())
	require.NoError(t, err)

	_, res := p.Close(110, 2, types.ReasonManual, t0)
	require.True(t, res.OK)
	assert.InDelta(t, 20.0, p.RealizedPnL(), 1e-9)
}

func TestAverageAndQuantityInvariants(t *testing.T) {
	p := newShort(t, 100, 10)

	require.True(t, p.Add(110, 5, types.EntryAddOnUp, t0.Add(time.Hour)).OK)
	require.True(t, p.Add(93.5, 7.5, types.EntryAddOnDown, t0.Add(2*time.Hour)).OK)
	_, res := p.Close(95, 4, types.ReasonManual, t0.Add(3*time.Hour))
	require.True(t, res.OK)
	require.True(t, p.Add(120, 3, types.EntryAddOnUp, t0.Add(4*time.Hour)).OK)

	var notional, qty float64
	for _, e := range p.Entries() {
		notional += e.Price * e.Quantity
		qty += e.Quantity
	}
	assert.InDelta(t, notional/qty, p.AveragePrice(), 1e-9)
	assert.InDelta(t, qty, p.TotalQuantity(), 1e-12)

	var exited float64
	for _, x := range p.Exits() {
		exited += x.Quantity
	}
	assert.InDelta(t, p.TotalQuantity()-exited, p.RemainingQuantity(), 1e-12)
	assert.GreaterOrEqual(t, p.RemainingQuantity(), 0.0)

	up, down := p.AddCounts()
	assert.Equal(t, 2, up)
	assert.Equal(t, 1, down)
}

func TestPartialCloseKeepsCostBasis(t *testing.T) {
	p := newShort(t, 100, 10)
	require.True(t, p.Add(120, 10, types.EntryAddOnUp, t0).OK)
	avg := p.AveragePrice()

	_, res := p.Close(105, 5, types.ReasonManual, t0)
	require.True(t, res.OK)

	assert.Equal(t, avg, p.AveragePrice())
	assert.InDelta(t, (110.0-105.0)*5, p.RealizedPnL(), 1e-9)
	assert.Equal(t, types.StatusActive, p.Status())
}

func TestTerminalStatusFromReason(t *testing.T) {
	tests := []struct {
		reason string
		want   types.PositionStatus
	}{
		{types.ReasonStopLoss, types.StatusStopped},
		{types.ReasonTakeProfit, types.StatusProfitTaken},
		{types.ReasonBacktestEnd, types.StatusClosed},
		{types.ReasonManual, types.StatusClosed},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			p := newShort(t, 100, 1)
			_, res := p.CloseAll(101, tt.reason, t0)
			require.True(t, res.OK)
			assert.Equal(t, tt.want, p.Status())
			assert.True(t, p.Status().IsTerminal())
		})
	}
}

func TestDustRemainderIsTerminal(t *testing.T) {
	p := newShort(t, 100, 1)
	_, res := p.Close(100, 1-1e-9, types.ReasonManual, t0)
	require.True(t, res.OK)

	assert.Equal(t, 0.0, p.RemainingQuantity())
	assert.Equal(t, types.StatusClosed, p.Status())
}

func TestTerminalRejectsFurtherOperations(t *testing.T) {
	p := newShort(t, 100, 10)
	_, res := p.CloseAll(90, types.ReasonTakeProfit, t0)
	require.True(t, res.OK)

	before := p.Summary()

	res = p.Add(100, 1, types.EntryAddOnUp, t0)
	assert.False(t, res.OK)
	assert.Equal(t, boterrors.KindValidation, res.Kind)

	_, res = p.Close(90, 1, types.ReasonManual, t0)
	assert.False(t, res.OK)
	assert.Equal(t, boterrors.KindValidation, res.Kind)

	assert.Equal(t, before, p.Summary())
}

func TestInvalidInputsRejectedWithoutMutation(t *testing.T) {
	p := newShort(t, 100, 10)
	before := p.Summary()

	addCases := []struct {
		name  string
		price float64
		qty   float64
		kind  types.EntryKind
	}{
		{"zero price", 0, 1, types.EntryAddOnUp},
		{"negative qty", 100, -1, types.EntryAddOnUp},
		{"nan qty", 100, math.NaN(), types.EntryAddOnDown},
		{"initial kind", 100, 1, types.EntryInitial},
	}
	for _, tc := range addCases {
		t.Run("add "+tc.name, func(t *testing.T) {
			assert.False(t, p.Add(tc.price, tc.qty, tc.kind, t0).OK)
		})
	}

	closeCases := []struct {
		name  string
		price float64
		qty   float64
	}{
		{"zero price", 0, 1},
		{"zero qty", 100, 0},
		{"over remaining", 100, 10.5},
		{"inf price", math.Inf(1), 1},
	}
	for _, tc := range closeCases {
		t.Run("close "+tc.name, func(t *testing.T) {
			_, res := p.Close(tc.price, tc.qty, types.ReasonManual, t0)
			assert.False(t, res.OK)
		})
	}

	assert.Equal(t, before, p.Summary())
}

func TestMarkTracksExtremes(t *testing.T) {
	p := newShort(t, 100, 2)

	assert.InDelta(t, 20.0, p.Mark(90), 1e-9)
	assert.InDelta(t, -30.0, p.Mark(115), 1e-9)
	assert.InDelta(t, 10.0, p.Mark(95), 1e-9)

	assert.InDelta(t, 20.0, p.MaxUnrealizedProfit(), 1e-9)
	assert.InDelta(t, -30.0, p.MaxUnrealizedLoss(), 1e-9)

	// invalid prices leave the last mark in place
	assert.InDelta(t, 10.0, p.Mark(-1), 1e-9)
	assert.InDelta(t, 10.0, p.UnrealizedPnL(), 1e-9)
}

func TestSummaryAtHasNoSideEffects(t *testing.T) {
	p := newShort(t, 100, 4)
	p.Mark(98)

	s := p.SummaryAt(80)
	assert.InDelta(t, 80.0, s.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 320.0, s.CurrentMarketValue, 1e-9)
	assert.InDelta(t, 0.2, s.ReturnRate, 1e-9)

	assert.InDelta(t, 8.0, p.UnrealizedPnL(), 1e-9)
	assert.InDelta(t, 8.0, p.MaxUnrealizedProfit(), 1e-9)
}

func TestDuration(t *testing.T) {
	p := newShort(t, 100, 1)
	assert.Equal(t, time.Duration(0), p.Duration(time.Time{}))

	_, res := p.CloseAll(100, types.ReasonManual, t0.Add(5*time.Hour))
	require.True(t, res.OK)
	assert.Equal(t, 5*time.Hour, p.Duration(time.Time{}))
	assert.Equal(t, t0.Add(5*time.Hour), p.Summary().ClosedAt)
}
