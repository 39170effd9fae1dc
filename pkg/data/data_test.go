package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/pump-short-bot/pkg/types"
)

var t0 = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

func writeCSV(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func hourly(n int, price float64) []types.OHLCV {
	bars := make([]types.OHLCV, n)
	for i := range bars {
		bars[i] = types.OHLCV{
			Open: price, High: price, Low: price, Close: price, Volume: 1,
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
		}
	}
	return bars
}

func TestCSVProviderPositional(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "bars.csv", `ts,o,h,l,c,v
2024-02-01 00:00:00,1.0,1.2,0.9,1.1,100
2024-02-01 01:00:00,1.1,1.3,1.0,1.2,150
2024-02-01 02:00:00,1.2,1.1,1.0,1.05,150
2024-02-01 03:00:00,abc,1.3,1.0,1.2,150
not-a-date,1.1,1.3,1.0,1.2,150
2024-02-01 04:00:00,1.2,1.3
`)

	bars, err := NewCSVProvider(zerolog.Nop()).LoadData(path)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, t0, bars[0].Timestamp)
	assert.Equal(t, 1.2, bars[1].Close)
	assert.Equal(t, 150.0, bars[1].Volume)
}

func TestCSVProviderNamedHeader(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "bars.csv", `volume,close,low,high,open,timestamp
100,1.1,0.9,1.2,1.0,2024-02-01T00:00:00Z
200,1.2,1.0,1.3,1.1,1706749200000
`)

	bars, err := NewCSVProvider(zerolog.Nop()).LoadData(path)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 1.0, bars[0].Open)
	assert.Equal(t, 100.0, bars[0].Volume)
	assert.Equal(t, t0.Add(time.Hour), bars[1].Timestamp)
}

func TestCSVProviderErrors(t *testing.T) {
	p := NewCSVProvider(zerolog.Nop())

	_, err := p.LoadData(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	_, err = p.LoadData(writeCSV(t, t.TempDir(), "empty.csv", ""))
	assert.Error(t, err)
}

type countingProvider struct {
	calls int
	bars  []types.OHLCV
}

func (c *countingProvider) LoadData(string) ([]types.OHLCV, error) {
	c.calls++
	return c.bars, nil
}

func (c *countingProvider) Name() string { return "counting" }

func TestCachedProvider(t *testing.T) {
	inner := &countingProvider{bars: hourly(3, 1)}
	p := NewCachedProvider(inner, zerolog.Nop())

	first, err := p.LoadData("a.csv")
	require.NoError(t, err)
	first[0].Close = 99

	second, err := p.LoadData("a.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1.0, second[0].Close)
	assert.Equal(t, "Cached counting", p.Name())

	p.Cache().Clear()
	assert.Zero(t, p.Cache().Size())
	_, _ = p.LoadData("a.csv")
	assert.Equal(t, 2, inner.calls)
}

func TestFilters(t *testing.T) {
	bars := hourly(48, 10)

	assert.Len(t, FilterByPeriod(bars, 24*time.Hour), 25)
	assert.Len(t, FilterByPeriod(bars, 0), 48)

	ranged := FilterByDateRange(bars, t0.Add(10*time.Hour), t0.Add(19*time.Hour))
	require.Len(t, ranged, 10)
	assert.Equal(t, t0.Add(10*time.Hour), ranged[0].Timestamp)
	assert.Len(t, FilterByDateRange(bars, time.Time{}, t0.Add(time.Hour)), 2)

	shuffled := []types.OHLCV{bars[2], bars[0], bars[1], bars[0]}
	sorted := SortByTimestamp(shuffled)
	assert.Equal(t, bars[2].Timestamp, shuffled[0].Timestamp)
	assert.Equal(t, bars[0].Timestamp, sorted[0].Timestamp)

	deduped := RemoveDuplicates(sorted)
	assert.Len(t, deduped, 3)
	assert.NoError(t, ValidateTimeSequence(deduped))
	assert.Error(t, ValidateTimeSequence(sorted))
	assert.Error(t, ValidateTimeSequence(shuffled))
}

func TestFilterOutliers(t *testing.T) {
	bars := hourly(4, 10)
	bars[2].Open, bars[2].High = 20, 20

	kept := FilterOutliers(bars, 50)
	assert.Len(t, kept, 3)
	assert.Len(t, FilterOutliers(bars, 0), 4)
}

func TestManagerLoad(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "bars.csv", `timestamp,open,high,low,close,volume
2024-02-01 02:00:00,1,1,1,1,1
2024-02-01 00:00:00,1,1,1,1,1
2024-02-01 01:00:00,1,1,1,1,1
2024-02-01 01:00:00,2,2,2,2,2
2024-02-02 00:00:00,1,1,1,1,1
`)

	m := NewManager(zerolog.Nop())
	bars, err := m.Load(path, LoadOptions{End: t0.Add(23 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, t0, bars[0].Timestamp)
	assert.Equal(t, 1.0, bars[1].Close)

	_, err = m.Load(path, LoadOptions{Start: t0.Add(72 * time.Hour)})
	assert.Error(t, err)
}

func TestFileLocator(t *testing.T) {
	root := t.TempDir()
	want := writeCSV(t, root, filepath.Join("bybit", "linear", "PEPEUSDT", "60", "candles.csv"), "timestamp\n")

	loc := NewDefaultFileLocator(zerolog.Nop())
	assert.Equal(t, want, loc.FindDataFile(root, "bybit", "pepeusdt", "1h"))
	assert.Empty(t, loc.FindDataFile(root, "bybit", "WIFUSDT", "1h"))

	tests := map[string]string{"5m": "5", "1h": "60", "4h": "240", "1d": "1440", "1w": "10080", "15": "15", "x": "x"}
	for in, want := range tests {
		assert.Equal(t, want, loc.ConvertIntervalToMinutes(in), in)
	}
}

func TestParseTrailingPeriod(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"7d", 7 * 24 * time.Hour, true},
		{"30days", 30 * 24 * time.Hour, true},
		{"168h", 168 * time.Hour, true},
		{"0d", 0, false},
		{"soon", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseTrailingPeriod(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
