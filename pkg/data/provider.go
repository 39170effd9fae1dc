package data

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ducminhle1904/pump-short-bot/pkg/types"
)

// LoadOptions narrows and cleans a loaded series.
type LoadOptions struct {
	Start time.Time
	End   time.Time
	// Period keeps only the trailing window, applied after the date range.
	Period time.Duration
	// MaxGapPercent drops bars gapping more than this from the previous close. Zero disables it.
	MaxGapPercent float64
}

// Manager combines loading, cleaning and file lookup.
type Manager struct {
	provider Provider
	locator  FileLocator
	log      zerolog.Logger
}

// NewManager uses a cached CSV provider.
func NewManager(log zerolog.Logger) *Manager {
	return NewManagerWithProvider(NewCachedProvider(NewCSVProvider(log), log), log)
}

func NewManagerWithProvider(provider Provider, log zerolog.Logger) *Manager {
	return &Manager{
		provider: provider,
		locator:  NewDefaultFileLocator(log),
		log:      log.With().Str("component", "data").Logger(),
	}
}

// Load reads source, sorts it, drops duplicate timestamps, applies opts and
// validates the result.
func (m *Manager) Load(source string, opts LoadOptions) ([]types.OHLCV, error) {
	raw, err := m.provider.LoadData(source)
	if err != nil {
		return nil, err
	}

	bars := RemoveDuplicates(SortByTimestamp(raw))
	bars = FilterByDateRange(bars, opts.Start, opts.End)
	bars = FilterByPeriod(bars, opts.Period)
	bars = FilterOutliers(bars, opts.MaxGapPercent)

	if err := ValidateData(bars); err != nil {
		return nil, err
	}

	m.log.Info().
		Str("source", source).
		Int("raw", len(raw)).
		Int("bars", len(bars)).
		Time("from", bars[0].Timestamp).
		Time("to", bars[len(bars)-1].Timestamp).
		Msg("data ready")
	return bars, nil
}

func (m *Manager) FindDataFile(dataRoot, exchange, symbol, interval string) string {
	return m.locator.FindDataFile(dataRoot, exchange, symbol, interval)
}

// ParseTrailingPeriod parses "7d", "30days" or any time.ParseDuration string.
func ParseTrailingPeriod(s string) (time.Duration, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasSuffix(s, "days") {
		s = strings.TrimSuffix(s, "days") + "d"
	}
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || n <= 0 {
			return 0, false
		}
		return time.Duration(n) * 24 * time.Hour, true
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d, true
	}
	return 0, false
}
