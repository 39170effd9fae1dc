package data

import (
	"fmt"
	"math"
	"sort"
	"time"

	boterrors "github.com/ducminhle1904/pump-short-bot/internal/errors"
	"github.com/ducminhle1904/pump-short-bot/pkg/types"
)

// FilterByPeriod keeps the bars within period of the last bar.
func FilterByPeriod(data []types.OHLCV, period time.Duration) []types.OHLCV {
	if period <= 0 || len(data) == 0 {
		return data
	}
	cutoff := data[len(data)-1].Timestamp.Add(-period)
	start := sort.Search(len(data), func(i int) bool {
		return !data[i].Timestamp.Before(cutoff)
	})
	return data[start:]
}

// FilterByDateRange keeps bars with start <= ts <= end. A zero bound is open.
func FilterByDateRange(data []types.OHLCV, start, end time.Time) []types.OHLCV {
	if start.IsZero() && end.IsZero() {
		return data
	}
	filtered := make([]types.OHLCV, 0, len(data))
	for _, bar := range data {
		if !start.IsZero() && bar.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && bar.Timestamp.After(end) {
			continue
		}
		filtered = append(filtered, bar)
	}
	return filtered
}

// ValidateTimeSequence requires strictly increasing timestamps.
func ValidateTimeSequence(data []types.OHLCV) error {
	for i := 1; i < len(data); i++ {
		prev, cur := data[i-1].Timestamp, data[i].Timestamp
		if cur.Before(prev) {
			return boterrors.NewValidationError("data", "time_sequence",
				fmt.Sprintf("bar %d at %s precedes %s", i, cur.Format(time.RFC3339), prev.Format(time.RFC3339)))
		}
		if cur.Equal(prev) {
			return boterrors.NewValidationError("data", "time_sequence",
				fmt.Sprintf("duplicate timestamp at bar %d: %s", i, cur.Format(time.RFC3339)))
		}
	}
	return nil
}

// SortByTimestamp returns a chronologically sorted copy.
func SortByTimestamp(data []types.OHLCV) []types.OHLCV {
	sorted := make([]types.OHLCV, len(data))
	copy(sorted, data)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// RemoveDuplicates keeps the first bar of each timestamp.
func RemoveDuplicates(data []types.OHLCV) []types.OHLCV {
	seen := make(map[int64]struct{}, len(data))
	filtered := make([]types.OHLCV, 0, len(data))
	for _, bar := range data {
		key := bar.Timestamp.UnixNano()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		filtered = append(filtered, bar)
	}
	return filtered
}

// FilterOutliers drops bars whose open gaps more than maxPercentChange
// percent from the previous kept close.
func FilterOutliers(data []types.OHLCV, maxPercentChange float64) []types.OHLCV {
	if len(data) <= 1 || maxPercentChange <= 0 {
		return data
	}
	filtered := []types.OHLCV{data[0]}
	for _, bar := range data[1:] {
		prevClose := filtered[len(filtered)-1].Close
		change := (bar.Open - prevClose) / prevClose * 100
		if math.Abs(change) <= maxPercentChange {
			filtered = append(filtered, bar)
		}
	}
	return filtered
}
