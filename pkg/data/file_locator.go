package data

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultFileLocator searches data/{exchange}/{category}/{symbol}/{minutes}/candles.csv.
type DefaultFileLocator struct {
	log zerolog.Logger
}

func NewDefaultFileLocator(log zerolog.Logger) *DefaultFileLocator {
	return &DefaultFileLocator{log: log}
}

// ConvertIntervalToMinutes turns "5m", "1h", "4h", "1d" or "1w" into minutes.
// Unparseable input is returned unchanged.
func (f *DefaultFileLocator) ConvertIntervalToMinutes(interval string) string {
	if _, err := strconv.Atoi(interval); err == nil {
		return interval
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if len(interval) < 2 {
		return interval
	}
	num, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil {
		return interval
	}

	switch interval[len(interval)-1] {
	case 'm':
		return strconv.Itoa(num)
	case 'h':
		return strconv.Itoa(num * 60)
	case 'd':
		return strconv.Itoa(num * 24 * 60)
	case 'w':
		return strconv.Itoa(num * 7 * 24 * 60)
	}
	return interval
}

// FindDataFile returns the first existing candidate or "" when none exists.
func (f *DefaultFileLocator) FindDataFile(dataRoot, exchange, symbol, interval string) string {
	symbol = strings.ToUpper(symbol)
	minutes := f.ConvertIntervalToMinutes(interval)

	var categories []string
	switch strings.ToLower(exchange) {
	case "bybit":
		categories = []string{"linear", "spot", "inverse"}
	case "binance":
		categories = []string{"futures", "spot"}
	default:
		categories = []string{"linear", "futures", "spot", "inverse"}
	}

	attempted := make([]string, 0, len(categories))
	for _, category := range categories {
		path := filepath.Join(dataRoot, exchange, category, symbol, minutes, "candles.csv")
		if _, err := os.Stat(path); err == nil {
			return path
		}
		attempted = append(attempted, path)
	}

	f.log.Warn().
		Str("exchange", exchange).
		Str("symbol", symbol).
		Str("interval", interval).
		Strs("attempted", attempted).
		Msg("no data file found")
	return ""
}
