package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	boterrors "github.com/ducminhle1904/pump-short-bot/internal/errors"
	"github.com/ducminhle1904/pump-short-bot/pkg/types"
)

// timestampLayouts are tried in order after the format's own layout.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// CSVProvider reads bars from CSV files. A header naming timestamp, open,
// high, low, close and volume is honoured in any column order; otherwise the
// configured positional format applies.
type CSVProvider struct {
	format CSVFormat
	log    zerolog.Logger
}

func NewCSVProvider(log zerolog.Logger) *CSVProvider {
	return NewCSVProviderWithFormat(DefaultCSVFormat, log)
}

func NewCSVProviderWithFormat(format CSVFormat, log zerolog.Logger) *CSVProvider {
	return &CSVProvider{
		format: format,
		log:    log.With().Str("component", "csv_provider").Logger(),
	}
}

func (p *CSVProvider) Name() string { return "CSV Provider" }

// LoadData parses every well-formed row of filename. Rows that fail to parse
// or carry inconsistent prices are skipped and counted.
func (p *CSVProvider) LoadData(filename string) ([]types.OHLCV, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, boterrors.NewDataError("csv_provider", "open", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, boterrors.NewDataError("csv_provider", "read_header", fmt.Errorf("%s is empty", filename))
		}
		return nil, boterrors.NewDataError("csv_provider", "read_header", err)
	}
	format := p.formatFor(header)

	var (
		data    []types.OHLCV
		skipped int
		line    = 1
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, boterrors.NewDataError("csv_provider", "read",
				fmt.Errorf("line %d: %w", line, err))
		}

		bar, err := parseRecord(record, format)
		if err != nil {
			skipped++
			p.log.Debug().Int("line", line).Err(err).Msg("skipping row")
			continue
		}
		data = append(data, bar)
	}

	p.log.Info().
		Str("file", filename).
		Int("bars", len(data)).
		Int("skipped", skipped).
		Msg("csv loaded")
	return data, nil
}

func (p *CSVProvider) formatFor(header []string) CSVFormat {
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	get := func(names ...string) (int, bool) {
		for _, n := range names {
			if i, ok := cols[n]; ok {
				return i, true
			}
		}
		return 0, false
	}

	f := p.format
	ts, ok1 := get("timestamp", "time", "datetime", "date", "open_time")
	o, ok2 := get("open")
	h, ok3 := get("high")
	l, ok4 := get("low")
	c, ok5 := get("close")
	v, ok6 := get("volume", "vol")
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
		return f
	}
	f.TimestampCol, f.OpenCol, f.HighCol, f.LowCol, f.CloseCol, f.VolumeCol = ts, o, h, l, c, v
	f.MinColumns = 1 + maxInt(ts, o, h, l, c, v)
	return f
}

func parseRecord(record []string, f CSVFormat) (types.OHLCV, error) {
	if len(record) < f.MinColumns {
		return types.OHLCV{}, fmt.Errorf("expected %d columns, got %d", f.MinColumns, len(record))
	}
	ts, err := parseTimestamp(record[f.TimestampCol], f.DateFormat)
	if err != nil {
		return types.OHLCV{}, err
	}

	var vals [5]float64
	for i, col := range []int{f.OpenCol, f.HighCol, f.LowCol, f.CloseCol, f.VolumeCol} {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
		if err != nil {
			return types.OHLCV{}, fmt.Errorf("column %d: %w", col, err)
		}
		vals[i] = v
	}

	bar := types.OHLCV{
		Timestamp: ts,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}
	if err := checkBar(bar); err != nil {
		return types.OHLCV{}, err
	}
	return bar, nil
}

// parseTimestamp accepts the configured layout, common textual layouts and
// unix seconds or milliseconds.
func parseTimestamp(s, layout string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if layout != "" {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, l := range timestampLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

func checkBar(b types.OHLCV) error {
	if !b.Valid() {
		return fmt.Errorf("prices must be positive and finite")
	}
	if b.High < b.Low || b.High < b.Open || b.High < b.Close {
		return fmt.Errorf("high %.8g below other prices", b.High)
	}
	if b.Low > b.Open || b.Low > b.Close {
		return fmt.Errorf("low %.8g above other prices", b.Low)
	}
	return nil
}

// ValidateData checks price consistency and strictly increasing timestamps.
func ValidateData(data []types.OHLCV) error {
	if len(data) == 0 {
		return boterrors.NewValidationError("data", "validate", "no data provided")
	}
	for i, bar := range data {
		if err := checkBar(bar); err != nil {
			return boterrors.NewValidationError("data", "validate", fmt.Sprintf("bar %d: %v", i, err))
		}
	}
	return ValidateTimeSequence(data)
}

func maxInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
