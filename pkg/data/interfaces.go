package data

import (
	"github.com/ducminhle1904/pump-short-bot/pkg/types"
)

// Provider loads a bar series from a source such as a file path.
type Provider interface {
	LoadData(source string) ([]types.OHLCV, error)
	Name() string
}

// Cache keeps loaded series by key. Implementations return copies.
type Cache interface {
	Get(key string) ([]types.OHLCV, bool)
	Set(key string, data []types.OHLCV)
	Clear()
	Size() int
}

// CSVFormat locates the bar fields in a CSV row. It is used when the header
// does not name the columns.
type CSVFormat struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int
	MinColumns   int
	DateFormat   string
}

// DefaultCSVFormat is timestamp,open,high,low,close,volume.
var DefaultCSVFormat = CSVFormat{
	TimestampCol: 0,
	OpenCol:      1,
	HighCol:      2,
	LowCol:       3,
	CloseCol:     4,
	VolumeCol:    5,
	MinColumns:   6,
	DateFormat:   "2006-01-02 15:04:05",
}

// FileLocator finds the candle file of an exchange export tree.
type FileLocator interface {
	FindDataFile(dataRoot, exchange, symbol, interval string) string
	ConvertIntervalToMinutes(interval string) string
}
