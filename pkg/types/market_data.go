package types

import (
	"math"
	"time"
)

type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// Valid reports whether the bar carries finite, positive prices.
func (c OHLCV) Valid() bool {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
		if !(v > 0) || math.IsInf(v, 0) {
			return false
		}
	}
	return !math.IsNaN(c.Volume) && c.Volume >= 0
}
