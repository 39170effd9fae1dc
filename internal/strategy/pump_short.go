package strategy

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	boterrors "github.com/ducminhle1904/pump-short-bot/internal/errors"
	"github.com/ducminhle1904/pump-short-bot/pkg/types"
)

// Params configures PumpShortStrategy. Thresholds are fractional price moves.
type Params struct {
	PumpThreshold       float64 `json:"pump_threshold" toml:"pump_threshold"`
	LookbackDays        int     `json:"lookback_days" toml:"lookback_days"`
	BarsPerDay          int     `json:"bars_per_day" toml:"bars_per_day"`
	AddUpThreshold      float64 `json:"add_up_threshold" toml:"add_up_threshold"`
	AddDownThreshold    float64 `json:"add_down_threshold" toml:"add_down_threshold"`
	MaxAddTimes         int     `json:"max_add_times" toml:"max_add_times"`
	StopLossThreshold   float64 `json:"stop_loss_threshold" toml:"stop_loss_threshold"`
	TakeProfitThreshold float64 `json:"take_profit_threshold" toml:"take_profit_threshold"`
	VolumeMultiplier    float64 `json:"volume_multiplier" toml:"volume_multiplier"`
	UpperShadowRatio    float64 `json:"upper_shadow_ratio" toml:"upper_shadow_ratio"`
	GridAddRatio        float64 `json:"grid_add_ratio" toml:"grid_add_ratio"`
}

// DefaultParams is tuned for hourly bars.
func DefaultParams() Params {
	return Params{
		PumpThreshold:       0.8,
		LookbackDays:        3,
		BarsPerDay:          24,
		AddUpThreshold:      0.1,
		AddDownThreshold:    0.065,
		MaxAddTimes:         3,
		StopLossThreshold:   0.35,
		TakeProfitThreshold: 0.12,
		VolumeMultiplier:    1.5,
		UpperShadowRatio:    0.3,
		GridAddRatio:        0.5,
	}
}

func (p Params) Validate() error {
	positive := map[string]float64{
		"pump_threshold":        p.PumpThreshold,
		"add_up_threshold":      p.AddUpThreshold,
		"add_down_threshold":    p.AddDownThreshold,
		"stop_loss_threshold":   p.StopLossThreshold,
		"take_profit_threshold": p.TakeProfitThreshold,
		"volume_multiplier":     p.VolumeMultiplier,
		"upper_shadow_ratio":    p.UpperShadowRatio,
		"grid_add_ratio":        p.GridAddRatio,
	}
	names := make([]string, 0, len(positive))
	for name := range positive {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !boterrors.PositiveFinite(positive[name]) {
			return boterrors.NewConfigurationError("strategy", name,
				fmt.Sprintf("must be positive, got %v", positive[name]))
		}
	}
	if p.LookbackDays < 1 || p.BarsPerDay < 1 {
		return boterrors.NewConfigurationError("strategy", "lookback_days",
			fmt.Sprintf("lookback_days (%d) and bars_per_day (%d) must be at least 1", p.LookbackDays, p.BarsPerDay))
	}
	if p.MaxAddTimes < 0 {
		return boterrors.NewConfigurationError("strategy", "max_add_times",
			fmt.Sprintf("must not be negative, got %d", p.MaxAddTimes))
	}
	if p.AddDownThreshold*float64(p.MaxAddTimes) >= 1 {
		return boterrors.NewConfigurationError("strategy", "add_down_threshold",
			"down grid would reach a non-positive price")
	}
	return nil
}

// LookbackBars is the pump lookback expressed in bars.
func (p Params) LookbackBars() int {
	return p.LookbackDays * p.BarsPerDay
}

// PumpShortStrategy shorts coins after an abnormal surge once the top shows a
// reversal candle, then grids into the position in both directions.
type PumpShortStrategy struct {
	params Params
	log    zerolog.Logger
}

func NewPumpShortStrategy(params Params, log zerolog.Logger) (*PumpShortStrategy, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &PumpShortStrategy{
		params: params,
		log:    log.With().Str("component", "strategy").Logger(),
	}, nil
}

func (s *PumpShortStrategy) Name() string { return "pump_short" }

func (s *PumpShortStrategy) Params() Params { return s.params }

type pumpResult struct {
	detected    bool
	gainRate    float64
	volumeRatio float64
}

type reversalResult struct {
	detected         bool
	kind             string
	volumeRatio      float64
	upperShadowRatio float64
	bodyRatio        float64
}

// GenerateSignal requires both a pump and a reversal on the latest bar.
func (s *PumpShortStrategy) GenerateSignal(window []types.OHLCV) Signal {
	if len(window) < 2 || len(window) < s.params.LookbackDays {
		return emptySignal(window, "insufficient data")
	}
	for i := range window {
		if !window[i].Valid() {
			return emptySignal(window, fmt.Sprintf("malformed bar at index %d", i))
		}
	}

	pump := s.detectPump(window)
	reversal := s.detectReversal(window)
	if !pump.detected || !reversal.detected {
		return emptySignal(window, "signal conditions not met")
	}

	last := window[len(window)-1]
	current := last.Close
	signal := Signal{
		HasPumpSignal:     true,
		HasReversalSignal: true,
		EntryPrice:        current,
		SignalStrength:    s.strength(pump, reversal),
		AddPositions:      s.gridLevels(current),
		StopLossPrice:     current * (1 + s.params.StopLossThreshold),
		TakeProfitPrice:   current * (1 - s.params.TakeProfitThreshold),
		Metadata: Metadata{
			PumpGain:     pump.gainRate,
			ReversalType: reversal.kind,
			VolumeRatio:  reversal.volumeRatio,
			Timestamp:    last.Timestamp,
		},
	}

	s.log.Info().
		Float64("strength", signal.SignalStrength).
		Float64("entry_price", current).
		Float64("pump_gain", pump.gainRate).
		Str("reversal_type", reversal.kind).
		Msg("short signal generated")
	return signal
}

// detectPump measures the gain over the lookback and the recent volume
// against the volume before it.
func (s *PumpShortStrategy) detectPump(window []types.OHLCV) pumpResult {
	n := len(window)
	current := window[n-1].Close
	lookback := s.params.LookbackBars()

	past := window[0].Close
	if n > lookback {
		past = window[n-lookback].Close
	}
	gain := 0.0
	if past > 0 {
		gain = (current - past) / past
	}

	split := lookback
	if half := n / 2; half < split {
		split = half
	}
	volumes := make([]float64, n)
	for i, b := range window {
		volumes[i] = b.Volume
	}
	recent := stat.Mean(volumes[n-split:], nil)
	historical := recent
	if n > split {
		historical = stat.Mean(volumes[:n-split], nil)
	}
	ratio := 1.0
	if historical > 0 {
		ratio = recent / historical
	}

	res := pumpResult{
		detected:    gain >= s.params.PumpThreshold && ratio >= s.params.VolumeMultiplier,
		gainRate:    gain,
		volumeRatio: ratio,
	}
	s.log.Debug().
		Float64("gain", gain).
		Float64("past_price", past).
		Float64("volume_ratio", ratio).
		Bool("detected", res.detected).
		Msg("pump detection")
	return res
}

// detectReversal inspects the latest candle for top formations.
func (s *PumpShortStrategy) detectReversal(window []types.OHLCV) reversalResult {
	n := len(window)
	last, prev := window[n-1], window[n-2]

	body := math.Abs(last.Close - last.Open)
	upperShadow := last.High - math.Max(last.Open, last.Close)
	totalRange := last.High - last.Low

	volumeRatio := 1.0
	if prev.Volume > 0 {
		volumeRatio = last.Volume / prev.Volume
	}

	res := reversalResult{kind: "none", volumeRatio: volumeRatio}
	bearish := last.Close < last.Open

	if bearish && volumeRatio >= s.params.VolumeMultiplier {
		res.kind = "volume_bearish"
		res.detected = true
	}
	if totalRange > 0 {
		res.upperShadowRatio = upperShadow / totalRange
		res.bodyRatio = body / totalRange

		if res.upperShadowRatio >= s.params.UpperShadowRatio {
			if res.kind == "none" {
				res.kind = "upper_shadow"
			} else {
				res.kind = "volume_bearish_upper_shadow"
			}
			res.detected = true
		}
		if res.bodyRatio < 0.1 {
			if res.kind == "none" {
				res.kind = "doji"
			} else {
				res.kind += "_doji"
			}
			res.detected = true
		}
	}

	// a fresh high far above the earlier average closes
	if n >= 10 {
		recentHigh := 0.0
		for _, b := range window[n-10:] {
			recentHigh = math.Max(recentHigh, b.High)
		}
		historicalAvg := last.Close
		if n > 10 {
			closes := make([]float64, n-10)
			for i, b := range window[:n-10] {
				closes[i] = b.Close
			}
			historicalAvg = stat.Mean(closes, nil)
		}
		if recentHigh > historicalAvg*1.5 && (bearish || res.upperShadowRatio >= 0.2) {
			res.kind = "high_level_reversal"
			res.detected = true
		}
	}

	s.log.Debug().
		Bool("bearish", bearish).
		Float64("volume_ratio", volumeRatio).
		Float64("upper_shadow_ratio", res.upperShadowRatio).
		Str("type", res.kind).
		Bool("detected", res.detected).
		Msg("reversal detection")
	return res
}

// gridLevels lays out MaxAddTimes levels above and below current, sorted by
// trigger price.
func (s *PumpShortStrategy) gridLevels(current float64) []GridLevel {
	levels := make([]GridLevel, 0, 2*s.params.MaxAddTimes)
	for i := 1; i <= s.params.MaxAddTimes; i++ {
		move := s.params.AddUpThreshold * float64(i)
		levels = append(levels, GridLevel{
			Kind:         types.EntryAddOnUp,
			TriggerPrice: current * (1 + move),
			AddRatio:     s.params.GridAddRatio,
			Sequence:     i,
			Description:  fmt.Sprintf("add on %.1f%% up", move*100),
		})
	}
	for i := 1; i <= s.params.MaxAddTimes; i++ {
		move := s.params.AddDownThreshold * float64(i)
		levels = append(levels, GridLevel{
			Kind:         types.EntryAddOnDown,
			TriggerPrice: current * (1 - move),
			AddRatio:     s.params.GridAddRatio,
			Sequence:     i,
			Description:  fmt.Sprintf("add on %.1f%% down", move*100),
		})
	}
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].TriggerPrice < levels[j].TriggerPrice
	})
	return levels
}

func (s *PumpShortStrategy) strength(pump pumpResult, reversal reversalResult) float64 {
	strength := 0.0
	if pump.detected {
		strength += 0.4
	}
	if reversal.detected {
		strength += 0.4
	}
	strength += math.Min(pump.gainRate/s.params.PumpThreshold, 2) * 0.1
	strength += math.Min(reversal.volumeRatio/s.params.VolumeMultiplier, 2) * 0.1
	return math.Min(math.Max(strength, 0), 1)
}

// CheckStopLoss fires when price has risen StopLossThreshold above avgPrice.
func (s *PumpShortStrategy) CheckStopLoss(avgPrice, currentPrice float64) (bool, string) {
	if avgPrice <= 0 {
		return false, "invalid entry price"
	}
	change := (currentPrice - avgPrice) / avgPrice
	if change >= s.params.StopLossThreshold {
		return true, fmt.Sprintf("price stop loss: up %.2f%%", change*100)
	}
	return false, "stop loss condition not met"
}

// CheckTakeProfit fires when price has fallen TakeProfitThreshold below avgPrice.
func (s *PumpShortStrategy) CheckTakeProfit(avgPrice, currentPrice float64) (bool, string) {
	if avgPrice <= 0 {
		return false, "invalid entry price"
	}
	change := (avgPrice - currentPrice) / avgPrice
	if change >= s.params.TakeProfitThreshold {
		return true, fmt.Sprintf("take profit: down %.2f%%", change*100)
	}
	return false, "take profit condition not met"
}

// ShouldAddPosition requires a move of threshold*(existingAdds+1) from
// avgPrice in dir. Once MaxAddTimes adds exist no further add fires.
func (s *PumpShortStrategy) ShouldAddPosition(avgPrice, currentPrice float64, existingAdds int, dir types.Direction) (bool, AddDecision) {
	if avgPrice <= 0 || existingAdds >= s.params.MaxAddTimes {
		return false, AddDecision{}
	}
	change := (currentPrice - avgPrice) / avgPrice
	seq := existingAdds + 1

	var triggered bool
	switch dir {
	case types.DirectionUp:
		triggered = change >= s.params.AddUpThreshold*float64(seq)
	case types.DirectionDown:
		triggered = change <= -s.params.AddDownThreshold*float64(seq)
	}
	if !triggered {
		return false, AddDecision{}
	}

	return true, AddDecision{
		Kind:         dir.EntryKind(),
		TriggerPrice: currentPrice,
		AddRatio:     s.params.GridAddRatio,
		Sequence:     seq,
		PriceChange:  change,
		Description:  fmt.Sprintf("add #%d on %s", seq, dir),
	}
}

func emptySignal(window []types.OHLCV, reason string) Signal {
	s := Signal{Metadata: Metadata{Reason: reason}}
	if len(window) > 0 {
		s.Metadata.Timestamp = window[len(window)-1].Timestamp
	}
	return s
}
