package risk

import (
	"fmt"

	boterrors "github.com/ducminhle1904/pump-short-bot/internal/errors"
)

// Limits holds the portfolio-level risk policy. All ratios are fractions of
// total portfolio value.
type Limits struct {
	MaxPositionSizeRatio   float64 `json:"max_position_size_ratio" toml:"max_position_size_ratio"`
	MaxTotalExposureRatio  float64 `json:"max_total_exposure_ratio" toml:"max_total_exposure_ratio"`
	MaxConcurrentPositions int     `json:"max_concurrent_positions" toml:"max_concurrent_positions"`
	PortfolioStopLossRatio float64 `json:"portfolio_stop_loss_ratio" toml:"portfolio_stop_loss_ratio"`
}

// DefaultLimits returns the stock risk policy.
func DefaultLimits() Limits {
	return Limits{
		MaxPositionSizeRatio:   0.1,
		MaxTotalExposureRatio:  0.8,
		MaxConcurrentPositions: 5,
		PortfolioStopLossRatio: 0.15,
	}
}

// Validate checks that every limit is inside its usable range.
func (l Limits) Validate() error {
	if !inUnitInterval(l.MaxPositionSizeRatio) {
		return boterrors.NewConfigurationError("risk", "max_position_size_ratio",
			fmt.Sprintf("must be in (0, 1], got %v", l.MaxPositionSizeRatio))
	}
	if !inUnitInterval(l.MaxTotalExposureRatio) {
		return boterrors.NewConfigurationError("risk", "max_total_exposure_ratio",
			fmt.Sprintf("must be in (0, 1], got %v", l.MaxTotalExposureRatio))
	}
	if l.MaxPositionSizeRatio > l.MaxTotalExposureRatio {
		return boterrors.NewConfigurationError("risk", "max_position_size_ratio",
			"cannot exceed max_total_exposure_ratio")
	}
	if l.MaxConcurrentPositions < 1 {
		return boterrors.NewConfigurationError("risk", "max_concurrent_positions",
			fmt.Sprintf("must be at least 1, got %d", l.MaxConcurrentPositions))
	}
	if !inUnitInterval(l.PortfolioStopLossRatio) {
		return boterrors.NewConfigurationError("risk", "portfolio_stop_loss_ratio",
			fmt.Sprintf("must be in (0, 1], got %v", l.PortfolioStopLossRatio))
	}
	return nil
}

func inUnitInterval(v float64) bool {
	return v > 0 && v <= 1
}
