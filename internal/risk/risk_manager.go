package risk

import (
	"fmt"
)

// Manager implements Checker over a fixed set of Limits.
type Manager struct {
	limits Limits
}

// NewManager validates limits and returns a risk manager enforcing them.
func NewManager(limits Limits) (*Manager, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	return &Manager{limits: limits}, nil
}

func (m *Manager) Limits() Limits { return m.limits }

// CheckPositionSize validates a single position's share of the portfolio.
func (m *Manager) CheckPositionSize(portfolioValue, positionValue float64) (bool, string) {
	return checkRatio("position size", portfolioValue, positionValue, m.limits.MaxPositionSizeRatio)
}

// CheckTotalExposure validates the aggregate open notional's share of the portfolio.
func (m *Manager) CheckTotalExposure(portfolioValue, totalExposure float64) (bool, string) {
	return checkRatio("total exposure", portfolioValue, totalExposure, m.limits.MaxTotalExposureRatio)
}

// CheckConcurrency validates that one more position fits under the cap.
func (m *Manager) CheckConcurrency(activePositions int) (bool, string) {
	if activePositions >= m.limits.MaxConcurrentPositions {
		return false, fmt.Sprintf("concurrent positions %d at limit %d",
			activePositions, m.limits.MaxConcurrentPositions)
	}
	return true, "concurrency check passed"
}

func checkRatio(label string, portfolioValue, value, limit float64) (bool, string) {
	if portfolioValue <= 0 {
		return false, fmt.Sprintf("%s check: non-positive portfolio value %.2f", label, portfolioValue)
	}
	ratio := value / portfolioValue
	if ratio > limit {
		return false, fmt.Sprintf("%s %.2f%% exceeds limit %.2f%%", label, ratio*100, limit*100)
	}
	return true, fmt.Sprintf("%s check passed (%.2f%%)", label, ratio*100)
}
