package risk

// Checker validates proposed trade sizes against portfolio aggregates. Checks
// are pure: they hold no per-call state and may be run speculatively before
// any state change is committed.
type Checker interface {
	// CheckPositionSize fails when positionValue is too large a share of portfolioValue.
	CheckPositionSize(portfolioValue, positionValue float64) (bool, string)

	// CheckTotalExposure fails when the aggregate open notional is too large.
	CheckTotalExposure(portfolioValue, totalExposure float64) (bool, string)

	// CheckConcurrency fails when another position cannot be opened.
	CheckConcurrency(activePositions int) (bool, string)

	// Limits returns the policy the checker enforces.
	Limits() Limits
}
