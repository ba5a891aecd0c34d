// Package indicator provides streaming technical indicator calculations.
//
// Every indicator consumes one close price per Update call in O(1) amortized
// time and never re-scans history. The composite Engine bundles the full set
// the signal generators need and reports readiness only once every
// sub-indicator has accumulated its configured period.
package indicator

// Indicator is the interface for scalar streaming indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA", "RSI").
	Name() string

	// Update feeds a new close price and recalculates.
	Update(close float64)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}
