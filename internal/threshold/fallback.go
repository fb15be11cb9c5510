// Package threshold resolves tolerance values for audit queries
// through the scoped rule catalog, with a three-stage fallback chain
// that can never leave a query unanswered.
package threshold

import "github.com/gvern/SOXauto-sub001/internal/contract"

// Hardcoded last-resort tolerances, one per threshold type. These are
// the values the audit methodology ran on before the catalog existed;
// they serve a query only when neither the country's contract nor the
// DEFAULT contract holds a matching rule, and the resolution is
// stamped source=fallback so the evidence trail shows it.
const (
	fallbackBucketAggregate    = 500.0
	fallbackLineItem           = 1000.0
	fallbackCountryMateriality = 50000.0
)

// FallbackValue returns the hardcoded constant for a threshold type.
func FallbackValue(t contract.ThresholdType) float64 {
	switch t {
	case contract.ThresholdBucketAggregate:
		return fallbackBucketAggregate
	case contract.ThresholdLineItem:
		return fallbackLineItem
	case contract.ThresholdCountryMateriality:
		return fallbackCountryMateriality
	default:
		return 0
	}
}
