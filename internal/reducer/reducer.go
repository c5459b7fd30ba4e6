// Package reducer holds the state transitions that derive the materialized
// view from decoded contract events. Every operation is idempotent under
// re-delivery: ledger inserts are keyed by log coordinates and gate the
// aggregate increments, while snapshot fields are overwritten from the
// event payload rather than incremented.
package reducer

import "math/big"

// bigOrZero guards against nil amount fields in decoded events.
func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
