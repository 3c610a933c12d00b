package domain

import "github.com/shopspring/decimal"

type CapResult struct {
	Allowed    decimal.Decimal
	CapReached bool
}

// ApplyProfitCap truncates a proposed accrual so that earned profit never
// exceeds the cap. Once current+proposed reaches the cap, only the remaining
// headroom is allowed and the cap is reported as reached.
func ApplyProfitCap(current, limit, proposed decimal.Decimal) CapResult {
	if proposed.IsNegative() {
		proposed = decimal.Zero
	}
	if current.Add(proposed).GreaterThanOrEqual(limit) {
		remaining := limit.Sub(current)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		return CapResult{Allowed: remaining, CapReached: true}
	}
	return CapResult{Allowed: proposed, CapReached: false}
}

// ProfitCapFor returns principal × multiplier truncated to the ledger scale.
func ProfitCapFor(principal, multiplier decimal.Decimal) decimal.Decimal {
	return LedgerAmount(principal.Mul(multiplier))
}
