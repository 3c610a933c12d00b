package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a decimal string and rejects negative values.
func ParseAmount(raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q", ErrInvalidInput, raw)
	}
	if v.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: amount must not be negative", ErrInvalidInput)
	}
	return v, nil
}

// LedgerScale is the number of decimal places amounts and rates are stored
// with.
const LedgerScale = 8

// LedgerAmount truncates toward zero to LedgerScale so a stored amount never
// exceeds its computed share.
func LedgerAmount(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(LedgerScale)
}

func fitsLedgerScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(LedgerScale))
}

func mustRate(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}

func mustRates(raw ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(raw))
	for _, r := range raw {
		out = append(out, mustRate(r))
	}
	return out
}
