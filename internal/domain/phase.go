package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Phase struct {
	Number int             `json:"number"`
	Months int             `json:"months"`
	Rate   decimal.Decimal `json:"rate"`
}

// ValidatePhases checks that phases are numbered 1..k in order with
// positive lengths and rates in [0,1).
func ValidatePhases(phases []Phase) error {
	if len(phases) == 0 {
		return fmt.Errorf("%w: at least one phase is required", ErrInvalidConfiguration)
	}
	for i, p := range phases {
		if p.Number != i+1 {
			return fmt.Errorf("%w: phase #%d has number %d", ErrInvalidConfiguration, i+1, p.Number)
		}
		if p.Months <= 0 {
			return fmt.Errorf("%w: phase %d must last at least one month", ErrInvalidConfiguration, p.Number)
		}
		// A zero-rate phase would never accrue and never advance.
		if !p.Rate.IsPositive() || !validRate(p.Rate) {
			return fmt.Errorf("%w: phase %d rate must be in (0, 1): %s", ErrInvalidConfiguration, p.Number, p.Rate)
		}
	}
	return nil
}

func HorizonMonths(phases []Phase) int {
	total := 0
	for _, p := range phases {
		total += p.Months
	}
	return total
}

// PhaseForMonth maps elapsed months to the phase covering them. Months past
// the horizon clamp to the last phase.
func PhaseForMonth(phases []Phase, elapsed int) Phase {
	if len(phases) == 0 {
		return Phase{}
	}
	if elapsed < 0 {
		elapsed = 0
	}
	boundary := 0
	for _, p := range phases {
		boundary += p.Months
		if elapsed < boundary {
			return p
		}
	}
	return phases[len(phases)-1]
}

// PhaseByNumber returns the phase with the given number, clamped into range.
func PhaseByNumber(phases []Phase, number int) Phase {
	if len(phases) == 0 {
		return Phase{}
	}
	if number < 1 {
		return phases[0]
	}
	if number > len(phases) {
		return phases[len(phases)-1]
	}
	return phases[number-1]
}

// MonthsBeforePhase sums the lengths of the phases preceding number.
func MonthsBeforePhase(phases []Phase, number int) int {
	total := 0
	for _, p := range phases {
		if p.Number >= number {
			break
		}
		total += p.Months
	}
	return total
}

// NextPhase reports the phase to move into once monthsInPhase months have
// been completed in the current one. It returns false when no transition is
// due or the current phase is the last.
func NextPhase(phases []Phase, current, monthsInPhase int) (Phase, bool) {
	phase := PhaseByNumber(phases, current)
	if monthsInPhase < phase.Months {
		return Phase{}, false
	}
	if phase.Number >= len(phases) {
		return Phase{}, false
	}
	return phases[phase.Number], true
}

// TotalReturnFraction is Σ months × rate across all phases.
func TotalReturnFraction(phases []Phase) decimal.Decimal {
	total := decimal.Zero
	for _, p := range phases {
		total = total.Add(p.Rate.Mul(decimal.NewFromInt(int64(p.Months))))
	}
	return total
}

// ExpectedTotalProfit is the uncapped profit a principal earns over the horizon.
func ExpectedTotalProfit(phases []Phase, principal decimal.Decimal) decimal.Decimal {
	return principal.Mul(TotalReturnFraction(phases))
}
