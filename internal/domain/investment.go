package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type InvestmentStatus string

const (
	InvestmentStatusPending   InvestmentStatus = "pending"
	InvestmentStatusActive    InvestmentStatus = "active"
	InvestmentStatusCompleted InvestmentStatus = "completed"
	InvestmentStatusRejected  InvestmentStatus = "rejected"
)

const (
	CompletionCapReached     = "cap_reached"
	CompletionHorizonElapsed = "horizon_elapsed"
)

var allowedTransitions = map[InvestmentStatus][]InvestmentStatus{
	InvestmentStatusPending: {InvestmentStatusActive, InvestmentStatusRejected},
	InvestmentStatusActive:  {InvestmentStatusCompleted},
}

func CanTransition(from, to InvestmentStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InvestmentTerms is the configuration snapshot taken at activation.
type InvestmentTerms struct {
	PlanVersion         int               `json:"plan_version"`
	Variant             ProductVariant    `json:"variant"`
	Phases              []Phase           `json:"phases"`
	MatchingRates       []decimal.Decimal `json:"matching_rates"`
	ProfitCapMultiplier decimal.Decimal   `json:"profit_cap_multiplier"`
	HorizonMonths       int               `json:"horizon_months"`
}

type Investment struct {
	InvestmentID      string           `json:"investment_id"`
	OwnerID           string           `json:"owner_id"`
	ReferrerID        string           `json:"referrer_id,omitempty"`
	BranchID          string           `json:"branch_id,omitempty"`
	Principal         decimal.Decimal  `json:"principal"`
	Variant           ProductVariant   `json:"variant"`
	Status            InvestmentStatus `json:"status"`
	CurrentPhase      int              `json:"current_phase"`
	CurrentRate       decimal.Decimal  `json:"current_rate"`
	PhaseStartedAt    *time.Time       `json:"phase_started_at,omitempty"`
	MonthsCompleted   int              `json:"months_completed"`
	ProfitEarned      decimal.Decimal  `json:"profit_earned"`
	ProfitCap         decimal.Decimal  `json:"profit_cap"`
	Terms             *InvestmentTerms `json:"terms,omitempty"`
	CompletionReason  string           `json:"completion_reason,omitempty"`
	ActivatedAt       *time.Time       `json:"activated_at,omitempty"`
	LastDistributedAt *time.Time       `json:"last_distributed_at,omitempty"`
	MaturesAt         *time.Time       `json:"matures_at,omitempty"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty"`
	RejectedAt        *time.Time       `json:"rejected_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

func ValidateNewInvestment(inv Investment) error {
	if strings.TrimSpace(inv.InvestmentID) == "" || strings.TrimSpace(inv.OwnerID) == "" {
		return fmt.Errorf("%w: investment and owner ids are required", ErrInvalidInput)
	}
	if !inv.Principal.IsPositive() {
		return fmt.Errorf("%w: principal must be positive", ErrInvalidInput)
	}
	if !fitsLedgerScale(inv.Principal) {
		return fmt.Errorf("%w: principal has more than %d decimal places", ErrInvalidInput, LedgerScale)
	}
	if inv.ReferrerID != "" && inv.ReferrerID == inv.OwnerID {
		return fmt.Errorf("%w: an investment cannot refer itself", ErrInvalidInput)
	}
	if _, err := ParseProductVariant(string(inv.Variant)); err != nil {
		return err
	}
	return nil
}

// Activate moves a pending investment into phase 1 under the given terms.
func (i Investment) Activate(terms InvestmentTerms, now time.Time) (Investment, error) {
	if !CanTransition(i.Status, InvestmentStatusActive) {
		return Investment{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, i.Status, InvestmentStatusActive)
	}
	if len(terms.Phases) == 0 {
		return Investment{}, fmt.Errorf("%w: terms carry no phases", ErrInvalidConfiguration)
	}
	first := terms.Phases[0]
	matures := now.AddDate(0, terms.HorizonMonths, 0)
	out := i
	out.Status = InvestmentStatusActive
	out.Terms = &terms
	out.CurrentPhase = first.Number
	out.CurrentRate = first.Rate
	out.PhaseStartedAt = &now
	out.MonthsCompleted = 0
	out.ProfitEarned = decimal.Zero
	out.ProfitCap = ProfitCapFor(i.Principal, terms.ProfitCapMultiplier)
	out.ActivatedAt = &now
	out.MaturesAt = &matures
	out.UpdatedAt = now
	return out, nil
}

func (i Investment) Reject(now time.Time) (Investment, error) {
	if !CanTransition(i.Status, InvestmentStatusRejected) {
		return Investment{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, i.Status, InvestmentStatusRejected)
	}
	out := i
	out.Status = InvestmentStatusRejected
	out.RejectedAt = &now
	out.UpdatedAt = now
	return out, nil
}

// DistributionReference is the instant the next maturity window counts from.
func (i Investment) DistributionReference() time.Time {
	if i.LastDistributedAt != nil {
		return *i.LastDistributedAt
	}
	if i.ActivatedAt != nil {
		return *i.ActivatedAt
	}
	return i.CreatedAt
}

func (i Investment) IsDue(now time.Time, maturity time.Duration) bool {
	if i.Status != InvestmentStatusActive {
		return false
	}
	return now.Sub(i.DistributionReference()) >= maturity
}

type DistributionStep struct {
	Rate         decimal.Decimal
	Proposed     decimal.Decimal
	Allowed      decimal.Decimal
	CapReached   bool
	PhaseChanged bool
	Completed    bool
	Updated      Investment
}

// Accrue computes one profit increment: rate from the current phase, cap
// truncation, phase advance and completion. The receiver is not modified.
// A month whose share truncates to zero below the cap still counts toward
// the phase and the horizon.
func (i Investment) Accrue(now time.Time) (DistributionStep, error) {
	if i.Status != InvestmentStatusActive {
		return DistributionStep{}, fmt.Errorf("%w: investment %s is %s", ErrInvalidTransition, i.InvestmentID, i.Status)
	}
	if i.Terms == nil || len(i.Terms.Phases) == 0 {
		return DistributionStep{}, fmt.Errorf("%w: investment %s has no terms", ErrConfigurationMissing, i.InvestmentID)
	}
	phases := i.Terms.Phases
	phase := PhaseForMonth(phases, i.MonthsCompleted)
	proposed := LedgerAmount(i.Principal.Mul(phase.Rate))
	capped := ApplyProfitCap(i.ProfitEarned, i.ProfitCap, proposed)

	step := DistributionStep{
		Rate:       phase.Rate,
		Proposed:   proposed,
		Allowed:    capped.Allowed,
		CapReached: capped.CapReached,
		Updated:    i,
	}
	next := &step.Updated

	if capped.CapReached && !capped.Allowed.IsPositive() {
		next.complete(CompletionCapReached, now)
		step.Completed = true
		return step, nil
	}

	next.ProfitEarned = i.ProfitEarned.Add(capped.Allowed)
	next.MonthsCompleted = i.MonthsCompleted + 1
	next.LastDistributedAt = &now
	next.UpdatedAt = now

	monthsInPhase := next.MonthsCompleted - MonthsBeforePhase(phases, phase.Number)
	if np, ok := NextPhase(phases, phase.Number, monthsInPhase); ok {
		next.CurrentPhase = np.Number
		next.CurrentRate = np.Rate
		next.PhaseStartedAt = &now
		step.PhaseChanged = true
	}
	switch {
	case capped.CapReached:
		next.complete(CompletionCapReached, now)
		step.Completed = true
	case next.MonthsCompleted >= i.Terms.HorizonMonths:
		next.complete(CompletionHorizonElapsed, now)
		step.Completed = true
	}
	return step, nil
}

func (i *Investment) complete(reason string, now time.Time) {
	i.Status = InvestmentStatusCompleted
	i.CompletionReason = reason
	i.CompletedAt = &now
	i.UpdatedAt = now
}

type InvestmentStatement struct {
	Investment      Investment      `json:"investment"`
	ProfitProgress  decimal.Decimal `json:"profit_progress_pct"`
	TimeProgress    decimal.Decimal `json:"time_progress_pct"`
	RemainingProfit decimal.Decimal `json:"remaining_profit"`
	IsCapReached    bool            `json:"is_cap_reached"`
	NextPhase       *Phase          `json:"next_phase,omitempty"`
	ExpectedProfit  decimal.Decimal `json:"expected_profit"`
}

func (i Investment) Statement() InvestmentStatement {
	hundred := decimal.NewFromInt(100)
	st := InvestmentStatement{
		Investment:      i,
		ProfitProgress:  decimal.Zero,
		TimeProgress:    decimal.Zero,
		RemainingProfit: i.ProfitCap.Sub(i.ProfitEarned),
		ExpectedProfit:  decimal.Zero,
	}
	if st.RemainingProfit.IsNegative() {
		st.RemainingProfit = decimal.Zero
	}
	if i.ProfitCap.IsPositive() {
		st.ProfitProgress = i.ProfitEarned.Div(i.ProfitCap).Mul(hundred).Round(2)
		st.IsCapReached = i.ProfitEarned.GreaterThanOrEqual(i.ProfitCap)
	}
	if i.Terms != nil && i.Terms.HorizonMonths > 0 {
		st.TimeProgress = decimal.NewFromInt(int64(i.MonthsCompleted)).
			Div(decimal.NewFromInt(int64(i.Terms.HorizonMonths))).Mul(hundred).Round(2)
		if i.CurrentPhase < len(i.Terms.Phases) {
			np := i.Terms.Phases[i.CurrentPhase]
			st.NextPhase = &np
		}
		st.ExpectedProfit = ExpectedTotalProfit(i.Terms.Phases, i.Principal)
	}
	return st
}
