package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PlanScope string

const (
	PlanScopeGlobal      PlanScope = "global"
	PlanScopeBranch      PlanScope = "branch"
	PlanScopeParticipant PlanScope = "participant"
)

const GlobalScopeID = "global"

type ProductVariant string

const (
	VariantWithProduct    ProductVariant = "with_product"
	VariantWithoutProduct ProductVariant = "without_product"
)

var productVariants = []ProductVariant{VariantWithProduct, VariantWithoutProduct}

func ParseProductVariant(raw string) (ProductVariant, error) {
	switch ProductVariant(strings.ToLower(strings.TrimSpace(raw))) {
	case VariantWithProduct:
		return VariantWithProduct, nil
	case VariantWithoutProduct, "":
		return VariantWithoutProduct, nil
	default:
		return "", fmt.Errorf("%w: unknown product variant %q", ErrInvalidInput, raw)
	}
}

type RankThreshold struct {
	Direct decimal.Decimal `json:"direct"`
	Total  decimal.Decimal `json:"total"`
}

// Met reports whether either counter reaches its requirement.
func (t RankThreshold) Met(direct, total decimal.Decimal) bool {
	return direct.GreaterThanOrEqual(t.Direct) || total.GreaterThanOrEqual(t.Total)
}

type RankTarget struct {
	RankID         int           `json:"rank_id"`
	Title          string        `json:"title"`
	WithoutProduct RankThreshold `json:"without_product"`
	WithProduct    RankThreshold `json:"with_product"`
}

func (t RankTarget) ThresholdFor(variant ProductVariant) RankThreshold {
	if variant == VariantWithProduct {
		return t.WithProduct
	}
	return t.WithoutProduct
}

// PlanOverride is one tier of the configuration hierarchy. Empty slices,
// absent phase variants and a nil multiplier inherit from the tier below.
type PlanOverride struct {
	PlanID              string
	Scope               PlanScope
	ScopeID             string
	Version             int
	ReferralRates       []decimal.Decimal
	MatchingRates       []decimal.Decimal
	Phases              map[ProductVariant][]Phase
	ProfitCapMultiplier *decimal.Decimal
	RankTargets         []RankTarget
	UpdatedAt           time.Time
}

// Plan is a fully resolved configuration.
type Plan struct {
	Version             int                        `json:"version"`
	Sources             []PlanScope                `json:"sources"`
	ReferralRates       []decimal.Decimal          `json:"referral_rates"`
	MatchingRates       []decimal.Decimal          `json:"matching_rates"`
	Phases              map[ProductVariant][]Phase `json:"phases"`
	ProfitCapMultiplier decimal.Decimal            `json:"profit_cap_multiplier"`
	RankTargets         []RankTarget               `json:"rank_targets"`
}

// MergePlan overlays the given tiers in order (global, branch, participant),
// later tiers winning field by field. Nil tiers are skipped.
func MergePlan(tiers ...*PlanOverride) (Plan, error) {
	plan := Plan{Phases: map[ProductVariant][]Phase{}}
	for _, tier := range tiers {
		if tier == nil {
			continue
		}
		plan.Sources = append(plan.Sources, tier.Scope)
		if tier.Version > plan.Version {
			plan.Version = tier.Version
		}
		if len(tier.ReferralRates) > 0 {
			plan.ReferralRates = append([]decimal.Decimal(nil), tier.ReferralRates...)
		}
		if len(tier.MatchingRates) > 0 {
			plan.MatchingRates = append([]decimal.Decimal(nil), tier.MatchingRates...)
		}
		for variant, phases := range tier.Phases {
			if len(phases) > 0 {
				plan.Phases[variant] = append([]Phase(nil), phases...)
			}
		}
		if tier.ProfitCapMultiplier != nil {
			plan.ProfitCapMultiplier = *tier.ProfitCapMultiplier
		}
		if len(tier.RankTargets) > 0 {
			plan.RankTargets = append([]RankTarget(nil), tier.RankTargets...)
		}
	}

	var missing []string
	if len(plan.ReferralRates) == 0 {
		missing = append(missing, "referral_rates")
	}
	if len(plan.MatchingRates) == 0 {
		missing = append(missing, "matching_rates")
	}
	for _, variant := range productVariants {
		if len(plan.Phases[variant]) == 0 {
			missing = append(missing, "phases."+string(variant))
		}
	}
	if !plan.ProfitCapMultiplier.IsPositive() {
		missing = append(missing, "profit_cap_multiplier")
	}
	if len(plan.RankTargets) == 0 {
		missing = append(missing, "rank_targets")
	}
	if len(missing) > 0 {
		return Plan{}, fmt.Errorf("%w: %s", ErrConfigurationMissing, strings.Join(missing, ", "))
	}
	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func (p Plan) Validate() error {
	if len(p.ReferralRates) != len(p.MatchingRates) {
		return fmt.Errorf("%w: referral and matching rate tables differ in length (%d vs %d)",
			ErrInvalidConfiguration, len(p.ReferralRates), len(p.MatchingRates))
	}
	for i, r := range append(append([]decimal.Decimal(nil), p.ReferralRates...), p.MatchingRates...) {
		if !validRate(r) {
			return fmt.Errorf("%w: bonus rate #%d out of range: %s", ErrInvalidConfiguration, i+1, r)
		}
	}
	for variant, phases := range p.Phases {
		if err := ValidatePhases(phases); err != nil {
			return fmt.Errorf("%s: %w", variant, err)
		}
	}
	if !p.ProfitCapMultiplier.IsPositive() {
		return fmt.Errorf("%w: profit cap multiplier must be positive", ErrInvalidConfiguration)
	}
	prev := 0
	for _, target := range p.RankTargets {
		if target.RankID <= prev {
			return fmt.Errorf("%w: rank targets must be strictly ascending (rank %d after %d)",
				ErrInvalidConfiguration, target.RankID, prev)
		}
		prev = target.RankID
	}
	return nil
}

func (p Plan) PhasesFor(variant ProductVariant) ([]Phase, error) {
	phases, ok := p.Phases[variant]
	if !ok || len(phases) == 0 {
		return nil, fmt.Errorf("%w: no phases for variant %s", ErrConfigurationMissing, variant)
	}
	return phases, nil
}

func (p Plan) RankTarget(rankID int) (RankTarget, bool) {
	for _, t := range p.RankTargets {
		if t.RankID == rankID {
			return t, true
		}
	}
	return RankTarget{}, false
}

// TermsFor freezes the parts of the plan an investment of the given variant
// depends on for its whole life.
func (p Plan) TermsFor(variant ProductVariant) (InvestmentTerms, error) {
	phases, err := p.PhasesFor(variant)
	if err != nil {
		return InvestmentTerms{}, err
	}
	return InvestmentTerms{
		PlanVersion:         p.Version,
		Variant:             variant,
		Phases:              append([]Phase(nil), phases...),
		MatchingRates:       append([]decimal.Decimal(nil), p.MatchingRates...),
		ProfitCapMultiplier: p.ProfitCapMultiplier,
		HorizonMonths:       HorizonMonths(phases),
	}, nil
}

func validRate(r decimal.Decimal) bool {
	return !r.IsNegative() && r.LessThan(decimal.NewFromInt(1)) && fitsLedgerScale(r)
}

// ValidatePlanScope checks a scope and id pair before a tier lookup.
func ValidatePlanScope(scope PlanScope, scopeID string) error {
	switch scope {
	case PlanScopeGlobal:
		return nil
	case PlanScopeBranch, PlanScopeParticipant:
		if strings.TrimSpace(scopeID) == "" {
			return fmt.Errorf("%w: %s scope requires a scope id", ErrInvalidInput, scope)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown plan scope %q", ErrInvalidInput, scope)
	}
}

var rankTitles = []string{
	"Sales Executive",
	"Sales Officer",
	"Sales Manager",
	"Regional Sales Manager",
	"Regional Director",
	"Zonal Head",
	"Director",
	"Ambassador",
}

// DefaultPlanOverride is the seed for the global tier.
func DefaultPlanOverride() PlanOverride {
	multiplier := decimal.NewFromInt(5)
	base := decimal.NewFromInt(1_500_000)
	targets := make([]RankTarget, 0, len(rankTitles))
	step := base
	for i, title := range rankTitles {
		targets = append(targets, RankTarget{
			RankID: i + 1,
			Title:  title,
			WithoutProduct: RankThreshold{
				Direct: step,
				Total:  step.Mul(decimal.NewFromInt(2)),
			},
			WithProduct: RankThreshold{
				Direct: step.Mul(decimal.NewFromInt(2)),
				Total:  step.Mul(decimal.NewFromInt(4)),
			},
		})
		step = step.Mul(decimal.NewFromInt(3))
	}
	return PlanOverride{
		Scope:         PlanScopeGlobal,
		ScopeID:       GlobalScopeID,
		Version:       1,
		ReferralRates: mustRates("0.06", "0.025", "0.02", "0.015", "0.015", "0.01", "0.01", "0.005"),
		MatchingRates: mustRates("0.06", "0.05", "0.04", "0.03", "0.03", "0.02", "0.02", "0.01"),
		Phases: map[ProductVariant][]Phase{
			VariantWithProduct: {
				{Number: 1, Months: 4, Rate: mustRate("0.05")},
				{Number: 2, Months: 4, Rate: mustRate("0.06")},
				{Number: 3, Months: 4, Rate: mustRate("0.07")},
			},
			VariantWithoutProduct: {
				{Number: 1, Months: 3, Rate: mustRate("0.07")},
				{Number: 2, Months: 3, Rate: mustRate("0.08")},
				{Number: 3, Months: 3, Rate: mustRate("0.09")},
				{Number: 4, Months: 3, Rate: mustRate("0.10")},
			},
		},
		ProfitCapMultiplier: &multiplier,
		RankTargets:         targets,
	}
}
