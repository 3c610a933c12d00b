package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/ports"
)

// ResolvePlan merges the global, branch and participant tiers into the
// effective configuration. Missing tiers are skipped; a merge that leaves
// required fields unset fails with domain.ErrConfigurationMissing.
func (s *Service) ResolvePlan(ctx context.Context, participantID, branchID string) (domain.Plan, error) {
	global, err := s.loadTier(ctx, domain.PlanScopeGlobal, domain.GlobalScopeID)
	if err != nil {
		return domain.Plan{}, err
	}
	var branch, participant *domain.PlanOverride
	if id := strings.TrimSpace(branchID); id != "" {
		if branch, err = s.loadTier(ctx, domain.PlanScopeBranch, id); err != nil {
			return domain.Plan{}, err
		}
	}
	if id := strings.TrimSpace(participantID); id != "" {
		if participant, err = s.loadTier(ctx, domain.PlanScopeParticipant, id); err != nil {
			return domain.Plan{}, err
		}
	}
	plan, err := domain.MergePlan(global, branch, participant)
	if err != nil {
		s.logger.ErrorContext(ctx, "plan resolution failed",
			"module", "application.plans",
			"layer", "application",
			"operation", "resolve_plan",
			"outcome", "failure",
			"participant_id", participantID,
			"branch_id", branchID,
			"error", err,
		)
		return domain.Plan{}, err
	}
	return plan, nil
}

func (s *Service) DescribePlan(ctx context.Context, actor Actor, participantID, branchID string) (PlanDescription, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return PlanDescription{}, domain.ErrUnauthorized
	}
	if !actor.operator() && participantID != "" && participantID != actor.SubjectID {
		return PlanDescription{}, domain.ErrForbidden
	}
	plan, err := s.ResolvePlan(ctx, participantID, branchID)
	if err != nil {
		return PlanDescription{}, err
	}
	out := PlanDescription{Plan: plan}
	for _, variant := range []domain.ProductVariant{domain.VariantWithoutProduct, domain.VariantWithProduct} {
		phases, err := plan.PhasesFor(variant)
		if err != nil {
			return PlanDescription{}, err
		}
		out.Variants = append(out.Variants, PlanVariantSummary{
			Variant:             variant,
			Phases:              phases,
			HorizonMonths:       domain.HorizonMonths(phases),
			TotalReturnFraction: domain.TotalReturnFraction(phases),
			SamplePrincipal:     s.cfg.SamplePrincipal,
			SampleProfit:        domain.ExpectedTotalProfit(phases, s.cfg.SamplePrincipal),
			SampleProfitCap:     domain.ProfitCapFor(s.cfg.SamplePrincipal, plan.ProfitCapMultiplier),
		})
	}
	return out, nil
}

func (s *Service) loadTier(ctx context.Context, scope domain.PlanScope, scopeID string) (*domain.PlanOverride, error) {
	if err := domain.ValidatePlanScope(scope, scopeID); err != nil {
		return nil, err
	}
	if s.planCache != nil {
		cached, ok, err := s.planCache.Get(ctx, scope, scopeID)
		if err != nil {
			s.logger.WarnContext(ctx, "plan cache read failed",
				"module", "application.plans",
				"layer", "application",
				"operation", "plan_cache_get",
				"outcome", "failure",
				"scope", scope,
				"scope_id", scopeID,
				"error", err,
			)
		} else if ok {
			if !cached.Found {
				return nil, nil
			}
			override := cached.Override
			return &override, nil
		}
	}

	override, err := s.plans.Get(ctx, scope, scopeID)
	tier := ports.CachedPlanTier{Found: true, Override: override}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		tier = ports.CachedPlanTier{Found: false}
	case err != nil:
		return nil, fmt.Errorf("load %s plan %s: %w", scope, scopeID, err)
	}
	if s.planCache != nil {
		if err := s.planCache.Set(ctx, scope, scopeID, tier, s.cfg.PlanCacheTTL); err != nil {
			s.logger.WarnContext(ctx, "plan cache write failed",
				"module", "application.plans",
				"layer", "application",
				"operation", "plan_cache_set",
				"outcome", "failure",
				"scope", scope,
				"scope_id", scopeID,
				"error", err,
			)
		}
	}
	if !tier.Found {
		return nil, nil
	}
	return &override, nil
}
