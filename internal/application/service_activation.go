package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/ports"
)

// SubmitInvestment records a pending investment awaiting approval.
func (s *Service) SubmitInvestment(ctx context.Context, actor Actor, input SubmitInvestmentInput) (domain.Investment, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Investment{}, domain.ErrUnauthorized
	}
	if !actor.operator() {
		return domain.Investment{}, domain.ErrForbidden
	}
	variant, err := domain.ParseProductVariant(input.Variant)
	if err != nil {
		return domain.Investment{}, err
	}
	investmentID := strings.TrimSpace(input.InvestmentID)
	if investmentID == "" {
		investmentID = uuid.NewString()
	}
	now := s.nowFn()
	investment := domain.Investment{
		InvestmentID: investmentID,
		OwnerID:      strings.TrimSpace(input.OwnerID),
		ReferrerID:   strings.TrimSpace(input.ReferrerID),
		BranchID:     strings.TrimSpace(input.BranchID),
		Principal:    input.Principal,
		Variant:      variant,
		Status:       domain.InvestmentStatusPending,
		CurrentRate:  decimal.Zero,
		ProfitEarned: decimal.Zero,
		ProfitCap:    decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := domain.ValidateNewInvestment(investment); err != nil {
		return domain.Investment{}, err
	}
	owner, err := s.participants.GetByID(ctx, investment.OwnerID)
	if err != nil {
		return domain.Investment{}, fmt.Errorf("owner %s: %w", investment.OwnerID, err)
	}
	if investment.ReferrerID != "" {
		if _, err := s.participants.GetByID(ctx, investment.ReferrerID); err != nil {
			return domain.Investment{}, fmt.Errorf("referrer %s: %w", investment.ReferrerID, err)
		}
	}
	if investment.BranchID == "" {
		investment.BranchID = owner.BranchID
	}
	if err := s.investments.Create(ctx, investment); err != nil {
		return domain.Investment{}, err
	}
	return investment, nil
}

// ActivateInvestment approves a pending investment: it freezes the effective
// plan into the investment's terms, enters phase 1, pays the instant referral
// cascade on principal, credits business volume and re-evaluates ranks.
func (s *Service) ActivateInvestment(ctx context.Context, actor Actor, investmentID string) (domain.Investment, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Investment{}, domain.ErrUnauthorized
	}
	if !actor.operator() {
		return domain.Investment{}, domain.ErrForbidden
	}
	investment, err := s.investments.GetByID(ctx, strings.TrimSpace(investmentID))
	if err != nil {
		return domain.Investment{}, err
	}
	if investment.Status != domain.InvestmentStatusPending {
		err := fmt.Errorf("%w: investment %s is %s", domain.ErrInvalidTransition, investment.InvestmentID, investment.Status)
		s.logActivation(ctx, investment, "rejected", err)
		return domain.Investment{}, err
	}
	owner, err := s.participants.GetByID(ctx, investment.OwnerID)
	if err != nil {
		return domain.Investment{}, fmt.Errorf("owner %s: %w", investment.OwnerID, err)
	}
	branchID := investment.BranchID
	if branchID == "" {
		branchID = owner.BranchID
	}
	plan, err := s.ResolvePlan(ctx, owner.ParticipantID, branchID)
	if err != nil {
		return domain.Investment{}, err
	}
	terms, err := plan.TermsFor(investment.Variant)
	if err != nil {
		return domain.Investment{}, err
	}

	now := s.nowFn()
	activated, err := investment.Activate(terms, now)
	if err != nil {
		return domain.Investment{}, err
	}
	referrals, err := s.referralBonuses(ctx, activated, plan, now)
	if err != nil {
		return domain.Investment{}, fmt.Errorf("referral cascade: %w", err)
	}
	volumeOwner := volumeParticipant(activated)
	uplines, err := s.uplineIDs(ctx, volumeOwner)
	if err != nil {
		return domain.Investment{}, fmt.Errorf("collect uplines: %w", err)
	}

	commit := ports.ActivationCommit{
		Investment: activated,
		Rewards:    referrals,
		Volumes:    domain.ActivationVolumes(volumeOwner, uplines, activated.Principal),
		Events: []ports.OutboxEvent{
			s.newOutboxEvent(domain.EventInvestmentActivated, activated.InvestmentID, now, contracts.InvestmentActivatedPayload{
				InvestmentID:  activated.InvestmentID,
				OwnerID:       activated.OwnerID,
				Principal:     activated.Principal.String(),
				Variant:       string(activated.Variant),
				ProfitCap:     activated.ProfitCap.String(),
				PlanVersion:   terms.PlanVersion,
				ReferralCount: len(referrals),
				ActivatedAt:   now.Format(time.RFC3339),
			}),
		},
	}
	if err := s.investments.CommitActivation(ctx, commit); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			s.logActivation(ctx, investment, "rejected", err)
		}
		return domain.Investment{}, err
	}
	s.metrics.InvestmentActivated(activated.Variant)
	s.recordRewardMetrics(referrals)
	s.logActivation(ctx, activated, "success", nil)

	if _, err := s.EvaluateRanks(ctx, volumeOwner, activated.Variant, plan.RankTargets); err != nil {
		s.logger.ErrorContext(ctx, "rank evaluation failed after activation",
			"module", "application.activation",
			"layer", "application",
			"operation", "evaluate_ranks",
			"outcome", "failure",
			"investment_id", activated.InvestmentID,
			"participant_id", volumeOwner,
			"error", err,
		)
	}
	return activated, nil
}

func (s *Service) RejectInvestment(ctx context.Context, actor Actor, investmentID string) (domain.Investment, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Investment{}, domain.ErrUnauthorized
	}
	if !actor.operator() {
		return domain.Investment{}, domain.ErrForbidden
	}
	investment, err := s.investments.GetByID(ctx, strings.TrimSpace(investmentID))
	if err != nil {
		return domain.Investment{}, err
	}
	now := s.nowFn()
	rejected, err := investment.Reject(now)
	if err != nil {
		return domain.Investment{}, err
	}
	events := []ports.OutboxEvent{
		s.newOutboxEvent(domain.EventInvestmentRejected, rejected.InvestmentID, now, contracts.InvestmentRejectedPayload{
			InvestmentID: rejected.InvestmentID,
			OwnerID:      rejected.OwnerID,
			RejectedAt:   now.Format(time.RFC3339),
		}),
	}
	if err := s.investments.CommitRejection(ctx, rejected, events); err != nil {
		return domain.Investment{}, err
	}
	return rejected, nil
}

// volumeParticipant is the participant credited with self volume: the
// referring participant when present, otherwise the owner.
func volumeParticipant(investment domain.Investment) string {
	if investment.ReferrerID != "" {
		return investment.ReferrerID
	}
	return investment.OwnerID
}

func (s *Service) logActivation(ctx context.Context, investment domain.Investment, outcome string, err error) {
	attrs := []any{
		"module", "application.activation",
		"layer", "application",
		"operation", "activate_investment",
		"outcome", outcome,
		"investment_id", investment.InvestmentID,
		"owner_id", investment.OwnerID,
		"status", investment.Status,
	}
	if err != nil {
		s.logger.WarnContext(ctx, "investment activation refused", append(attrs, "error", err)...)
		return
	}
	s.logger.InfoContext(ctx, "investment activated", attrs...)
}
