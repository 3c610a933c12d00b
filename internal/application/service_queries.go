package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/ports"
)

func (s *Service) GetInvestment(ctx context.Context, actor Actor, investmentID string) (domain.Investment, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Investment{}, domain.ErrUnauthorized
	}
	investment, err := s.investments.GetByID(ctx, strings.TrimSpace(investmentID))
	if err != nil {
		return domain.Investment{}, err
	}
	if !actor.operator() && investment.OwnerID != actor.SubjectID {
		return domain.Investment{}, domain.ErrForbidden
	}
	return investment, nil
}

// GetInvestmentStatement reports progress towards the cap and the horizon.
func (s *Service) GetInvestmentStatement(ctx context.Context, actor Actor, investmentID string) (domain.InvestmentStatement, error) {
	investment, err := s.GetInvestment(ctx, actor, investmentID)
	if err != nil {
		return domain.InvestmentStatement{}, err
	}
	return investment.Statement(), nil
}

func (s *Service) ListInvestments(ctx context.Context, actor Actor, ownerID string, limit, offset int) (InvestmentList, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return InvestmentList{}, domain.ErrUnauthorized
	}
	ownerID = strings.TrimSpace(ownerID)
	if !actor.operator() || ownerID == "" {
		ownerID = actor.SubjectID
	}
	limit, offset = normalizePage(limit, offset)
	items, total, err := s.investments.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return InvestmentList{}, err
	}
	return InvestmentList{Items: items, Total: total}, nil
}

func (s *Service) ListRewards(ctx context.Context, actor Actor, recipientID, rewardType string, limit, offset int) (RewardList, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return RewardList{}, domain.ErrUnauthorized
	}
	recipientID = strings.TrimSpace(recipientID)
	if !actor.operator() || recipientID == "" {
		recipientID = actor.SubjectID
	}
	var typ domain.RewardType
	if raw := strings.TrimSpace(rewardType); raw != "" {
		parsed, ok := domain.ParseRewardType(raw)
		if !ok {
			return RewardList{}, fmt.Errorf("%w: unknown reward type %q", domain.ErrInvalidInput, raw)
		}
		typ = parsed
	}
	limit, offset = normalizePage(limit, offset)
	items, total, err := s.rewards.ListByRecipient(ctx, recipientID, typ, limit, offset)
	if err != nil {
		return RewardList{}, err
	}
	return RewardList{Items: items, Total: total}, nil
}

func (s *Service) ListInvestmentRewards(ctx context.Context, actor Actor, investmentID string) ([]domain.RewardRecord, error) {
	if _, err := s.GetInvestment(ctx, actor, investmentID); err != nil {
		return nil, err
	}
	return s.rewards.ListByInvestment(ctx, strings.TrimSpace(investmentID))
}

func (s *Service) RewardSummary(ctx context.Context, actor Actor, recipientID string) (domain.RewardSummary, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.RewardSummary{}, domain.ErrUnauthorized
	}
	recipientID = strings.TrimSpace(recipientID)
	if !actor.operator() || recipientID == "" {
		recipientID = actor.SubjectID
	}
	return s.rewards.Summarize(ctx, recipientID)
}

func (s *Service) ListBatchRuns(ctx context.Context, actor Actor, limit int) ([]domain.BatchRun, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return nil, domain.ErrUnauthorized
	}
	if !actor.operator() {
		return nil, domain.ErrForbidden
	}
	limit, _ = normalizePage(limit, 0)
	return s.batchRuns.List(ctx, domain.DistributionJobName, limit)
}

// ClaimRankGift files a one-time gift claim for a rank. A participant is
// eligible when its direct volume meets the rank's direct requirement or its
// total volume meets the total requirement.
func (s *Service) ClaimRankGift(ctx context.Context, actor Actor, participantID string, rankID int) (domain.RankClaim, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.RankClaim{}, domain.ErrUnauthorized
	}
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		participantID = actor.SubjectID
	}
	if !actor.operator() && participantID != actor.SubjectID {
		return domain.RankClaim{}, domain.ErrForbidden
	}
	participant, err := s.participants.GetByID(ctx, participantID)
	if err != nil {
		return domain.RankClaim{}, err
	}
	plan, err := s.ResolvePlan(ctx, participant.ParticipantID, participant.BranchID)
	if err != nil {
		return domain.RankClaim{}, err
	}
	target, ok := plan.RankTarget(rankID)
	if !ok {
		return domain.RankClaim{}, fmt.Errorf("%w: unknown rank %d", domain.ErrInvalidInput, rankID)
	}
	threshold := target.ThresholdFor(domain.VariantWithoutProduct)
	if !threshold.Met(participant.DirectVolume, participant.TotalVolume) {
		return domain.RankClaim{}, fmt.Errorf("%w: rank %d requires direct volume %s or total volume %s (have %s / %s)",
			domain.ErrNotEligible, rankID, threshold.Direct, threshold.Total, participant.DirectVolume, participant.TotalVolume)
	}
	claim := domain.RankClaim{
		ClaimID:       uuid.NewString(),
		ParticipantID: participant.ParticipantID,
		RankID:        target.RankID,
		RankTitle:     target.Title,
		Status:        domain.RankClaimPending,
		DirectVolume:  participant.DirectVolume,
		TotalVolume:   participant.TotalVolume,
		CreatedAt:     s.nowFn(),
	}
	if err := s.claims.Create(ctx, claim); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.RankClaim{}, fmt.Errorf("%w: rank %d already claimed", domain.ErrConflict, rankID)
		}
		return domain.RankClaim{}, err
	}
	return claim, nil
}

func (s *Service) ListRankClaims(ctx context.Context, actor Actor, participantID string) ([]domain.RankClaim, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return nil, domain.ErrUnauthorized
	}
	participantID = strings.TrimSpace(participantID)
	if !actor.operator() || participantID == "" {
		participantID = actor.SubjectID
	}
	return s.claims.ListByParticipant(ctx, participantID)
}

// ListAllRankClaims is the operator review queue, optionally filtered by status.
func (s *Service) ListAllRankClaims(ctx context.Context, actor Actor, status string, limit, offset int) ([]domain.RankClaim, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return nil, domain.ErrUnauthorized
	}
	if !actor.operator() {
		return nil, domain.ErrForbidden
	}
	var filter domain.RankClaimStatus
	switch st := domain.RankClaimStatus(strings.ToLower(strings.TrimSpace(status))); st {
	case "":
	case domain.RankClaimPending, domain.RankClaimApproved, domain.RankClaimRejected:
		filter = st
	default:
		return nil, fmt.Errorf("%w: unknown claim status %q", domain.ErrInvalidInput, status)
	}
	limit, offset = normalizePage(limit, offset)
	return s.claims.List(ctx, filter, limit, offset)
}

// DecideRankClaim approves or rejects a pending rank gift claim.
func (s *Service) DecideRankClaim(ctx context.Context, actor Actor, claimID, status string) (domain.RankClaim, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.RankClaim{}, domain.ErrUnauthorized
	}
	if !actor.operator() {
		return domain.RankClaim{}, domain.ErrForbidden
	}
	decision, err := domain.ParseRankClaimDecision(status)
	if err != nil {
		return domain.RankClaim{}, err
	}
	claim, err := s.claims.GetByID(ctx, strings.TrimSpace(claimID))
	if err != nil {
		return domain.RankClaim{}, err
	}
	now := s.nowFn()
	decided, err := claim.Decide(decision, actor.SubjectID, now)
	if err != nil {
		return domain.RankClaim{}, err
	}
	event := s.newOutboxEvent(domain.EventRankClaimDecided, decided.ParticipantID, now, contracts.RankClaimDecidedPayload{
		ClaimID:       decided.ClaimID,
		ParticipantID: decided.ParticipantID,
		RankID:        decided.RankID,
		Status:        string(decided.Status),
		DecidedBy:     decided.DecidedBy,
		DecidedAt:     now.Format(time.RFC3339),
	})
	if err := s.claims.CommitDecision(ctx, decided, []ports.OutboxEvent{event}); err != nil {
		return domain.RankClaim{}, err
	}
	s.logger.InfoContext(ctx, "rank claim decided",
		"module", "application.claims",
		"layer", "application",
		"operation", "decide_rank_claim",
		"outcome", "success",
		"claim_id", decided.ClaimID,
		"participant_id", decided.ParticipantID,
		"status", decided.Status,
		"request_id", actor.RequestID,
	)
	return decided, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
