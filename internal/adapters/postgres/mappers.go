package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/ports"
	"gorm.io/datatypes"
)

func toParticipantModel(p domain.Participant) participantModel {
	var upline *string
	if p.UplineID != "" {
		id := p.UplineID
		upline = &id
	}
	return participantModel{
		ParticipantID: p.ParticipantID,
		UplineID:      upline,
		BranchID:      p.BranchID,
		Status:        string(p.Status),
		SelfVolume:    p.SelfVolume,
		DirectVolume:  p.DirectVolume,
		TotalVolume:   p.TotalVolume,
		RankTier:      p.Rank,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toDomainParticipant(m participantModel) domain.Participant {
	out := domain.Participant{
		ParticipantID: m.ParticipantID,
		BranchID:      m.BranchID,
		Status:        domain.ParticipantStatus(m.Status),
		SelfVolume:    m.SelfVolume,
		DirectVolume:  m.DirectVolume,
		TotalVolume:   m.TotalVolume,
		Rank:          m.RankTier,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.UplineID != nil {
		out.UplineID = *m.UplineID
	}
	return out
}

func toInvestmentModel(inv domain.Investment) (investmentModel, error) {
	var terms datatypes.JSON
	if inv.Terms != nil {
		raw, err := json.Marshal(inv.Terms)
		if err != nil {
			return investmentModel{}, fmt.Errorf("encode investment terms: %w", err)
		}
		terms = datatypes.JSON(raw)
	}
	return investmentModel{
		InvestmentID:      inv.InvestmentID,
		OwnerID:           inv.OwnerID,
		ReferrerID:        inv.ReferrerID,
		BranchID:          inv.BranchID,
		Principal:         inv.Principal,
		Variant:           string(inv.Variant),
		Status:            string(inv.Status),
		CurrentPhase:      inv.CurrentPhase,
		CurrentRate:       inv.CurrentRate,
		PhaseStartedAt:    inv.PhaseStartedAt,
		MonthsCompleted:   inv.MonthsCompleted,
		ProfitEarned:      inv.ProfitEarned,
		ProfitCap:         inv.ProfitCap,
		Terms:             terms,
		CompletionReason:  inv.CompletionReason,
		ActivatedAt:       inv.ActivatedAt,
		LastDistributedAt: inv.LastDistributedAt,
		MaturesAt:         inv.MaturesAt,
		CompletedAt:       inv.CompletedAt,
		RejectedAt:        inv.RejectedAt,
		CreatedAt:         inv.CreatedAt,
		UpdatedAt:         inv.UpdatedAt,
	}, nil
}

// investmentState lists the columns a lifecycle commit rewrites.
func investmentState(m investmentModel) map[string]any {
	return map[string]any{
		"status":              m.Status,
		"current_phase":       m.CurrentPhase,
		"current_rate":        m.CurrentRate,
		"phase_started_at":    m.PhaseStartedAt,
		"months_completed":    m.MonthsCompleted,
		"profit_earned":       m.ProfitEarned,
		"profit_cap":          m.ProfitCap,
		"terms":               m.Terms,
		"completion_reason":   m.CompletionReason,
		"activated_at":        m.ActivatedAt,
		"last_distributed_at": m.LastDistributedAt,
		"matures_at":          m.MaturesAt,
		"completed_at":        m.CompletedAt,
		"rejected_at":         m.RejectedAt,
		"updated_at":          m.UpdatedAt,
	}
}

func toDomainInvestment(m investmentModel) (domain.Investment, error) {
	out := domain.Investment{
		InvestmentID:      m.InvestmentID,
		OwnerID:           m.OwnerID,
		ReferrerID:        m.ReferrerID,
		BranchID:          m.BranchID,
		Principal:         m.Principal,
		Variant:           domain.ProductVariant(m.Variant),
		Status:            domain.InvestmentStatus(m.Status),
		CurrentPhase:      m.CurrentPhase,
		CurrentRate:       m.CurrentRate,
		PhaseStartedAt:    m.PhaseStartedAt,
		MonthsCompleted:   m.MonthsCompleted,
		ProfitEarned:      m.ProfitEarned,
		ProfitCap:         m.ProfitCap,
		CompletionReason:  m.CompletionReason,
		ActivatedAt:       m.ActivatedAt,
		LastDistributedAt: m.LastDistributedAt,
		MaturesAt:         m.MaturesAt,
		CompletedAt:       m.CompletedAt,
		RejectedAt:        m.RejectedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if len(m.Terms) > 0 && string(m.Terms) != "null" {
		var terms domain.InvestmentTerms
		if err := json.Unmarshal(m.Terms, &terms); err != nil {
			return domain.Investment{}, fmt.Errorf("decode terms of %s: %w", m.InvestmentID, err)
		}
		out.Terms = &terms
	}
	return out, nil
}

func toRewardRecordModel(r domain.RewardRecord) rewardRecordModel {
	return rewardRecordModel{
		RecordID:     r.RecordID,
		RecipientID:  r.RecipientID,
		InvestmentID: r.InvestmentID,
		RewardType:   string(r.Type),
		Amount:       r.Amount,
		Level:        r.Level,
		Rate:         r.Rate,
		BaseAmount:   r.BaseAmount,
		CreatedAt:    r.CreatedAt,
	}
}

func toDomainRewardRecord(m rewardRecordModel) domain.RewardRecord {
	return domain.RewardRecord{
		RecordID:     m.RecordID,
		RecipientID:  m.RecipientID,
		InvestmentID: m.InvestmentID,
		Type:         domain.RewardType(m.RewardType),
		Amount:       m.Amount,
		Level:        m.Level,
		Rate:         m.Rate,
		BaseAmount:   m.BaseAmount,
		CreatedAt:    m.CreatedAt,
	}
}

func toDomainPlanOverride(m planModel) (domain.PlanOverride, error) {
	out := domain.PlanOverride{
		PlanID:    m.PlanID,
		Scope:     domain.PlanScope(m.Scope),
		ScopeID:   m.ScopeID,
		Version:   m.Version,
		UpdatedAt: m.UpdatedAt,
	}
	if err := decodeJSONColumn(m.ReferralRates, &out.ReferralRates); err != nil {
		return domain.PlanOverride{}, fmt.Errorf("referral_rates: %w", err)
	}
	if err := decodeJSONColumn(m.MatchingRates, &out.MatchingRates); err != nil {
		return domain.PlanOverride{}, fmt.Errorf("matching_rates: %w", err)
	}
	if err := decodeJSONColumn(m.Phases, &out.Phases); err != nil {
		return domain.PlanOverride{}, fmt.Errorf("phases: %w", err)
	}
	if err := decodeJSONColumn(m.RankTargets, &out.RankTargets); err != nil {
		return domain.PlanOverride{}, fmt.Errorf("rank_targets: %w", err)
	}
	if m.ProfitCapMultiplier.Valid {
		multiplier := m.ProfitCapMultiplier.Decimal
		out.ProfitCapMultiplier = &multiplier
	}
	return out, nil
}

func decodeJSONColumn(raw datatypes.JSON, target any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, target)
}

func toBatchRunModel(r domain.BatchRun) batchRunModel {
	return batchRunModel{
		RunID:      r.RunID,
		JobName:    r.JobName,
		Outcome:    string(r.Outcome),
		Attempts:   r.Attempts,
		Processed:  r.Processed,
		Active:     r.Active,
		Details:    r.Details,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

func toDomainBatchRun(m batchRunModel) domain.BatchRun {
	return domain.BatchRun{
		RunID:      m.RunID,
		JobName:    m.JobName,
		Outcome:    domain.BatchOutcome(m.Outcome),
		Attempts:   m.Attempts,
		Processed:  m.Processed,
		Active:     m.Active,
		Details:    m.Details,
		Error:      m.Error,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
	}
}

func toDomainRankClaim(m rankClaimModel) domain.RankClaim {
	return domain.RankClaim{
		ClaimID:       m.ClaimID,
		ParticipantID: m.ParticipantID,
		RankID:        m.RankID,
		RankTitle:     m.RankTitle,
		Status:        domain.RankClaimStatus(m.Status),
		DirectVolume:  m.DirectVolume,
		TotalVolume:   m.TotalVolume,
		CreatedAt:     m.CreatedAt,
		DecidedBy:     m.DecidedBy,
		DecidedAt:     m.DecidedAt,
	}
}

func toOutboxModels(events []ports.OutboxEvent) []outboxModel {
	out := make([]outboxModel, 0, len(events))
	for _, e := range events {
		out = append(out, outboxModel{
			OutboxID:     e.EventID,
			EventType:    e.EventType,
			PartitionKey: e.PartitionKey,
			Payload:      string(e.Payload),
			CreatedAt:    e.OccurredAt,
		})
	}
	return out
}
