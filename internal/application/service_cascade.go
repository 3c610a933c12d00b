package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
)

// cascade walks the owner's upline chain for len(rates) levels and emits one
// ledger record per upline whose share base×rate is positive. Level k pays
// rates[k-1]. Zero-rate levels are skipped without ending the walk.
func (s *Service) cascade(
	ctx context.Context,
	investment domain.Investment,
	rewardType domain.RewardType,
	base decimal.Decimal,
	rates []decimal.Decimal,
	now time.Time,
) ([]domain.RewardRecord, error) {
	if !base.IsPositive() || len(rates) == 0 {
		return nil, nil
	}
	var records []domain.RewardRecord
	err := s.walkChain(ctx, investment.OwnerID, len(rates), func(level int, upline domain.Participant) error {
		if level == 0 {
			return nil
		}
		rate := rates[level-1]
		amount := domain.LedgerAmount(base.Mul(rate))
		if !amount.IsPositive() {
			return nil
		}
		records = append(records, domain.RewardRecord{
			RecordID:     uuid.NewString(),
			RecipientID:  upline.ParticipantID,
			InvestmentID: investment.InvestmentID,
			Type:         rewardType,
			Amount:       amount,
			Level:        level,
			Rate:         rate,
			BaseAmount:   base,
			CreatedAt:    now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// referralBonuses is the instant cascade paid on principal at activation.
func (s *Service) referralBonuses(ctx context.Context, investment domain.Investment, plan domain.Plan, now time.Time) ([]domain.RewardRecord, error) {
	return s.cascade(ctx, investment, domain.RewardTypeReferralBonus, investment.Principal, plan.ReferralRates, now)
}

// matchingBonuses is the recurring cascade paid on each capped profit increment.
func (s *Service) matchingBonuses(ctx context.Context, investment domain.Investment, increment decimal.Decimal, now time.Time) ([]domain.RewardRecord, error) {
	if investment.Terms == nil {
		return nil, nil
	}
	return s.cascade(ctx, investment, domain.RewardTypeMatchingBonus, increment, investment.Terms.MatchingRates, now)
}

func (s *Service) recordRewardMetrics(records []domain.RewardRecord) {
	for _, r := range records {
		s.metrics.RewardRecorded(r.Type, r.Amount)
	}
}
