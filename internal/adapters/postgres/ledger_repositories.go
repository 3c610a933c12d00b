package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type rewardRepository struct {
	db *gorm.DB
}

func (r *rewardRepository) ListByRecipient(ctx context.Context, recipientID string, rewardType domain.RewardType, limit, offset int) ([]domain.RewardRecord, int, error) {
	q := r.db.WithContext(ctx).Model(&rewardRecordModel{}).Where("recipient_id = ?", recipientID)
	if rewardType != "" {
		q = q.Where("reward_type = ?", string(rewardType))
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []rewardRecordModel
	if err := q.Order("created_at DESC, record_id DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]domain.RewardRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainRewardRecord(row))
	}
	return out, int(total), nil
}

func (r *rewardRepository) ListByInvestment(ctx context.Context, investmentID string) ([]domain.RewardRecord, error) {
	var rows []rewardRecordModel
	if err := r.db.WithContext(ctx).
		Where("investment_id = ?", investmentID).
		Order("created_at ASC, reward_type ASC, level ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.RewardRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainRewardRecord(row))
	}
	return out, nil
}

type rewardTotalRow struct {
	RewardType string
	Amount     decimal.Decimal
	Records    int
}

func (r *rewardRepository) Summarize(ctx context.Context, recipientID string) (domain.RewardSummary, error) {
	var rows []rewardTotalRow
	if err := r.db.WithContext(ctx).
		Model(&rewardRecordModel{}).
		Select("reward_type, COALESCE(SUM(amount), 0) AS amount, COUNT(*) AS records").
		Where("recipient_id = ?", recipientID).
		Group("reward_type").
		Scan(&rows).Error; err != nil {
		return domain.RewardSummary{}, err
	}
	summary := domain.SummarizeRewards(recipientID, nil)
	for _, row := range rows {
		kind := domain.RewardType(row.RewardType)
		summary.ByType[kind] = summary.ByType[kind].Add(row.Amount)
		summary.Total = summary.Total.Add(row.Amount)
		summary.Count += row.Records
	}
	return summary, nil
}

type planRepository struct {
	db *gorm.DB
}

func (r *planRepository) Get(ctx context.Context, scope domain.PlanScope, scopeID string) (domain.PlanOverride, error) {
	var row planModel
	err := r.db.WithContext(ctx).
		Where("scope = ? AND scope_id = ?", string(scope), scopeID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.PlanOverride{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PlanOverride{}, err
	}
	override, err := toDomainPlanOverride(row)
	if err != nil {
		return domain.PlanOverride{}, fmt.Errorf("%w: plan %s/%s: %v", domain.ErrInvalidConfiguration, scope, scopeID, err)
	}
	return override, nil
}

type batchRunRepository struct {
	db *gorm.DB
}

func (r *batchRunRepository) Append(ctx context.Context, run domain.BatchRun) error {
	row := toBatchRunModel(run)
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *batchRunRepository) List(ctx context.Context, jobName string, limit int) ([]domain.BatchRun, error) {
	q := r.db.WithContext(ctx).Model(&batchRunModel{})
	if jobName != "" {
		q = q.Where("job_name = ?", jobName)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []batchRunModel
	if err := q.Order("started_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.BatchRun, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainBatchRun(row))
	}
	return out, nil
}

type rankClaimRepository struct {
	db *gorm.DB
}

func (r *rankClaimRepository) Create(ctx context.Context, claim domain.RankClaim) error {
	row := rankClaimModel{
		ClaimID:       claim.ClaimID,
		ParticipantID: claim.ParticipantID,
		RankID:        claim.RankID,
		RankTitle:     claim.RankTitle,
		Status:        string(claim.Status),
		DirectVolume:  claim.DirectVolume,
		TotalVolume:   claim.TotalVolume,
		CreatedAt:     claim.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *rankClaimRepository) ListByParticipant(ctx context.Context, participantID string) ([]domain.RankClaim, error) {
	var rows []rankClaimModel
	if err := r.db.WithContext(ctx).
		Where("participant_id = ?", participantID).
		Order("rank_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.RankClaim, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainRankClaim(row))
	}
	return out, nil
}

func (r *rankClaimRepository) GetByID(ctx context.Context, claimID string) (domain.RankClaim, error) {
	var row rankClaimModel
	err := r.db.WithContext(ctx).Where("claim_id = ?", claimID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.RankClaim{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RankClaim{}, err
	}
	return toDomainRankClaim(row), nil
}

func (r *rankClaimRepository) List(ctx context.Context, status domain.RankClaimStatus, limit, offset int) ([]domain.RankClaim, error) {
	q := r.db.WithContext(ctx).Model(&rankClaimModel{})
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	var rows []rankClaimModel
	if err := q.Order("created_at ASC, claim_id ASC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.RankClaim, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainRankClaim(row))
	}
	return out, nil
}

func (r *rankClaimRepository) CommitDecision(ctx context.Context, claim domain.RankClaim, events []ports.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&rankClaimModel{}).
			Where("claim_id = ?", claim.ClaimID).
			Where("status = ?", string(domain.RankClaimPending)).
			Updates(map[string]any{
				"status":     string(claim.Status),
				"decided_by": claim.DecidedBy,
				"decided_at": claim.DecidedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&rankClaimModel{}).Where("claim_id = ?", claim.ClaimID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.ErrNotFound
			}
			return domain.ErrInvalidTransition
		}
		return enqueueOutbox(tx, events)
	})
}

type eventDedupRepository struct {
	db *gorm.DB
}

func (r *eventDedupRepository) IsDuplicate(ctx context.Context, eventID string, now time.Time) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&eventDedupModel{}).
		Where("event_id = ? AND expires_at > ?", eventID, now).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *eventDedupRepository) MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error {
	row := eventDedupModel{
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: time.Now().UTC(),
		ExpiresAt:   expiresAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"event_type", "processed_at", "expires_at"}),
	}).Create(&row).Error
}
