package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Investments  *investmentRepository
	Participants *participantRepository
	Rewards      *rewardRepository
	Plans        *planRepository
	BatchRuns    *batchRunRepository
	Claims       *rankClaimRepository
	EventDedup   *eventDedupRepository
	Outbox       *outboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Investments:  &investmentRepository{db: db},
		Participants: &participantRepository{db: db},
		Rewards:      &rewardRepository{db: db},
		Plans:        &planRepository{db: db},
		BatchRuns:    &batchRunRepository{db: db},
		Claims:       &rankClaimRepository{db: db},
		EventDedup:   &eventDedupRepository{db: db},
		Outbox:       &outboxRepository{db: db},
	}
}

type investmentRepository struct {
	db *gorm.DB
}

func (r *investmentRepository) Create(ctx context.Context, investment domain.Investment) error {
	row, err := toInvestmentModel(investment)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *investmentRepository) GetByID(ctx context.Context, investmentID string) (domain.Investment, error) {
	var row investmentModel
	err := r.db.WithContext(ctx).Where("investment_id = ?", investmentID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Investment{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Investment{}, err
	}
	return toDomainInvestment(row)
}

func (r *investmentRepository) ListByStatus(ctx context.Context, status domain.InvestmentStatus) ([]domain.Investment, error) {
	var rows []investmentModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("created_at ASC, investment_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainInvestments(rows)
}

func (r *investmentRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Investment, int, error) {
	var total int64
	q := r.db.WithContext(ctx).Model(&investmentModel{}).Where("owner_id = ?", ownerID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []investmentModel
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	items, err := toDomainInvestments(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}

func toDomainInvestments(rows []investmentModel) ([]domain.Investment, error) {
	out := make([]domain.Investment, 0, len(rows))
	for _, row := range rows {
		item, err := toDomainInvestment(row)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *investmentRepository) CommitActivation(ctx context.Context, commit ports.ActivationCommit) error {
	row, err := toInvestmentModel(commit.Investment)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&investmentModel{}).
			Where("investment_id = ?", row.InvestmentID).
			Where("status = ?", string(domain.InvestmentStatusPending)).
			Updates(investmentState(row))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return missingOr(tx, row.InvestmentID, domain.ErrInvalidTransition)
		}
		if err := insertRewards(tx, commit.Rewards); err != nil {
			return err
		}
		for _, delta := range commit.Volumes {
			if err := tx.Model(&participantModel{}).
				Where("participant_id = ?", delta.ParticipantID).
				Updates(map[string]any{
					"self_volume":   gorm.Expr("self_volume + ?", delta.Self),
					"direct_volume": gorm.Expr("direct_volume + ?", delta.Direct),
					"total_volume":  gorm.Expr("total_volume + ?", delta.Total),
					"updated_at":    row.UpdatedAt,
				}).Error; err != nil {
				return fmt.Errorf("increment volume of %s: %w", delta.ParticipantID, err)
			}
		}
		return enqueueOutbox(tx, commit.Events)
	})
}

func (r *investmentRepository) CommitDistribution(ctx context.Context, commit ports.DistributionCommit) error {
	row, err := toInvestmentModel(commit.Investment)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&investmentModel{}).
			Where("investment_id = ?", row.InvestmentID).
			Where("status = ?", string(domain.InvestmentStatusActive))
		if commit.PreviousDistributedAt == nil {
			q = q.Where("last_distributed_at IS NULL")
		} else {
			q = q.Where("last_distributed_at = ?", *commit.PreviousDistributedAt)
		}
		res := q.Updates(investmentState(row))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return missingOr(tx, row.InvestmentID, domain.ErrConflict)
		}
		if err := insertRewards(tx, commit.Rewards); err != nil {
			return err
		}
		return enqueueOutbox(tx, commit.Events)
	})
}

func (r *investmentRepository) CommitRejection(ctx context.Context, investment domain.Investment, events []ports.OutboxEvent) error {
	row, err := toInvestmentModel(investment)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&investmentModel{}).
			Where("investment_id = ?", row.InvestmentID).
			Where("status = ?", string(domain.InvestmentStatusPending)).
			Updates(investmentState(row))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return missingOr(tx, row.InvestmentID, domain.ErrInvalidTransition)
		}
		return enqueueOutbox(tx, events)
	})
}

// missingOr tells a vanished row apart from a failed compare-and-set.
func missingOr(tx *gorm.DB, investmentID string, casErr error) error {
	var count int64
	if err := tx.Model(&investmentModel{}).Where("investment_id = ?", investmentID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return casErr
}

func insertRewards(tx *gorm.DB, rewards []domain.RewardRecord) error {
	if len(rewards) == 0 {
		return nil
	}
	rows := make([]rewardRecordModel, 0, len(rewards))
	for _, rec := range rewards {
		rows = append(rows, toRewardRecordModel(rec))
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("insert reward records: %w", err)
	}
	return nil
}

type participantRepository struct {
	db *gorm.DB
}

func (r *participantRepository) Create(ctx context.Context, participant domain.Participant) error {
	row := toParticipantModel(participant)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *participantRepository) GetByID(ctx context.Context, participantID string) (domain.Participant, error) {
	var row participantModel
	err := r.db.WithContext(ctx).Where("participant_id = ?", participantID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Participant{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Participant{}, err
	}
	return toDomainParticipant(row), nil
}

func (r *participantRepository) UpdateUpline(ctx context.Context, participantID, uplineID string, at time.Time) error {
	var upline any
	if uplineID != "" {
		upline = uplineID
	}
	return r.update(ctx, participantID, map[string]any{
		"upline_id":  upline,
		"updated_at": at,
	})
}

func (r *participantRepository) UpdateStatus(ctx context.Context, participantID string, status domain.ParticipantStatus, at time.Time) error {
	return r.update(ctx, participantID, map[string]any{
		"status":     string(status),
		"updated_at": at,
	})
}

func (r *participantRepository) update(ctx context.Context, participantID string, values map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&participantModel{}).
		Where("participant_id = ?", participantID).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *participantRepository) AdvanceRank(ctx context.Context, advance ports.RankAdvance) (bool, error) {
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&participantModel{}).
			Where("participant_id = ?", advance.ParticipantID).
			Where("rank_tier < ?", advance.Rank).
			Updates(map[string]any{
				"rank_tier":  advance.Rank,
				"updated_at": advance.At,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&participantModel{}).Where("participant_id = ?", advance.ParticipantID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.ErrNotFound
			}
			return nil
		}
		changed = true
		return enqueueOutbox(tx, []ports.OutboxEvent{advance.Event})
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}
