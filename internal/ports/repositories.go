package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
)

// ActivationCommit is applied atomically: the pending→active compare-and-set,
// the referral bonus ledger rows, the volume increments and the outbox events.
type ActivationCommit struct {
	Investment domain.Investment
	Rewards    []domain.RewardRecord
	Volumes    []domain.VolumeDelta
	Events     []OutboxEvent
}

// DistributionCommit is applied atomically and only if the stored investment
// is still active with LastDistributedAt equal to PreviousDistributedAt.
// A mismatch yields domain.ErrConflict.
type DistributionCommit struct {
	Investment            domain.Investment
	PreviousDistributedAt *time.Time
	Rewards               []domain.RewardRecord
	Events                []OutboxEvent
}

type RankAdvance struct {
	ParticipantID string
	Rank          int
	At            time.Time
	Event         OutboxEvent
}

type InvestmentRepository interface {
	Create(ctx context.Context, investment domain.Investment) error
	GetByID(ctx context.Context, investmentID string) (domain.Investment, error)
	ListByStatus(ctx context.Context, status domain.InvestmentStatus) ([]domain.Investment, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Investment, int, error)
	CommitActivation(ctx context.Context, commit ActivationCommit) error
	CommitDistribution(ctx context.Context, commit DistributionCommit) error
	CommitRejection(ctx context.Context, investment domain.Investment, events []OutboxEvent) error
}

type ParticipantRepository interface {
	Create(ctx context.Context, participant domain.Participant) error
	GetByID(ctx context.Context, participantID string) (domain.Participant, error)
	UpdateUpline(ctx context.Context, participantID, uplineID string, at time.Time) error
	UpdateStatus(ctx context.Context, participantID string, status domain.ParticipantStatus, at time.Time) error
	// AdvanceRank raises the stored rank if it is currently lower, enqueueing
	// the event in the same write, and reports whether a row changed.
	AdvanceRank(ctx context.Context, advance RankAdvance) (bool, error)
}

type RewardRepository interface {
	ListByRecipient(ctx context.Context, recipientID string, rewardType domain.RewardType, limit, offset int) ([]domain.RewardRecord, int, error)
	ListByInvestment(ctx context.Context, investmentID string) ([]domain.RewardRecord, error)
	Summarize(ctx context.Context, recipientID string) (domain.RewardSummary, error)
}

// PlanRepository reads configuration tiers. Writes happen outside the engine.
type PlanRepository interface {
	Get(ctx context.Context, scope domain.PlanScope, scopeID string) (domain.PlanOverride, error)
}

type BatchRunRepository interface {
	Append(ctx context.Context, run domain.BatchRun) error
	List(ctx context.Context, jobName string, limit int) ([]domain.BatchRun, error)
}

type RankClaimRepository interface {
	Create(ctx context.Context, claim domain.RankClaim) error
	ListByParticipant(ctx context.Context, participantID string) ([]domain.RankClaim, error)
	GetByID(ctx context.Context, claimID string) (domain.RankClaim, error)
	// List returns claims oldest first; an empty status matches every claim.
	List(ctx context.Context, status domain.RankClaimStatus, limit, offset int) ([]domain.RankClaim, error)
	// CommitDecision stores a decided claim with its outbox events only while
	// the stored row is still pending, else ErrInvalidTransition.
	CommitDecision(ctx context.Context, claim domain.RankClaim, events []OutboxEvent) error
}

type EventDedupRepository interface {
	IsDuplicate(ctx context.Context, eventID string, now time.Time) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error
}

// OutboxEvent is the write-side event payload prior to storage.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

type OutboxRepository interface {
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
