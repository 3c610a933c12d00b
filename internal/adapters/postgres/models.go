package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type participantModel struct {
	ParticipantID string          `gorm:"column:participant_id;primaryKey"`
	UplineID      *string         `gorm:"column:upline_id"`
	BranchID      string          `gorm:"column:branch_id"`
	Status        string          `gorm:"column:status"`
	SelfVolume    decimal.Decimal `gorm:"column:self_volume;type:numeric(24,8)"`
	DirectVolume  decimal.Decimal `gorm:"column:direct_volume;type:numeric(24,8)"`
	TotalVolume   decimal.Decimal `gorm:"column:total_volume;type:numeric(24,8)"`
	RankTier      int             `gorm:"column:rank_tier"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at"`
}

func (participantModel) TableName() string { return "participants" }

type investmentModel struct {
	InvestmentID      string          `gorm:"column:investment_id;primaryKey"`
	OwnerID           string          `gorm:"column:owner_id"`
	ReferrerID        string          `gorm:"column:referrer_id"`
	BranchID          string          `gorm:"column:branch_id"`
	Principal         decimal.Decimal `gorm:"column:principal;type:numeric(24,8)"`
	Variant           string          `gorm:"column:variant"`
	Status            string          `gorm:"column:status"`
	CurrentPhase      int             `gorm:"column:current_phase"`
	CurrentRate       decimal.Decimal `gorm:"column:current_rate;type:numeric(12,8)"`
	PhaseStartedAt    *time.Time      `gorm:"column:phase_started_at"`
	MonthsCompleted   int             `gorm:"column:months_completed"`
	ProfitEarned      decimal.Decimal `gorm:"column:profit_earned;type:numeric(24,8)"`
	ProfitCap         decimal.Decimal `gorm:"column:profit_cap;type:numeric(24,8)"`
	Terms             datatypes.JSON  `gorm:"column:terms;type:jsonb"`
	CompletionReason  string          `gorm:"column:completion_reason"`
	ActivatedAt       *time.Time      `gorm:"column:activated_at"`
	LastDistributedAt *time.Time      `gorm:"column:last_distributed_at"`
	MaturesAt         *time.Time      `gorm:"column:matures_at"`
	CompletedAt       *time.Time      `gorm:"column:completed_at"`
	RejectedAt        *time.Time      `gorm:"column:rejected_at"`
	CreatedAt         time.Time       `gorm:"column:created_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at"`
}

func (investmentModel) TableName() string { return "investments" }

type rewardRecordModel struct {
	RecordID     string          `gorm:"column:record_id;primaryKey"`
	RecipientID  string          `gorm:"column:recipient_id"`
	InvestmentID string          `gorm:"column:investment_id"`
	RewardType   string          `gorm:"column:reward_type"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(24,8)"`
	Level        int             `gorm:"column:level"`
	Rate         decimal.Decimal `gorm:"column:rate;type:numeric(12,8)"`
	BaseAmount   decimal.Decimal `gorm:"column:base_amount;type:numeric(24,8)"`
	CreatedAt    time.Time       `gorm:"column:created_at"`
}

func (rewardRecordModel) TableName() string { return "reward_records" }

type planModel struct {
	PlanID              string              `gorm:"column:plan_id;primaryKey"`
	Scope               string              `gorm:"column:scope"`
	ScopeID             string              `gorm:"column:scope_id"`
	Version             int                 `gorm:"column:version"`
	ReferralRates       datatypes.JSON      `gorm:"column:referral_rates;type:jsonb"`
	MatchingRates       datatypes.JSON      `gorm:"column:matching_rates;type:jsonb"`
	Phases              datatypes.JSON      `gorm:"column:phases;type:jsonb"`
	ProfitCapMultiplier decimal.NullDecimal `gorm:"column:profit_cap_multiplier;type:numeric(12,4)"`
	RankTargets         datatypes.JSON      `gorm:"column:rank_targets;type:jsonb"`
	UpdatedAt           time.Time           `gorm:"column:updated_at"`
}

func (planModel) TableName() string { return "investment_plans" }

type batchRunModel struct {
	RunID      string    `gorm:"column:run_id;primaryKey"`
	JobName    string    `gorm:"column:job_name"`
	Outcome    string    `gorm:"column:outcome"`
	Attempts   int       `gorm:"column:attempts"`
	Processed  int       `gorm:"column:processed"`
	Active     int       `gorm:"column:active"`
	Details    string    `gorm:"column:details"`
	Error      string    `gorm:"column:error"`
	StartedAt  time.Time `gorm:"column:started_at"`
	FinishedAt time.Time `gorm:"column:finished_at"`
}

func (batchRunModel) TableName() string { return "batch_runs" }

type rankClaimModel struct {
	ClaimID       string          `gorm:"column:claim_id;primaryKey"`
	ParticipantID string          `gorm:"column:participant_id"`
	RankID        int             `gorm:"column:rank_id"`
	RankTitle     string          `gorm:"column:rank_title"`
	Status        string          `gorm:"column:status"`
	DirectVolume  decimal.Decimal `gorm:"column:direct_volume;type:numeric(24,8)"`
	TotalVolume   decimal.Decimal `gorm:"column:total_volume;type:numeric(24,8)"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
	DecidedBy     string          `gorm:"column:decided_by"`
	DecidedAt     *time.Time      `gorm:"column:decided_at"`
}

func (rankClaimModel) TableName() string { return "rank_claims" }

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	EventType   string    `gorm:"column:event_type"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (eventDedupModel) TableName() string { return "event_dedup" }

type outboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
}

func (outboxModel) TableName() string { return "investment_outbox" }
