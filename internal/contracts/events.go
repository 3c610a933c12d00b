package contracts

import (
	"encoding/json"
	"time"
)

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	EventClass       string          `json:"event_class,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    string          `json:"schema_version"`
	Data             json.RawMessage `json:"data"`
}

type SaleApprovedPayload struct {
	InvestmentID string `json:"investment_id"`
	ApprovedBy   string `json:"approved_by,omitempty"`
	ApprovedAt   string `json:"approved_at,omitempty"`
}

type SaleRejectedPayload struct {
	InvestmentID string `json:"investment_id"`
	Reason       string `json:"reason,omitempty"`
}

type InvestmentActivatedPayload struct {
	InvestmentID  string `json:"investment_id"`
	OwnerID       string `json:"owner_id"`
	Principal     string `json:"principal"`
	Variant       string `json:"variant"`
	ProfitCap     string `json:"profit_cap"`
	PlanVersion   int    `json:"plan_version"`
	ReferralCount int    `json:"referral_bonus_count"`
	ActivatedAt   string `json:"activated_at"`
}

type InvestmentRejectedPayload struct {
	InvestmentID string `json:"investment_id"`
	OwnerID      string `json:"owner_id"`
	RejectedAt   string `json:"rejected_at"`
}

type InvestmentDistributedPayload struct {
	InvestmentID    string `json:"investment_id"`
	OwnerID         string `json:"owner_id"`
	Amount          string `json:"amount"`
	Rate            string `json:"rate"`
	Phase           int    `json:"phase"`
	MonthsCompleted int    `json:"months_completed"`
	ProfitEarned    string `json:"profit_earned"`
	MatchingCount   int    `json:"matching_bonus_count"`
	DistributedAt   string `json:"distributed_at"`
}

type InvestmentCompletedPayload struct {
	InvestmentID string `json:"investment_id"`
	OwnerID      string `json:"owner_id"`
	ProfitEarned string `json:"profit_earned"`
	Reason       string `json:"reason"`
	CompletedAt  string `json:"completed_at"`
}

type RankClaimDecidedPayload struct {
	ClaimID       string `json:"claim_id"`
	ParticipantID string `json:"participant_id"`
	RankID        int    `json:"rank_id"`
	Status        string `json:"status"`
	DecidedBy     string `json:"decided_by"`
	DecidedAt     string `json:"decided_at"`
}

type ParticipantRankChangedPayload struct {
	ParticipantID string `json:"participant_id"`
	PreviousRank  int    `json:"previous_rank"`
	Rank          int    `json:"rank"`
	ChangedAt     string `json:"changed_at"`
}
