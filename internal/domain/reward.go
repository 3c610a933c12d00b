package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RewardType string

const (
	RewardTypeProfitShare   RewardType = "profit_share"
	RewardTypeMatchingBonus RewardType = "matching_bonus"
	RewardTypeReferralBonus RewardType = "referral_bonus"
)

func ParseRewardType(raw string) (RewardType, bool) {
	switch RewardType(raw) {
	case RewardTypeProfitShare, RewardTypeMatchingBonus, RewardTypeReferralBonus:
		return RewardType(raw), true
	default:
		return "", false
	}
}

// RewardRecord is an immutable ledger entry.
type RewardRecord struct {
	RecordID     string          `json:"record_id"`
	RecipientID  string          `json:"recipient_id"`
	InvestmentID string          `json:"investment_id"`
	Type         RewardType      `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	Level        int             `json:"level"`
	Rate         decimal.Decimal `json:"rate"`
	BaseAmount   decimal.Decimal `json:"base_amount"`
	CreatedAt    time.Time       `json:"created_at"`
}

type RewardSummary struct {
	RecipientID string                         `json:"recipient_id"`
	ByType      map[RewardType]decimal.Decimal `json:"by_type"`
	Total       decimal.Decimal                `json:"total"`
	Count       int                            `json:"count"`
}

func SummarizeRewards(recipientID string, records []RewardRecord) RewardSummary {
	out := RewardSummary{
		RecipientID: recipientID,
		ByType: map[RewardType]decimal.Decimal{
			RewardTypeProfitShare:   decimal.Zero,
			RewardTypeMatchingBonus: decimal.Zero,
			RewardTypeReferralBonus: decimal.Zero,
		},
		Total: decimal.Zero,
	}
	for _, r := range records {
		out.ByType[r.Type] = out.ByType[r.Type].Add(r.Amount)
		out.Total = out.Total.Add(r.Amount)
		out.Count++
	}
	return out
}
