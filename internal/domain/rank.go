package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// QualifiedRank returns the highest rank reachable from current by walking
// targets in ascending order and stopping at the first unmet threshold.
// The result is never below current.
func QualifiedRank(current int, direct, total decimal.Decimal, targets []RankTarget, variant ProductVariant) int {
	rank := current
	for _, target := range targets {
		if target.RankID <= current {
			continue
		}
		if !target.ThresholdFor(variant).Met(direct, total) {
			break
		}
		rank = target.RankID
	}
	return rank
}

type RankClaimStatus string

const (
	RankClaimPending  RankClaimStatus = "pending"
	RankClaimApproved RankClaimStatus = "approved"
	RankClaimRejected RankClaimStatus = "rejected"
)

type RankClaim struct {
	ClaimID       string          `json:"claim_id"`
	ParticipantID string          `json:"participant_id"`
	RankID        int             `json:"rank_id"`
	RankTitle     string          `json:"rank_title"`
	Status        RankClaimStatus `json:"status"`
	DirectVolume  decimal.Decimal `json:"direct_volume"`
	TotalVolume   decimal.Decimal `json:"total_volume"`
	CreatedAt     time.Time       `json:"created_at"`
	DecidedBy     string          `json:"decided_by,omitempty"`
	DecidedAt     *time.Time      `json:"decided_at,omitempty"`
}

// ParseRankClaimDecision accepts only the terminal claim statuses.
func ParseRankClaimDecision(raw string) (RankClaimStatus, error) {
	switch RankClaimStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case RankClaimApproved:
		return RankClaimApproved, nil
	case RankClaimRejected:
		return RankClaimRejected, nil
	default:
		return "", fmt.Errorf("%w: claim status must be approved or rejected, got %q", ErrInvalidInput, raw)
	}
}

// Decide moves a pending claim to its final status.
func (c RankClaim) Decide(status RankClaimStatus, decidedBy string, at time.Time) (RankClaim, error) {
	if c.Status != RankClaimPending {
		return RankClaim{}, fmt.Errorf("%w: claim %s is already %s", ErrInvalidTransition, c.ClaimID, c.Status)
	}
	c.Status = status
	c.DecidedBy = decidedBy
	c.DecidedAt = &at
	return c, nil
}
