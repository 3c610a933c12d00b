package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ParticipantStatus string

const (
	ParticipantStatusActive    ParticipantStatus = "active"
	ParticipantStatusSuspended ParticipantStatus = "suspended"
)

type Participant struct {
	ParticipantID string            `json:"participant_id"`
	UplineID      string            `json:"upline_id,omitempty"`
	BranchID      string            `json:"branch_id,omitempty"`
	Status        ParticipantStatus `json:"status"`
	SelfVolume    decimal.Decimal   `json:"self_volume"`
	DirectVolume  decimal.Decimal   `json:"direct_volume"`
	TotalVolume   decimal.Decimal   `json:"total_volume"`
	Rank          int               `json:"rank"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func (p Participant) Active() bool {
	return p.Status != ParticipantStatusSuspended
}

func ValidateParticipant(p Participant) error {
	if strings.TrimSpace(p.ParticipantID) == "" {
		return fmt.Errorf("%w: participant id is required", ErrInvalidInput)
	}
	if p.UplineID == p.ParticipantID {
		return fmt.Errorf("%w: participant cannot be its own upline", ErrUplineCycle)
	}
	switch p.Status {
	case ParticipantStatusActive, ParticipantStatusSuspended:
	default:
		return fmt.Errorf("%w: unknown participant status %q", ErrInvalidInput, p.Status)
	}
	return nil
}

// VolumeDelta is an atomic increment applied to a participant's counters.
type VolumeDelta struct {
	ParticipantID string
	Self          decimal.Decimal
	Direct        decimal.Decimal
	Total         decimal.Decimal
}

// ActivationVolumes attributes principal to the owner (self), its direct
// upline (direct) and every ancestor (total). uplines is ordered nearest first.
func ActivationVolumes(ownerID string, uplines []string, principal decimal.Decimal) []VolumeDelta {
	out := make([]VolumeDelta, 0, len(uplines)+1)
	out = append(out, VolumeDelta{ParticipantID: ownerID, Self: principal, Direct: decimal.Zero, Total: decimal.Zero})
	for idx, id := range uplines {
		d := VolumeDelta{ParticipantID: id, Self: decimal.Zero, Direct: decimal.Zero, Total: principal}
		if idx == 0 {
			d.Direct = principal
		}
		out = append(out, d)
	}
	return out
}
