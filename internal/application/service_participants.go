package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
)

func (s *Service) RegisterParticipant(ctx context.Context, actor Actor, input RegisterParticipantInput) (domain.Participant, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Participant{}, domain.ErrUnauthorized
	}
	if !actor.operator() {
		return domain.Participant{}, domain.ErrForbidden
	}
	now := s.nowFn()
	participant := domain.Participant{
		ParticipantID: strings.TrimSpace(input.ParticipantID),
		UplineID:      strings.TrimSpace(input.UplineID),
		BranchID:      strings.TrimSpace(input.BranchID),
		Status:        domain.ParticipantStatusActive,
		SelfVolume:    decimal.Zero,
		DirectVolume:  decimal.Zero,
		TotalVolume:   decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := domain.ValidateParticipant(participant); err != nil {
		return domain.Participant{}, err
	}
	if participant.UplineID != "" {
		if _, err := s.participants.GetByID(ctx, participant.UplineID); err != nil {
			return domain.Participant{}, fmt.Errorf("upline %s: %w", participant.UplineID, err)
		}
		cycle, err := s.reachesUp(ctx, participant.UplineID, participant.ParticipantID)
		if err != nil {
			return domain.Participant{}, err
		}
		if cycle {
			return domain.Participant{}, domain.ErrUplineCycle
		}
	}
	if err := s.participants.Create(ctx, participant); err != nil {
		return domain.Participant{}, err
	}
	return participant, nil
}

// ReassignUpline moves a participant under a new upline, rejecting moves that
// would place the participant beneath itself.
func (s *Service) ReassignUpline(ctx context.Context, actor Actor, participantID, uplineID string) (domain.Participant, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Participant{}, domain.ErrUnauthorized
	}
	if !actor.operator() {
		return domain.Participant{}, domain.ErrForbidden
	}
	participantID = strings.TrimSpace(participantID)
	uplineID = strings.TrimSpace(uplineID)
	participant, err := s.participants.GetByID(ctx, participantID)
	if err != nil {
		return domain.Participant{}, err
	}
	if uplineID == participantID {
		return domain.Participant{}, domain.ErrUplineCycle
	}
	if uplineID != "" {
		if _, err := s.participants.GetByID(ctx, uplineID); err != nil {
			return domain.Participant{}, fmt.Errorf("upline %s: %w", uplineID, err)
		}
		cycle, err := s.reachesUp(ctx, uplineID, participantID)
		if err != nil {
			return domain.Participant{}, err
		}
		if cycle {
			return domain.Participant{}, domain.ErrUplineCycle
		}
	}
	now := s.nowFn()
	if err := s.participants.UpdateUpline(ctx, participantID, uplineID, now); err != nil {
		return domain.Participant{}, err
	}
	participant.UplineID = uplineID
	participant.UpdatedAt = now
	return participant, nil
}

func (s *Service) SetParticipantStatus(ctx context.Context, actor Actor, participantID, status string) (domain.Participant, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Participant{}, domain.ErrUnauthorized
	}
	if !actor.operator() {
		return domain.Participant{}, domain.ErrForbidden
	}
	next := domain.ParticipantStatus(strings.ToLower(strings.TrimSpace(status)))
	if next != domain.ParticipantStatusActive && next != domain.ParticipantStatusSuspended {
		return domain.Participant{}, fmt.Errorf("%w: unknown participant status %q", domain.ErrInvalidInput, status)
	}
	participant, err := s.participants.GetByID(ctx, strings.TrimSpace(participantID))
	if err != nil {
		return domain.Participant{}, err
	}
	now := s.nowFn()
	if err := s.participants.UpdateStatus(ctx, participant.ParticipantID, next, now); err != nil {
		return domain.Participant{}, err
	}
	participant.Status = next
	participant.UpdatedAt = now
	return participant, nil
}

func (s *Service) GetParticipant(ctx context.Context, actor Actor, participantID string) (domain.Participant, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Participant{}, domain.ErrUnauthorized
	}
	participantID = strings.TrimSpace(participantID)
	if !actor.operator() && actor.SubjectID != participantID {
		return domain.Participant{}, domain.ErrForbidden
	}
	return s.participants.GetByID(ctx, participantID)
}

// UplineChain returns up to maxDepth ancestors of a participant, nearest first.
func (s *Service) UplineChain(ctx context.Context, actor Actor, participantID string, maxDepth int) ([]domain.Participant, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return nil, domain.ErrUnauthorized
	}
	participantID = strings.TrimSpace(participantID)
	if !actor.operator() && actor.SubjectID != participantID {
		return nil, domain.ErrForbidden
	}
	if _, err := s.participants.GetByID(ctx, participantID); err != nil {
		return nil, err
	}
	if maxDepth <= 0 || maxDepth > 64 {
		maxDepth = 64
	}
	out := make([]domain.Participant, 0, maxDepth)
	err := s.walkChain(ctx, participantID, maxDepth, func(level int, p domain.Participant) error {
		if level > 0 {
			out = append(out, p)
		}
		return nil
	})
	return out, err
}
