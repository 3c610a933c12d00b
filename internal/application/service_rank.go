package application

import (
	"context"
	"fmt"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/ports"
)

type RankChange struct {
	ParticipantID string
	PreviousRank  int
	Rank          int
}

// EvaluateRanks re-evaluates participantID and every ancestor above it
// against the rank targets, without a depth limit. Ranks only move up.
func (s *Service) EvaluateRanks(ctx context.Context, participantID string, variant domain.ProductVariant, targets []domain.RankTarget) ([]RankChange, error) {
	var changes []RankChange
	now := s.nowFn()
	err := s.walkChain(ctx, participantID, 0, func(_ int, p domain.Participant) error {
		next := domain.QualifiedRank(p.Rank, p.DirectVolume, p.TotalVolume, targets, variant)
		if next <= p.Rank {
			return nil
		}
		changed, err := s.participants.AdvanceRank(ctx, ports.RankAdvance{
			ParticipantID: p.ParticipantID,
			Rank:          next,
			At:            now,
			Event: s.newOutboxEvent(domain.EventParticipantRankChanged, p.ParticipantID, now, contracts.ParticipantRankChangedPayload{
				ParticipantID: p.ParticipantID,
				PreviousRank:  p.Rank,
				Rank:          next,
				ChangedAt:     now.Format(time.RFC3339),
			}),
		})
		if err != nil {
			return fmt.Errorf("advance rank for %s: %w", p.ParticipantID, err)
		}
		if !changed {
			return nil
		}
		s.metrics.RankAdvanced(next)
		s.logger.InfoContext(ctx, "participant rank advanced",
			"module", "application.rank",
			"layer", "application",
			"operation", "evaluate_ranks",
			"outcome", "success",
			"participant_id", p.ParticipantID,
			"previous_rank", p.Rank,
			"rank", next,
		)
		changes = append(changes, RankChange{ParticipantID: p.ParticipantID, PreviousRank: p.Rank, Rank: next})
		return nil
	})
	if err != nil {
		return changes, err
	}
	return changes, nil
}
