package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
)

var errStopWalk = errors.New("stop walk")

// walkChain visits startID (level 0) and then its uplines (level 1, 2, ...)
// following one parent pointer per step. It stops at a root, a dangling
// pointer, a participant already visited, or after maxLevels uplines when
// maxLevels > 0. visit may return errStopWalk to end the walk early.
func (s *Service) walkChain(ctx context.Context, startID string, maxLevels int, visit func(level int, p domain.Participant) error) error {
	visited := make(map[string]struct{})
	cursor := strings.TrimSpace(startID)
	for level := 0; cursor != ""; level++ {
		if maxLevels > 0 && level > maxLevels {
			return nil
		}
		if _, seen := visited[cursor]; seen {
			s.metrics.UplineCycleDetected()
			s.logger.WarnContext(ctx, "upline cycle detected; walk stopped",
				"module", "application.graph",
				"layer", "application",
				"operation", "walk_chain",
				"outcome", "failure",
				"start_id", startID,
				"participant_id", cursor,
				"level", level,
			)
			return nil
		}
		visited[cursor] = struct{}{}

		participant, err := s.participants.GetByID(ctx, cursor)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load participant %s: %w", cursor, err)
		}
		if err := visit(level, participant); err != nil {
			if errors.Is(err, errStopWalk) {
				return nil
			}
			return err
		}
		cursor = strings.TrimSpace(participant.UplineID)
	}
	return nil
}

// uplineIDs lists every ancestor of participantID, nearest first.
func (s *Service) uplineIDs(ctx context.Context, participantID string) ([]string, error) {
	var out []string
	err := s.walkChain(ctx, participantID, 0, func(level int, p domain.Participant) error {
		if level > 0 {
			out = append(out, p.ParticipantID)
		}
		return nil
	})
	return out, err
}

// reachesUp reports whether target appears on the upline chain of startID,
// startID included.
func (s *Service) reachesUp(ctx context.Context, startID, target string) (bool, error) {
	found := false
	err := s.walkChain(ctx, startID, 0, func(_ int, p domain.Participant) error {
		if p.ParticipantID == target {
			found = true
			return errStopWalk
		}
		return nil
	})
	return found, err
}
