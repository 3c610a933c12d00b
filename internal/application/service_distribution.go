package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/retry"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/ports"
)

// RunDistributionBatch advances every due active investment by one profit
// increment. Investments are processed one after another. A failed attempt
// is retried as a whole after a fixed delay; exhausting the attempts is
// recorded in the batch run log and is not returned as an error.
func (s *Service) RunDistributionBatch(ctx context.Context) (BatchRunResult, error) {
	started := s.nowFn()
	runID := uuid.NewString()

	if s.runLock != nil {
		release, acquired, err := s.runLock.TryAcquire(ctx, domain.DistributionJobName, s.cfg.RunLockTTL)
		if err != nil {
			return BatchRunResult{}, fmt.Errorf("acquire run lock: %w", err)
		}
		if !acquired {
			run := domain.BatchRun{
				RunID:      runID,
				JobName:    domain.DistributionJobName,
				Outcome:    domain.BatchOutcomeSkipped,
				Details:    "another distribution run holds the lock",
				StartedAt:  started,
				FinishedAt: s.nowFn(),
			}
			return s.finishBatch(ctx, run)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.WarnContext(ctx, "run lock release failed",
					"module", "application.distribution",
					"layer", "application",
					"operation", "release_run_lock",
					"outcome", "failure",
					"run_id", runID,
					"error", err,
				)
			}
		}()
	}

	s.logger.InfoContext(ctx, "distribution batch started",
		"module", "application.distribution",
		"layer", "application",
		"operation", "run_distribution_batch",
		"outcome", "start",
		"run_id", runID,
	)

	attempt := 0
	processed, active := 0, 0
	callErr := retry.Call(retry.CallArgs{
		Func: func() error {
			attempt++
			var err error
			processed, active, err = s.distributionAttempt(ctx, runID)
			return err
		},
		IsFatalError: func(err error) bool {
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		NotifyFunc: func(err error, n int) {
			s.logger.WarnContext(ctx, "distribution attempt failed",
				"module", "application.distribution",
				"layer", "application",
				"operation", "distribution_attempt",
				"outcome", "failure",
				"run_id", runID,
				"attempt", n,
				"max_attempts", s.cfg.BatchMaxAttempts,
				"error", err,
			)
		},
		Attempts: s.cfg.BatchMaxAttempts,
		Delay:    s.cfg.BatchRetryDelay,
		Clock:    s.clock,
		Stop:     ctx.Done(),
	})

	run := domain.BatchRun{
		RunID:      runID,
		JobName:    domain.DistributionJobName,
		Attempts:   attempt,
		Processed:  processed,
		Active:     active,
		StartedAt:  started,
		FinishedAt: s.nowFn(),
	}
	if callErr == nil {
		run.Outcome = domain.BatchOutcomeSuccess
		run.Details = domain.BatchRunDetails(processed, active, attempt)
	} else {
		cause := callErr
		if retry.IsAttemptsExceeded(callErr) || retry.IsRetryStopped(callErr) {
			cause = retry.LastError(callErr)
		}
		run.Outcome = domain.BatchOutcomeFailed
		run.Details = fmt.Sprintf("distribution failed after %d attempt(s)", attempt)
		run.Error = cause.Error()
	}
	return s.finishBatch(ctx, run)
}

// TriggerDistributionBatch runs the batch on operator request.
func (s *Service) TriggerDistributionBatch(ctx context.Context, actor Actor) (BatchRunResult, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return BatchRunResult{}, domain.ErrUnauthorized
	}
	if !actor.operator() {
		return BatchRunResult{}, domain.ErrForbidden
	}
	return s.RunDistributionBatch(ctx)
}

func (s *Service) finishBatch(ctx context.Context, run domain.BatchRun) (BatchRunResult, error) {
	s.metrics.BatchRunFinished(run.Outcome, run.Attempts, run.Processed, run.FinishedAt.Sub(run.StartedAt))
	attrs := []any{
		"module", "application.distribution",
		"layer", "application",
		"operation", "run_distribution_batch",
		"outcome", string(run.Outcome),
		"run_id", run.RunID,
		"attempts", run.Attempts,
		"processed", run.Processed,
		"active", run.Active,
	}
	if run.Outcome == domain.BatchOutcomeFailed {
		s.logger.ErrorContext(ctx, "distribution batch failed", append(attrs, "error", run.Error)...)
	} else {
		s.logger.InfoContext(ctx, "distribution batch finished", attrs...)
	}
	if err := s.batchRuns.Append(context.WithoutCancel(ctx), run); err != nil {
		return BatchRunResult{Run: run}, fmt.Errorf("append batch run: %w", err)
	}
	return BatchRunResult{Run: run}, nil
}

func (s *Service) distributionAttempt(ctx context.Context, runID string) (processed, active int, err error) {
	investments, err := s.investments.ListByStatus(ctx, domain.InvestmentStatusActive)
	if err != nil {
		return 0, 0, fmt.Errorf("list active investments: %w", err)
	}
	now := s.nowFn()
	for _, investment := range investments {
		if err := ctx.Err(); err != nil {
			return processed, len(investments), err
		}
		result, err := s.distributeOne(ctx, investment, now)
		if err != nil {
			return processed, len(investments), fmt.Errorf("investment %s: %w", investment.InvestmentID, err)
		}
		if result.Due {
			processed++
		}
	}
	s.logger.DebugContext(ctx, "distribution attempt completed",
		"module", "application.distribution",
		"layer", "application",
		"operation", "distribution_attempt",
		"outcome", "success",
		"run_id", runID,
		"processed", processed,
		"active", len(investments),
	)
	return processed, len(investments), nil
}

// DistributeInvestment runs a single investment through the distribution
// step outside of a batch.
func (s *Service) DistributeInvestment(ctx context.Context, actor Actor, investmentID string) (DistributionResult, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return DistributionResult{}, domain.ErrUnauthorized
	}
	if !actor.operator() {
		return DistributionResult{}, domain.ErrForbidden
	}
	investment, err := s.investments.GetByID(ctx, strings.TrimSpace(investmentID))
	if err != nil {
		return DistributionResult{}, err
	}
	if investment.Status != domain.InvestmentStatusActive {
		return DistributionResult{}, fmt.Errorf("%w: investment %s is %s", domain.ErrInvalidTransition, investment.InvestmentID, investment.Status)
	}
	return s.distributeOne(ctx, investment, s.nowFn())
}

func (s *Service) distributeOne(ctx context.Context, investment domain.Investment, now time.Time) (DistributionResult, error) {
	result := DistributionResult{Investment: investment}
	if !investment.IsDue(now, s.cfg.MaturityInterval) {
		return result, nil
	}
	owner, err := s.participants.GetByID(ctx, investment.OwnerID)
	if err != nil {
		return result, fmt.Errorf("owner %s: %w", investment.OwnerID, err)
	}
	if !owner.Active() {
		s.logger.InfoContext(ctx, "distribution skipped for suspended owner",
			"module", "application.distribution",
			"layer", "application",
			"operation", "distribute_investment",
			"outcome", "skipped",
			"investment_id", investment.InvestmentID,
			"owner_id", owner.ParticipantID,
		)
		return result, nil
	}

	step, err := investment.Accrue(now)
	if err != nil {
		return result, err
	}
	updated := step.Updated

	var records []domain.RewardRecord
	var events []ports.OutboxEvent
	if step.Allowed.IsPositive() {
		records = append(records, domain.RewardRecord{
			RecordID:     uuid.NewString(),
			RecipientID:  investment.OwnerID,
			InvestmentID: investment.InvestmentID,
			Type:         domain.RewardTypeProfitShare,
			Amount:       step.Allowed,
			Level:        0,
			Rate:         step.Rate,
			BaseAmount:   investment.Principal,
			CreatedAt:    now,
		})
		matching, err := s.matchingBonuses(ctx, updated, step.Allowed, now)
		if err != nil {
			return result, fmt.Errorf("matching cascade: %w", err)
		}
		records = append(records, matching...)
		events = append(events, s.newOutboxEvent(domain.EventInvestmentDistributed, investment.InvestmentID, now, contracts.InvestmentDistributedPayload{
			InvestmentID:    investment.InvestmentID,
			OwnerID:         investment.OwnerID,
			Amount:          step.Allowed.String(),
			Rate:            step.Rate.String(),
			Phase:           updated.CurrentPhase,
			MonthsCompleted: updated.MonthsCompleted,
			ProfitEarned:    updated.ProfitEarned.String(),
			MatchingCount:   len(matching),
			DistributedAt:   now.Format(time.RFC3339),
		}))
	}
	if step.Completed {
		events = append(events, s.newOutboxEvent(domain.EventInvestmentCompleted, investment.InvestmentID, now, contracts.InvestmentCompletedPayload{
			InvestmentID: investment.InvestmentID,
			OwnerID:      investment.OwnerID,
			ProfitEarned: updated.ProfitEarned.String(),
			Reason:       updated.CompletionReason,
			CompletedAt:  now.Format(time.RFC3339),
		}))
	}

	err = s.investments.CommitDistribution(ctx, ports.DistributionCommit{
		Investment:            updated,
		PreviousDistributedAt: investment.LastDistributedAt,
		Rewards:               records,
		Events:                events,
	})
	if errors.Is(err, domain.ErrConflict) {
		s.logger.InfoContext(ctx, "investment already advanced by a concurrent run",
			"module", "application.distribution",
			"layer", "application",
			"operation", "distribute_investment",
			"outcome", "skipped",
			"investment_id", investment.InvestmentID,
		)
		return result, nil
	}
	if err != nil {
		return result, err
	}

	s.recordRewardMetrics(records)
	if step.Completed {
		s.metrics.InvestmentCompleted(updated.CompletionReason)
	}
	return DistributionResult{Investment: updated, Due: true, Rewards: records}, nil
}
