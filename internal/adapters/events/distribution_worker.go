package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/application"
)

type BatchRunner interface {
	RunDistributionBatch(ctx context.Context) (application.BatchRunResult, error)
}

// DistributionWorker triggers the profit distribution batch on a fixed
// schedule. Due-ness is decided per investment, so the schedule only bounds
// how late a payout can be.
type DistributionWorker struct {
	logger     *slog.Logger
	runner     BatchRunner
	interval   time.Duration
	runOnStart bool
}

func NewDistributionWorker(logger *slog.Logger, runner BatchRunner, interval time.Duration, runOnStart bool) *DistributionWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &DistributionWorker{
		logger: logger, runner: runner, interval: interval, runOnStart: runOnStart,
	}
}

func (w *DistributionWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if w.runOnStart {
		w.runOnce(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *DistributionWorker) runOnce(ctx context.Context) {
	result, err := w.runner.RunDistributionBatch(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "distribution batch could not run",
			"module", "events.distribution_worker",
			"layer", "adapter",
			"operation", "run_distribution_batch",
			"outcome", "failure",
			"error", err,
		)
		return
	}
	w.logger.DebugContext(ctx, "distribution batch finished",
		"module", "events.distribution_worker",
		"layer", "adapter",
		"operation", "run_distribution_batch",
		"outcome", string(result.Run.Outcome),
		"run_id", result.Run.RunID,
	)
}
