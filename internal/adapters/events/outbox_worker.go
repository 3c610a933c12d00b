package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/ports"
)

type OutboxWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	ClaimTTL     time.Duration
	// MaxRetries is the number of failed publishes after which a record is
	// dead-lettered.
	MaxRetries int
	Clock      clock.Clock
}

func (c OutboxWorkerConfig) withDefaults() OutboxWorkerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.ClaimTTL <= 0 {
		c.ClaimTTL = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.Clock == nil {
		c.Clock = clock.WallClock
	}
	return c
}

// OutboxWorker relays lifecycle events committed alongside ledger writes to
// the broker.
type OutboxWorker struct {
	logger    *slog.Logger
	outbox    ports.OutboxRepository
	publisher ports.EventPublisher
	cfg       OutboxWorkerConfig
}

func NewOutboxWorker(logger *slog.Logger, outbox ports.OutboxRepository, publisher ports.EventPublisher, cfg OutboxWorkerConfig) *OutboxWorker {
	return &OutboxWorker{
		logger:    logger.With("module", "events.outbox_worker", "layer", "adapter"),
		outbox:    outbox,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
	}
}

func (w *OutboxWorker) Run(ctx context.Context) error {
	for {
		if err := w.processOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "outbox relay pass failed",
				"operation", "relay_outbox",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.cfg.Clock.After(w.cfg.PollInterval):
		}
	}
}

type relayTally struct {
	published    map[string]int
	retried      int
	deadLettered int
}

func (w *OutboxWorker) processOnce(ctx context.Context) error {
	token := uuid.NewString()
	now := w.cfg.Clock.Now().UTC()
	records, err := w.outbox.ClaimUnpublished(ctx, w.cfg.BatchSize, token, now.Add(w.cfg.ClaimTTL))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	tally := relayTally{published: make(map[string]int)}
	for _, rec := range records {
		w.relay(ctx, rec, token, now, &tally)
	}
	w.logger.InfoContext(ctx, "outbox relay pass completed",
		"operation", "relay_outbox",
		"outcome", "success",
		"claimed", len(records),
		"published_by_type", tally.published,
		"retried", tally.retried,
		"dead_lettered", tally.deadLettered,
	)
	return nil
}

func (w *OutboxWorker) relay(ctx context.Context, rec ports.OutboxRecord, token string, now time.Time, tally *relayTally) {
	if rec.RetryCount >= w.cfg.MaxRetries {
		tally.deadLettered++
		_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, token, "retry budget exhausted before publish", now)
		return
	}
	err := w.publisher.Publish(ctx, rec.EventType, rec.Payload, rec.PartitionKey)
	if err == nil {
		tally.published[rec.EventType]++
		_ = w.outbox.MarkPublished(ctx, rec.OutboxID, token, now)
		return
	}

	attempts := rec.RetryCount + 1
	attrs := []any{
		"operation", "publish_event",
		"outcome", "failure",
		"outbox_id", rec.OutboxID,
		"event_type", rec.EventType,
		"partition_key", rec.PartitionKey,
		"attempts", attempts,
		"error", err,
	}
	if attempts >= w.cfg.MaxRetries {
		tally.deadLettered++
		w.logger.ErrorContext(ctx, "lifecycle event dead-lettered", attrs...)
		_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, token, err.Error(), now)
		return
	}
	tally.retried++
	w.logger.WarnContext(ctx, "lifecycle event publish failed, will retry", attrs...)
	_ = w.outbox.MarkFailed(ctx, rec.OutboxID, token, err.Error(), now)
}
