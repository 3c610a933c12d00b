package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
)

type Message struct {
	Topic string
	Key   string

	// EventType comes from the broker header when the producer set one.
	EventType string
	Payload   []byte
	Partition int
	Offset    int64
}

type Consumer interface {
	Poll(ctx context.Context, max int) ([]Message, error)
}

type DomainEventHandler interface {
	HandleDomainEvent(ctx context.Context, event contracts.EventEnvelope) error
}

type ConsumerWorker struct {
	logger   *slog.Logger
	consumer Consumer
	handler  DomainEventHandler
	interval time.Duration
}

func NewConsumerWorker(logger *slog.Logger, consumer Consumer, handler DomainEventHandler, interval time.Duration) *ConsumerWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &ConsumerWorker{
		logger: logger, consumer: consumer, handler: handler, interval: interval,
	}
}

func (w *ConsumerWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.processOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "consumer iteration failed",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *ConsumerWorker) processOnce(ctx context.Context) error {
	msgs, err := w.consumer.Poll(ctx, 50)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		var envelope contracts.EventEnvelope
		if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
			w.logger.WarnContext(ctx, "undecodable event dropped",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "decode_event",
				"outcome", "failure",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		if envelope.EventType == "" {
			envelope.EventType = msg.EventType
		}
		if envelope.EventType == "" {
			envelope.EventType = msg.Topic
		}
		err := w.handler.HandleDomainEvent(ctx, envelope)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrUnsupportedEventType):
			w.logger.DebugContext(ctx, "event ignored",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "handle_event",
				"outcome", "skipped",
				"event_type", envelope.EventType,
			)
		default:
			w.logger.WarnContext(ctx, "failed to handle event",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "handle_event",
				"outcome", "failure",
				"event_type", envelope.EventType,
				"event_id", envelope.EventID,
				"error", err,
			)
		}
	}
	return nil
}
