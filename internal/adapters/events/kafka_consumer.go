package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConsumer reads upstream sale decisions. A new consumer group starts
// from the earliest offset so no approval published before the first
// deployment is lost; the event id dedup absorbs replays.
type KafkaConsumer struct {
	reader *kafka.Reader
}

func NewKafkaConsumer(brokers []string, groupID string, topics []string) (*KafkaConsumer, error) {
	switch {
	case len(brokers) == 0:
		return nil, fmt.Errorf("kafka consumer: no brokers configured")
	case groupID == "":
		return nil, fmt.Errorf("kafka consumer: group id is required")
	case len(topics) == 0:
		return nil, fmt.Errorf("kafka consumer: no sale topics configured")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		GroupTopics:    topics,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		MaxWait:        500 * time.Millisecond,
	})
	return &KafkaConsumer{reader: reader}, nil
}

// Poll drains up to max messages, returning early once the topic goes quiet.
func (c *KafkaConsumer) Poll(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}
	out := make([]Message, 0, max)
	for len(out) < max {
		readCtx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
		msg, err := c.reader.ReadMessage(readCtx)
		cancel()
		switch {
		case err == nil:
			out = append(out, toMessage(msg))
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			return out, nil
		case ctx.Err() != nil:
			return out, ctx.Err()
		default:
			return out, fmt.Errorf("read sale event: %w", err)
		}
	}
	return out, nil
}

func toMessage(msg kafka.Message) Message {
	out := Message{
		Topic:     msg.Topic,
		Key:       string(msg.Key),
		Payload:   msg.Value,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	}
	for _, h := range msg.Headers {
		if h.Key == headerEventType {
			out.EventType = string(h.Value)
		}
	}
	return out
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
