package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	headerEventType     = "event_type"
	headerSourceService = "source_service"
)

// KafkaPublisher writes outbox payloads keyed by investment or participant id
// so every event for one aggregate lands on the same partition.
type KafkaPublisher struct {
	writer       *kafka.Writer
	source       string
	topicByEvent map[string]string
}

func NewKafkaPublisher(brokers []string, source string, topicByEvent map[string]string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher: no brokers configured")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           20 * time.Millisecond,
			AllowAutoTopicCreation: false,
		},
		source:       source,
		topicByEvent: topicByEvent,
	}, nil
}

// TopicFor maps an event type to its topic; unmapped types publish to a
// topic named after the event.
func (p *KafkaPublisher) TopicFor(eventType string) string {
	if mapped := p.topicByEvent[eventType]; mapped != "" {
		return mapped
	}
	return eventType
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	if partitionKey == "" {
		partitionKey = eventType
	}
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.TopicFor(eventType),
		Key:   []byte(partitionKey),
		Value: payload,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(eventType)},
			{Key: headerSourceService, Value: []byte(p.source)},
		},
		Time: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
