package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/ports"
)

// HandleDomainEvent consumes upstream sale decisions: an approved sale
// activates its pending investment and a rejected one rejects it.
func (s *Service) HandleDomainEvent(ctx context.Context, event contracts.EventEnvelope) error {
	if !s.cfg.EnableDomainEventConsumption {
		return nil
	}
	if event.EventType != domain.EventSaleApproved && event.EventType != domain.EventSaleRejected {
		return domain.ErrUnsupportedEventType
	}
	if event.EventClass != "" && event.EventClass != domain.CanonicalEventClassDomain {
		return fmt.Errorf("%w: event class %q", domain.ErrUnsupportedEventType, event.EventClass)
	}
	if strings.TrimSpace(event.EventID) == "" || len(event.Data) == 0 {
		return fmt.Errorf("%w: event id and data are required", domain.ErrInvalidInput)
	}

	now := s.nowFn()
	if s.eventDedup != nil {
		dup, err := s.eventDedup.IsDuplicate(ctx, event.EventID, now)
		if err != nil {
			return err
		}
		if dup {
			return nil
		}
	}

	actor := SystemActor(event.EventID)
	var err error
	switch event.EventType {
	case domain.EventSaleApproved:
		var payload contracts.SaleApprovedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return fmt.Errorf("decode sale.approved payload: %w", err)
		}
		_, err = s.ActivateInvestment(ctx, actor, payload.InvestmentID)
	case domain.EventSaleRejected:
		var payload contracts.SaleRejectedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return fmt.Errorf("decode sale.rejected payload: %w", err)
		}
		_, err = s.RejectInvestment(ctx, actor, payload.InvestmentID)
	}
	if err != nil {
		return err
	}
	if s.eventDedup != nil {
		return s.eventDedup.MarkProcessed(ctx, event.EventID, event.EventType, now.Add(s.cfg.EventDedupTTL))
	}
	return nil
}

func (s *Service) newOutboxEvent(eventType, partitionKey string, at time.Time, data any) ports.OutboxEvent {
	eventID := uuid.New()
	rawData, _ := json.Marshal(data)
	envelope := contracts.EventEnvelope{
		EventID:          eventID.String(),
		EventType:        eventType,
		EventClass:       domain.CanonicalEventClassDomain,
		OccurredAt:       at,
		PartitionKeyPath: partitionKeyPath(eventType),
		PartitionKey:     partitionKey,
		SourceService:    s.cfg.ServiceName,
		TraceID:          uuid.NewString(),
		SchemaVersion:    "v1",
		Data:             rawData,
	}
	payload, _ := json.Marshal(envelope)
	return ports.OutboxEvent{
		EventID:      eventID,
		EventType:    eventType,
		PartitionKey: partitionKey,
		Payload:      payload,
		OccurredAt:   at,
	}
}

func partitionKeyPath(eventType string) string {
	switch eventType {
	case domain.EventParticipantRankChanged, domain.EventRankClaimDecided:
		return "data.participant_id"
	default:
		return "data.investment_id"
	}
}
