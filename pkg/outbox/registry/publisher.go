package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/smes-pos/smes-backend/pkg/config"
	"github.com/smes-pos/smes-backend/pkg/db/models"
	"github.com/smes-pos/smes-backend/pkg/enums"
	"github.com/smes-pos/smes-backend/pkg/outbox"
	"github.com/smes-pos/smes-backend/pkg/outbox/payloads"
)

// EventDescriptor says where an event type is published and how its data
// decodes.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is an outbox row that passed validation, with its envelope
// and typed data.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that can never be published as stored. The
// publisher dead-letters it instead of retrying.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func permanent(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

func decodeAs[T any]() func() any {
	return func() any { return new(T) }
}

// NewEventRegistry routes events by aggregate: sales to the sales topic,
// products and purchases to inventory, M-Pesa transactions to payments.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topics := map[enums.OutboxAggregateType]string{
		enums.AggregateSale:             strings.TrimSpace(cfg.SalesTopic),
		enums.AggregateProduct:          strings.TrimSpace(cfg.InventoryTopic),
		enums.AggregatePurchase:         strings.TrimSpace(cfg.InventoryTopic),
		enums.AggregateMpesaTransaction: strings.TrimSpace(cfg.PaymentsTopic),
	}
	var errs []error
	for aggregate, topic := range topics {
		if topic == "" {
			errs = append(errs, fmt.Errorf("no topic configured for %s events", aggregate))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	factories := map[enums.OutboxEventType]func() any{
		enums.EventSaleCompleted:    decodeAs[payloads.SaleCompletedEvent](),
		enums.EventSaleCancelled:    decodeAs[payloads.SaleReversedEvent](),
		enums.EventSaleRefunded:     decodeAs[payloads.SaleReversedEvent](),
		enums.EventStockAdjusted:    decodeAs[payloads.StockAdjustedEvent](),
		enums.EventPurchaseReceived: decodeAs[payloads.PurchaseReceivedEvent](),
		enums.EventPaymentCompleted: decodeAs[payloads.PaymentStatusEvent](),
		enums.EventPaymentFailed:    decodeAs[payloads.PaymentStatusEvent](),
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(factories))}
	for eventType, factory := range factories {
		aggregate := eventType.Aggregate()
		reg.entries[eventType] = EventDescriptor{
			EventType:      eventType,
			AggregateType:  aggregate,
			Topic:          topics[aggregate],
			PayloadFactory: factory,
		}
	}
	return reg, nil
}

// Topics lists the distinct topics events can be routed to, sorted.
func (r *EventRegistry) Topics() []string {
	var topics []string
	for _, desc := range r.entries {
		topics = append(topics, desc.Topic)
	}
	slices.Sort(topics)
	return slices.Compact(topics)
}

// Resolve checks a row against its descriptor and decodes the typed data.
// Every failure here is permanent.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, permanent("aggregate mismatch: %s belongs to %s, row says %s", event.EventType, desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, permanent("%s row has no aggregate_id", event.EventType)
	}

	env, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, permanent("%s: %w", event.EventType, err)
	}
	if env.EventType != "" && env.EventType != event.EventType {
		return nil, permanent("envelope type %s does not match row type %s", env.EventType, event.EventType)
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(env.Data, payload); err != nil {
		return nil, permanent("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}
