package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smes-pos/smes-backend/pkg/db/dbtest"
	"github.com/smes-pos/smes-backend/pkg/db/models"
	"github.com/smes-pos/smes-backend/pkg/enums"
)

type stockPayload struct {
	ProductID uuid.UUID `json:"productId"`
	Delta     int       `json:"delta"`
}

func TestEmitStoresEnvelopeInTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	productID := uuid.New()
	occurred := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventStockAdjusted,
			AggregateType: enums.AggregateProduct,
			AggregateID:   productID,
			Actor:         &ActorRef{Username: "manager1"},
			Data:          stockPayload{ProductID: productID, Delta: -2},
			OccurredAt:    occurred,
		})
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	var row models.OutboxEvent
	if err := conn.First(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.AggregateID != productID || row.EventType != enums.EventStockAdjusted || row.PublishedAt != nil {
		t.Fatalf("unexpected row %+v", row)
	}

	env, err := DecodeEnvelope(row.Payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Version != EnvelopeVersion || env.EventType != enums.EventStockAdjusted {
		t.Fatalf("unexpected envelope header %+v", env)
	}
	if env.AggregateID != productID.String() || !env.OccurredAt.Equal(occurred) {
		t.Fatalf("unexpected envelope metadata %+v", env)
	}
	if env.EventID != row.ID.String() {
		t.Fatalf("envelope id %s should match row id %s", env.EventID, row.ID)
	}
	if env.Actor == nil || env.Actor.Username != "manager1" {
		t.Fatalf("actor not carried: %+v", env.Actor)
	}
	var data stockPayload
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Delta != -2 {
		t.Fatalf("data not carried: %v %+v", err, data)
	}
}

func TestEmitRollsBackWithCaller(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	_ = conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventSaleCompleted,
			AggregateType: enums.AggregateSale,
			AggregateID:   uuid.New(),
			Data:          map[string]string{"receipt": "RCPT-1"},
		}); err != nil {
			t.Fatalf("emit: %v", err)
		}
		return gorm.ErrInvalidData
	})

	var count int64
	if err := conn.Model(&models.OutboxEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback to discard the event, found %d", count)
	}
}

func TestEmitRejectsInvalidEvents(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	valid := DomainEvent{
		EventType:     enums.EventSaleCompleted,
		AggregateType: enums.AggregateSale,
		AggregateID:   uuid.New(),
		Data:          map[string]int{"n": 1},
	}

	cases := map[string]func(e *DomainEvent){
		"event type":     func(e *DomainEvent) { e.EventType = "sale_exploded" },
		"aggregate type": func(e *DomainEvent) { e.AggregateType = "till" },
		"mismatch":       func(e *DomainEvent) { e.AggregateType = enums.AggregateProduct },
		"aggregate id":   func(e *DomainEvent) { e.AggregateID = uuid.Nil },
		"nil data":       func(e *DomainEvent) { e.Data = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			event := valid
			mutate(&event)
			if err := svc.Emit(context.Background(), conn, event); err == nil {
				t.Fatal("expected emit to fail")
			}
		})
	}
	if err := svc.Emit(context.Background(), nil, valid); err == nil {
		t.Fatal("expected missing transaction to fail")
	}
}

func TestDecodeEnvelopeRejectsIncompleteDocuments(t *testing.T) {
	cases := map[string]string{
		"not json":       `{`,
		"future version": `{"version":2,"eventId":"e1","data":{}}`,
		"zero version":   `{"eventId":"e1","data":{}}`,
		"no event id":    `{"version":1,"data":{}}`,
		"null data":      `{"version":1,"eventId":"e1","data":null}`,
		"missing data":   `{"version":1,"eventId":"e1"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeEnvelope([]byte(raw)); err == nil {
				t.Fatal("expected decode error")
			}
		})
	}
}
