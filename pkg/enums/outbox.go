package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateSale             OutboxAggregateType = "sale"
	AggregateProduct          OutboxAggregateType = "product"
	AggregatePurchase         OutboxAggregateType = "purchase"
	AggregateMpesaTransaction OutboxAggregateType = "mpesa_transaction"
)

func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains([]OutboxAggregateType{
		AggregateSale,
		AggregateProduct,
		AggregatePurchase,
		AggregateMpesaTransaction,
	}, a)
}

// OutboxEventType maps to the event_type column of outbox_events. Every event
// type belongs to exactly one aggregate type.
type OutboxEventType string

const (
	EventSaleCompleted    OutboxEventType = "sale_completed"
	EventSaleCancelled    OutboxEventType = "sale_cancelled"
	EventSaleRefunded     OutboxEventType = "sale_refunded"
	EventStockAdjusted    OutboxEventType = "stock_adjusted"
	EventPurchaseReceived OutboxEventType = "purchase_received"
	EventPaymentCompleted OutboxEventType = "payment_completed"
	EventPaymentFailed    OutboxEventType = "payment_failed"
)

var eventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventSaleCompleted:    AggregateSale,
	EventSaleCancelled:    AggregateSale,
	EventSaleRefunded:     AggregateSale,
	EventStockAdjusted:    AggregateProduct,
	EventPurchaseReceived: AggregatePurchase,
	EventPaymentCompleted: AggregateMpesaTransaction,
	EventPaymentFailed:    AggregateMpesaTransaction,
}

func (e OutboxEventType) IsValid() bool {
	_, ok := eventAggregates[e]
	return ok
}

// Aggregate returns the aggregate type e is emitted for, or "" when e is
// unknown.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventAggregates[e]
}

// OutboxDLQErrorReason explains why an outbox row was dead-lettered.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
