package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	product "github.com/smes-pos/smes-backend/internal/products"
	"github.com/smes-pos/smes-backend/pkg/db/models"
	"github.com/smes-pos/smes-backend/pkg/enums"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
	"github.com/smes-pos/smes-backend/pkg/outbox"
	"github.com/smes-pos/smes-backend/pkg/outbox/payloads"
)

const ReasonExpiredRemoval = "Expired product removal"

// Change is one logged stock mutation.
type Change struct {
	ProductID uuid.UUID
	Delta     int
	Reason    string
	Actor     *string
}

// Ledger applies stock changes together with their adjustment row and
// stock_adjusted event inside a caller-supplied transaction.
type Ledger struct {
	products    *product.Repository
	adjustments *Repository
	outbox      outbox.Emitter
	now         func() time.Time
}

func NewLedger(products *product.Repository, adjustments *Repository, emitter outbox.Emitter) (*Ledger, error) {
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if adjustments == nil {
		return nil, fmt.Errorf("adjustment repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &Ledger{
		products:    products,
		adjustments: adjustments,
		outbox:      emitter,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Apply locks the product, moves its stock by change.Delta and records the
// adjustment. Stock may never drop below zero.
func (l *Ledger) Apply(ctx context.Context, tx *gorm.DB, change Change) (*models.InventoryAdjustment, error) {
	return l.apply(ctx, tx, change, func(int) int { return change.Delta })
}

// ZeroOut writes off whatever stock the locked row holds. It returns a nil
// adjustment when the product is already at zero.
func (l *Ledger) ZeroOut(ctx context.Context, tx *gorm.DB, productID uuid.UUID, reason string, actor *string) (*models.InventoryAdjustment, error) {
	change := Change{ProductID: productID, Reason: reason, Actor: actor}
	return l.apply(ctx, tx, change, func(current int) int { return -current })
}

// apply runs a stock change whose delta is derived from the locked quantity.
// A zero delta writes nothing.
func (l *Ledger) apply(ctx context.Context, tx *gorm.DB, change Change, deltaOf func(current int) int) (*models.InventoryAdjustment, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required for stock change")
	}
	if change.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	reason := strings.TrimSpace(change.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}

	products := l.products.WithTx(tx)
	current, err := products.FindByIDForUpdate(ctx, change.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	change.Delta = deltaOf(current.QuantityInStock)
	if change.Delta == 0 {
		return nil, nil
	}

	next := current.QuantityInStock + change.Delta
	if next < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Cannot adjust stock below zero").
			WithDetails(map[string]any{
				"product_id": current.ID,
				"current":    current.QuantityInStock,
				"delta":      change.Delta,
			})
	}

	var ok bool
	if change.Delta < 0 {
		ok, err = products.DecrementStock(ctx, current.ID, -change.Delta)
	} else {
		ok, err = products.IncrementStock(ctx, current.ID, change.Delta)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update stock")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Cannot adjust stock below zero")
	}

	adj := &models.InventoryAdjustment{
		ProductID:        current.ID,
		QuantityDelta:    change.Delta,
		PreviousQuantity: current.QuantityInStock,
		NewQuantity:      next,
		Reason:           reason,
		Actor:            change.Actor,
		AdjustedAt:       l.now(),
	}
	if err := l.adjustments.WithTx(tx).Create(ctx, adj); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record adjustment")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventStockAdjusted,
		AggregateType: enums.AggregateProduct,
		AggregateID:   current.ID,
		Actor:         actorRef(change.Actor),
		Data: payloads.StockAdjustedEvent{
			ProductID:        current.ID,
			QuantityDelta:    change.Delta,
			PreviousQuantity: current.QuantityInStock,
			NewQuantity:      next,
			Reason:           reason,
		},
	}
	if err := l.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit stock_adjusted")
	}
	return adj, nil
}

// Restore adds qty units back, used when a sale is reversed.
func (l *Ledger) Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, reason string, actor *string) error {
	if qty <= 0 {
		return nil
	}
	_, err := l.Apply(ctx, tx, Change{ProductID: productID, Delta: qty, Reason: reason, Actor: actor})
	return err
}

func actorRef(actor *string) *outbox.ActorRef {
	if actor == nil || *actor == "" {
		return nil
	}
	return &outbox.ActorRef{Username: *actor}
}
