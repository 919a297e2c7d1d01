package purchases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/smes-pos/smes-backend/internal/inventory"
	"github.com/smes-pos/smes-backend/pkg/db"
	"github.com/smes-pos/smes-backend/pkg/db/models"
	"github.com/smes-pos/smes-backend/pkg/enums"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
	"github.com/smes-pos/smes-backend/pkg/logger"
	"github.com/smes-pos/smes-backend/pkg/outbox"
	"github.com/smes-pos/smes-backend/pkg/outbox/payloads"
)

const defaultReorderNotes = "Low stock replenishment"

type productReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type supplierReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Supplier, error)
}

type stockLedger interface {
	Apply(ctx context.Context, tx *gorm.DB, change inventory.Change) (*models.InventoryAdjustment, error)
}

// Service manages supplier orders.
type Service interface {
	Create(ctx context.Context, input CreatePurchaseInput) (*PurchaseDTO, error)
	CreateReorder(ctx context.Context, input ReorderInput) (*PurchaseDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*PurchaseDTO, error)
	List(ctx context.Context, status *enums.PurchaseStatus) ([]PurchaseDTO, error)
	ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]PurchaseDTO, error)
	Receive(ctx context.Context, id uuid.UUID, actor string) (*PurchaseDTO, error)
	Cancel(ctx context.Context, id uuid.UUID) (*PurchaseDTO, error)
}

type service struct {
	tx        db.TxRunner
	repo      *Repository
	products  productReader
	suppliers supplierReader
	ledger    stockLedger
	outbox    outbox.Emitter
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(tx db.TxRunner, repo *Repository, products productReader, suppliers supplierReader, ledger stockLedger, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if suppliers == nil {
		return nil, fmt.Errorf("supplier reader required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:        tx,
		repo:      repo,
		products:  products,
		suppliers: suppliers,
		ledger:    ledger,
		outbox:    emitter,
		logg:      logg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, input CreatePurchaseInput) (*PurchaseDTO, error) {
	if input.SupplierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id is required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	if err := s.requireSupplier(ctx, input.SupplierID); err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		if item.UnitCost.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit cost must not be negative")
		}
		ids = append(ids, item.ProductID)
	}
	found, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found").
				WithDetails(map[string]any{"product_id": id})
		}
	}

	purchase := s.newPurchase(input.SupplierID, input.Notes, input.OrderedBy, input.Items)
	if err := s.repo.Create(ctx, purchase); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create purchase")
	}
	dto := toDTO(*purchase)
	return &dto, nil
}

// CreateReorder orders a low-stock product from its own supplier at cost price.
func (s *service) CreateReorder(ctx context.Context, input ReorderInput) (*PurchaseDTO, error) {
	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if product.SupplierID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Product has no supplier assigned")
	}
	qty := input.Quantity
	if qty == 0 {
		qty = inventory.SuggestReorderQuantity(*product)
	}
	if qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Order quantity must be positive")
	}
	notes := strings.TrimSpace(input.Notes)
	if notes == "" {
		notes = defaultReorderNotes
	}

	purchase := s.newPurchase(*product.SupplierID, notes, input.OrderedBy, []PurchaseItemInput{{
		ProductID: product.ID,
		Quantity:  qty,
		UnitCost:  product.CostPrice,
	}})
	if err := s.repo.Create(ctx, purchase); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create purchase")
	}
	dto := toDTO(*purchase)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*PurchaseDTO, error) {
	purchase, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLoadErr(err)
	}
	dto := toDTO(*purchase)
	return &dto, nil
}

func (s *service) List(ctx context.Context, status *enums.PurchaseStatus) ([]PurchaseDTO, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid purchase status")
	}
	return s.list(ctx, status, nil)
}

func (s *service) ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]PurchaseDTO, error) {
	if err := s.requireSupplier(ctx, supplierID); err != nil {
		return nil, err
	}
	return s.list(ctx, nil, &supplierID)
}

func (s *service) list(ctx context.Context, status *enums.PurchaseStatus, supplierID *uuid.UUID) ([]PurchaseDTO, error) {
	rows, err := s.repo.List(ctx, status, supplierID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list purchases")
	}
	out := make([]PurchaseDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out, nil
}

// Receive books every item into stock and marks the purchase RECEIVED.
func (s *service) Receive(ctx context.Context, id uuid.UUID, actor string) (*PurchaseDTO, error) {
	var dto PurchaseDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		purchase, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return mapLoadErr(err)
		}
		switch purchase.Status {
		case enums.PurchaseStatusReceived:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Purchase already received")
		case enums.PurchaseStatusCancelled:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Cannot receive cancelled purchase")
		}

		receivedAt := s.now()
		ok, err := repo.TransitionStatus(ctx, purchase.ID, enums.PurchaseStatusReceived, &receivedAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update purchase status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Purchase already received")
		}

		reason := "Purchase " + strings.ToUpper(purchase.ID.String()[:8]) + " received"
		var actorPtr *string
		if actor != "" {
			actorPtr = &actor
		}
		for _, item := range purchase.Items {
			if _, err := s.ledger.Apply(ctx, tx, inventory.Change{
				ProductID: item.ProductID,
				Delta:     item.Quantity,
				Reason:    reason,
				Actor:     actorPtr,
			}); err != nil {
				return err
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPurchaseReceived,
			AggregateType: enums.AggregatePurchase,
			AggregateID:   purchase.ID,
			Data: payloads.PurchaseReceivedEvent{
				PurchaseID:  purchase.ID,
				SupplierID:  purchase.SupplierID,
				TotalAmount: purchase.TotalAmount,
				ItemCount:   len(purchase.Items),
			},
		}
		if actorPtr != nil {
			event.Actor = &outbox.ActorRef{Username: actor}
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit purchase_received")
		}

		purchase.Status = enums.PurchaseStatusReceived
		purchase.ReceivedAt = &receivedAt
		dto = toDTO(*purchase)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "purchase_id", dto.ID), "purchase.received")
	return &dto, nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID) (*PurchaseDTO, error) {
	purchase, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLoadErr(err)
	}
	if purchase.Status != enums.PurchaseStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Only pending purchases can be cancelled")
	}
	ok, err := s.repo.TransitionStatus(ctx, purchase.ID, enums.PurchaseStatusCancelled, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update purchase status")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Only pending purchases can be cancelled")
	}
	purchase.Status = enums.PurchaseStatusCancelled
	dto := toDTO(*purchase)
	return &dto, nil
}

func (s *service) newPurchase(supplierID uuid.UUID, notes, orderedBy string, items []PurchaseItemInput) *models.Purchase {
	purchase := &models.Purchase{
		SupplierID:  supplierID,
		Status:      enums.PurchaseStatusPending,
		TotalAmount: decimal.Zero,
		OrderedAt:   s.now(),
		Items:       make([]models.PurchaseItem, 0, len(items)),
	}
	if trimmed := strings.TrimSpace(notes); trimmed != "" {
		purchase.Notes = &trimmed
	}
	if orderedBy != "" {
		purchase.OrderedBy = &orderedBy
	}
	for _, item := range items {
		total := item.UnitCost.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		purchase.Items = append(purchase.Items, models.PurchaseItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitCost:  item.UnitCost.Round(2),
			TotalCost: total,
		})
		purchase.TotalAmount = purchase.TotalAmount.Add(total)
	}
	return purchase
}

func (s *service) requireSupplier(ctx context.Context, id uuid.UUID) error {
	if _, err := s.suppliers.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Supplier not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load supplier")
	}
	return nil
}

func mapLoadErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Purchase not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchase")
}
