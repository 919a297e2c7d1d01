package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/smes-pos/smes-backend/pkg/db"
	"github.com/smes-pos/smes-backend/pkg/db/models"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
	"github.com/smes-pos/smes-backend/pkg/logger"
)

const (
	minimumReorderQuantity = 10
	defaultHistoryLimit    = 50
)

type productLister interface {
	ListLowStock(ctx context.Context) ([]models.Product, error)
	ListExpiredInStock(ctx context.Context, now time.Time) ([]models.Product, error)
}

// Service is the inventory adjustment engine.
type Service interface {
	AdjustStock(ctx context.Context, input AdjustStockInput) (*AdjustmentDTO, error)
	ListAdjustments(ctx context.Context, productID uuid.UUID) ([]AdjustmentDTO, error)
	RemoveExpiredProducts(ctx context.Context, now time.Time) (*ExpiredRemovalResult, error)
	ReorderSuggestions(ctx context.Context) ([]ReorderSuggestion, error)
}

type AdjustStockInput struct {
	ProductID uuid.UUID
	Delta     int
	Reason    string
	Actor     string
}

type AdjustmentDTO struct {
	ID               uuid.UUID `json:"id"`
	ProductID        uuid.UUID `json:"product_id"`
	QuantityDelta    int       `json:"quantity_delta"`
	PreviousQuantity int       `json:"previous_quantity"`
	NewQuantity      int       `json:"new_quantity"`
	Reason           string    `json:"reason"`
	Actor            *string   `json:"actor,omitempty"`
	AdjustedAt       time.Time `json:"adjusted_at"`
}

func newAdjustmentDTO(a models.InventoryAdjustment) AdjustmentDTO {
	return AdjustmentDTO{
		ID:               a.ID,
		ProductID:        a.ProductID,
		QuantityDelta:    a.QuantityDelta,
		PreviousQuantity: a.PreviousQuantity,
		NewQuantity:      a.NewQuantity,
		Reason:           a.Reason,
		Actor:            a.Actor,
		AdjustedAt:       a.AdjustedAt,
	}
}

// ExpiredRemoval describes one product whose stock was written off.
type ExpiredRemoval struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
}

type ExpiredRemovalResult struct {
	Removed []ExpiredRemoval `json:"removed"`
}

// ReorderSuggestion proposes a supplier order for a low-stock product.
type ReorderSuggestion struct {
	ProductID         uuid.UUID       `json:"product_id"`
	ProductName       string          `json:"product_name"`
	SKU               string          `json:"sku"`
	SupplierID        uuid.UUID       `json:"supplier_id"`
	CurrentStock      int             `json:"current_stock"`
	Threshold         int             `json:"threshold"`
	SuggestedQuantity int             `json:"suggested_quantity"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	EstimatedTotal    decimal.Decimal `json:"estimated_total"`
}

type service struct {
	tx          db.TxRunner
	ledger      *Ledger
	products    productLister
	adjustments *Repository
	logg        *logger.Logger
}

func NewService(tx db.TxRunner, ledger *Ledger, products productLister, adjustments *Repository, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lister required")
	}
	if adjustments == nil {
		return nil, fmt.Errorf("adjustment repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{tx: tx, ledger: ledger, products: products, adjustments: adjustments, logg: logg}, nil
}

func (s *service) AdjustStock(ctx context.Context, input AdjustStockInput) (*AdjustmentDTO, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity change must not be zero")
	}

	var adj *models.InventoryAdjustment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		adj, err = s.ledger.Apply(ctx, tx, Change{
			ProductID: input.ProductID,
			Delta:     input.Delta,
			Reason:    input.Reason,
			Actor:     optional(input.Actor),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"product_id": adj.ProductID,
		"delta":      adj.QuantityDelta,
		"new_qty":    adj.NewQuantity,
	})
	s.logg.Info(ctx, "inventory.stock_adjusted")

	dto := newAdjustmentDTO(*adj)
	return &dto, nil
}

func (s *service) ListAdjustments(ctx context.Context, productID uuid.UUID) ([]AdjustmentDTO, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	rows, err := s.adjustments.ListForProduct(ctx, productID, defaultHistoryLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list adjustments")
	}
	out := make([]AdjustmentDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, newAdjustmentDTO(row))
	}
	return out, nil
}

// RemoveExpiredProducts zeroes the stock of every product past its expiry
// date. Each product is written off in its own transaction so one failure
// does not hold back the rest; failures are returned together.
func (s *service) RemoveExpiredProducts(ctx context.Context, now time.Time) (*ExpiredRemovalResult, error) {
	expired, err := s.products.ListExpiredInStock(ctx, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list expired products")
	}

	result := &ExpiredRemovalResult{Removed: make([]ExpiredRemoval, 0, len(expired))}
	var errs error
	for _, p := range expired {
		var adj *models.InventoryAdjustment
		txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			adj, err = s.ledger.ZeroOut(ctx, tx, p.ID, ReasonExpiredRemoval, nil)
			return err
		})
		if txErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("product %s: %w", p.ID, txErr))
			continue
		}
		if adj == nil {
			continue
		}
		result.Removed = append(result.Removed, ExpiredRemoval{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    -adj.QuantityDelta,
		})
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"removed": len(result.Removed),
		"failed":  len(multierr.Errors(errs)),
	})
	s.logg.Info(logCtx, "inventory.expired_removed")
	return result, errs
}

// ReorderSuggestions lists low-stock products that have a supplier to order from.
func (s *service) ReorderSuggestions(ctx context.Context) ([]ReorderSuggestion, error) {
	rows, err := s.products.ListLowStock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list low stock products")
	}
	out := make([]ReorderSuggestion, 0, len(rows))
	for _, p := range rows {
		if p.SupplierID == nil {
			continue
		}
		qty := SuggestReorderQuantity(p)
		out = append(out, ReorderSuggestion{
			ProductID:         p.ID,
			ProductName:       p.Name,
			SKU:               p.SKU,
			SupplierID:        *p.SupplierID,
			CurrentStock:      p.QuantityInStock,
			Threshold:         p.Threshold(),
			SuggestedQuantity: qty,
			UnitCost:          p.CostPrice,
			EstimatedTotal:    p.CostPrice.Mul(decimal.NewFromInt(int64(qty))),
		})
	}
	return out, nil
}

// SuggestReorderQuantity is max(2*threshold - stock, threshold, 10).
func SuggestReorderQuantity(p models.Product) int {
	threshold := p.Threshold()
	return max(threshold*2-p.QuantityInStock, threshold, minimumReorderQuantity)
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
