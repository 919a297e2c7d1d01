package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/smes-pos/smes-backend/internal/cart"
	product "github.com/smes-pos/smes-backend/internal/products"
	"github.com/smes-pos/smes-backend/internal/sales"
	"github.com/smes-pos/smes-backend/pkg/db"
	"github.com/smes-pos/smes-backend/pkg/db/models"
	"github.com/smes-pos/smes-backend/pkg/enums"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
	"github.com/smes-pos/smes-backend/pkg/logger"
	"github.com/smes-pos/smes-backend/pkg/metrics"
	"github.com/smes-pos/smes-backend/pkg/outbox"
	"github.com/smes-pos/smes-backend/pkg/outbox/payloads"
)

type cartSource interface {
	ClaimCart(ctx context.Context, username string) (*cart.Claim, error)
}

type customerReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

// Service commits a user's cart as a sale.
type Service interface {
	Checkout(ctx context.Context, username string, input CheckoutInput) (*sales.SaleView, error)
}

type CheckoutInput struct {
	CustomerID    *uuid.UUID
	PaymentMethod enums.PaymentMethod
}

type service struct {
	tx        db.TxRunner
	carts     cartSource
	products  *product.Repository
	sales     *sales.Repository
	customers customerReader
	outbox    outbox.Emitter
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(
	tx db.TxRunner,
	carts cartSource,
	products *product.Repository,
	salesRepo *sales.Repository,
	customers customerReader,
	emitter outbox.Emitter,
	checkoutMetrics *metrics.CheckoutMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if salesRepo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if customers == nil {
		return nil, fmt.Errorf("customer reader required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:        tx,
		carts:     carts,
		products:  products,
		sales:     salesRepo,
		customers: customers,
		outbox:    emitter,
		metrics:   checkoutMetrics,
		logg:      logg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Checkout claims the user's cart, re-validates stock with a guarded
// decrement per line and persists the sale, its items and a sale_completed
// event in one transaction. Any failing line rolls back every decrement and
// the claimed lines go back into the cart. A second checkout racing the first
// finds the cart already claimed and empty.
func (s *service) Checkout(ctx context.Context, username string, input CheckoutInput) (*sales.SaleView, error) {
	started := time.Now()
	sale, err := s.checkout(ctx, username, input)
	s.metrics.Observe(outcomeOf(err), time.Since(started), totalOf(sale))
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"sale_id": sale.ID,
		"receipt": sale.ReceiptNumber,
		"total":   sale.Total.StringFixed(2),
		"lines":   len(sale.Items),
	})
	s.logg.Info(logCtx, "checkout.completed")

	view := sales.NewSaleView(*sale)
	return &view, nil
}

func (s *service) checkout(ctx context.Context, username string, input CheckoutInput) (*models.Sale, error) {
	if username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user is required")
	}
	method := input.PaymentMethod
	if method == "" {
		method = enums.DefaultPaymentMethod
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	if input.CustomerID != nil {
		if _, err := s.customers.FindByID(ctx, *input.CustomerID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Customer not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load customer")
		}
	}

	claim, err := s.carts.ClaimCart(ctx, username)
	if err != nil {
		return nil, err
	}
	sale, err := s.commit(ctx, username, method, input.CustomerID, claim.View)
	if err != nil {
		if rerr := claim.Release(ctx); rerr != nil {
			s.logg.Error(s.logg.WithField(ctx, "username", username), "checkout.cart_restore_failed", rerr)
		}
		return nil, err
	}
	return sale, nil
}

func (s *service) commit(ctx context.Context, username string, method enums.PaymentMethod, customerID *uuid.UUID, view cart.CartView) (*models.Sale, error) {
	if len(view.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Cannot checkout empty cart")
	}

	now := s.now()
	sale := &models.Sale{
		ID:             uuid.New(),
		CustomerID:     customerID,
		Cashier:        username,
		Status:         enums.SaleStatusCompleted,
		PaymentMethod:  method,
		DiscountCode:   view.DiscountCode,
		Subtotal:       view.Subtotal,
		DiscountAmount: view.DiscountAmount,
		TaxAmount:      view.TaxAmount,
		Total:          view.Total,
		Profit:         decimal.Zero,
		SaleDate:       now,
	}
	sale.ReceiptNumber = sales.NewReceiptNumber(sale.ID, now)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		products := s.products.WithTx(tx)

		ids := make([]uuid.UUID, 0, len(view.Items))
		for _, item := range view.Items {
			ids = append(ids, item.ProductID)
		}
		current, err := products.FindByIDs(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
		}

		sale.Items = make([]models.SaleItem, 0, len(view.Items))
		for _, item := range view.Items {
			p, ok := current[item.ProductID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "Product not found").
					WithDetails(map[string]any{"product_id": item.ProductID})
			}
			decremented, err := products.DecrementStock(ctx, p.ID, item.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement stock")
			}
			if !decremented {
				return insufficientStock(p, item.Quantity)
			}

			qty := decimal.NewFromInt(int64(item.Quantity))
			sale.Profit = sale.Profit.Add(item.UnitPrice.Sub(p.CostPrice).Mul(qty))
			sale.Items = append(sale.Items, models.SaleItem{
				SaleID:         sale.ID,
				ProductID:      p.ID,
				ProductName:    item.ProductName,
				Quantity:       item.Quantity,
				UnitPrice:      item.UnitPrice,
				CostPrice:      p.CostPrice,
				DiscountAmount: item.DiscountAmount,
				TotalPrice:     item.TotalPrice,
			})
		}

		if err := s.sales.WithTx(tx).Create(ctx, sale); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist sale")
		}
		return s.emitSaleCompleted(ctx, tx, sale)
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *service) emitSaleCompleted(ctx context.Context, tx *gorm.DB, sale *models.Sale) error {
	lines := make([]payloads.SaleLine, 0, len(sale.Items))
	for _, item := range sale.Items {
		lines = append(lines, payloads.SaleLine{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventSaleCompleted,
		AggregateType: enums.AggregateSale,
		AggregateID:   sale.ID,
		Actor:         &outbox.ActorRef{Username: sale.Cashier},
		Data: payloads.SaleCompletedEvent{
			SaleID:         sale.ID,
			ReceiptNumber:  sale.ReceiptNumber,
			CustomerID:     sale.CustomerID,
			Cashier:        sale.Cashier,
			PaymentMethod:  sale.PaymentMethod,
			Subtotal:       sale.Subtotal,
			DiscountAmount: sale.DiscountAmount,
			TaxAmount:      sale.TaxAmount,
			Total:          sale.Total,
			Lines:          lines,
			SaleDate:       sale.SaleDate,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit sale_completed")
	}
	return nil
}

func insufficientStock(p models.Product, requested int) error {
	msg := fmt.Sprintf("Insufficient stock for product '%s'. Requested %d, only %d available.", p.Name, requested, p.QuantityInStock)
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, msg).
		WithDetails(map[string]any{
			"product_id": p.ID,
			"product":    p.Name,
			"requested":  requested,
			"available":  p.QuantityInStock,
		})
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeCompleted
	case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock):
		return metrics.OutcomeInsufficientStock
	case pkgerrors.HasCode(err, pkgerrors.CodeStateConflict):
		return metrics.OutcomeEmptyCart
	default:
		return metrics.OutcomeError
	}
}

func totalOf(sale *models.Sale) float64 {
	if sale == nil {
		return 0
	}
	return sale.Total.InexactFloat64()
}
