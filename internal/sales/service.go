package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/smes-pos/smes-backend/pkg/db"
	"github.com/smes-pos/smes-backend/pkg/db/models"
	"github.com/smes-pos/smes-backend/pkg/enums"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
	"github.com/smes-pos/smes-backend/pkg/logger"
	"github.com/smes-pos/smes-backend/pkg/outbox"
	"github.com/smes-pos/smes-backend/pkg/outbox/payloads"
	"github.com/smes-pos/smes-backend/pkg/pagination"
)

// StockRestorer puts sold units back on the shelf inside the caller's transaction.
type StockRestorer interface {
	Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, reason string, actor *string) error
}

type customerReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

// Service reads sales and reverses completed ones.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*SaleView, error)
	GetByReceipt(ctx context.Context, receiptNumber string) (*SaleView, error)
	List(ctx context.Context, input ListSalesInput) (*SaleListResult, error)
	Receipt(ctx context.Context, id uuid.UUID) (*Receipt, error)
	DailySummary(ctx context.Context, day time.Time) (*DailySummary, error)
	Cancel(ctx context.Context, id uuid.UUID, actor string) (*SaleView, error)
	Refund(ctx context.Context, id uuid.UUID, actor string) (*SaleView, error)
}

type service struct {
	tx        db.TxRunner
	repo      *Repository
	stock     StockRestorer
	customers customerReader
	outbox    outbox.Emitter
	logg      *logger.Logger
}

func NewService(tx db.TxRunner, repo *Repository, stock StockRestorer, customers customerReader, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock restorer required")
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
	return &service{tx: tx, repo: repo, stock: stock, customers: customers, outbox: emitter, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*SaleView, error) {
	sale, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	view := NewSaleView(*sale)
	return &view, nil
}

func (s *service) GetByReceipt(ctx context.Context, receiptNumber string) (*SaleView, error) {
	if receiptNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt number is required")
	}
	sale, err := s.repo.FindByReceipt(ctx, receiptNumber)
	if err != nil {
		return nil, mapLoadErr(err)
	}
	view := NewSaleView(*sale)
	return &view, nil
}

func (s *service) List(ctx context.Context, input ListSalesInput) (*SaleListResult, error) {
	if input.From != nil && input.To != nil && !input.From.Before(*input.To) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must be before to")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid sale status")
	}
	if _, err := pagination.ParseCursor(input.Pagination.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	input.Pagination.Limit = pagination.NormalizeLimit(input.Pagination.Limit)

	page, err := s.repo.List(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list sales")
	}
	out := &SaleListResult{Sales: make([]SaleView, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, sale := range page.Items {
		out.Sales = append(out.Sales, NewSaleView(sale))
	}
	return out, nil
}

func (s *service) Receipt(ctx context.Context, id uuid.UUID) (*Receipt, error) {
	sale, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		ReceiptNumber:  sale.ReceiptNumber,
		SaleDate:       sale.SaleDate,
		Cashier:        sale.Cashier,
		PaymentMethod:  sale.PaymentMethod,
		PaymentLabel:   sale.PaymentMethod.Label(),
		Status:         sale.Status,
		Lines:          make([]ReceiptLine, 0, len(sale.Items)),
		Subtotal:       sale.Subtotal,
		DiscountAmount: sale.DiscountAmount,
		PreTaxAmount:   sale.Subtotal.Sub(sale.TaxAmount),
		TaxAmount:      sale.TaxAmount,
		Total:          sale.Total,
	}
	for _, item := range sale.Items {
		receipt.Lines = append(receipt.Lines, ReceiptLine{
			Description: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Discount:    item.DiscountAmount,
			Amount:      item.TotalPrice,
		})
	}
	if sale.CustomerID != nil {
		customer, err := s.customers.FindByID(ctx, *sale.CustomerID)
		switch {
		case err == nil:
			receipt.CustomerName = &customer.Name
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load customer")
		}
	}
	return receipt, nil
}

func (s *service) DailySummary(ctx context.Context, day time.Time) (*DailySummary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	rows, err := s.repo.ListCompletedBetween(ctx, start, end)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load daily sales")
	}
	summary := &DailySummary{
		Date:           start.Format("2006-01-02"),
		SaleCount:      len(rows),
		Subtotal:       decimal.Zero,
		DiscountAmount: decimal.Zero,
		TaxAmount:      decimal.Zero,
		Revenue:        decimal.Zero,
		Profit:         decimal.Zero,
		CashInDrawer:   decimal.Zero,

		ByPaymentMethod: map[enums.PaymentMethod]decimal.Decimal{},
	}
	for _, sale := range rows {
		summary.ByPaymentMethod[sale.PaymentMethod] = summary.ByPaymentMethod[sale.PaymentMethod].Add(sale.Total)
		if sale.PaymentMethod.SettledInDrawer() {
			summary.CashInDrawer = summary.CashInDrawer.Add(sale.Total)
		}
		summary.Subtotal = summary.Subtotal.Add(sale.Subtotal)
		summary.DiscountAmount = summary.DiscountAmount.Add(sale.DiscountAmount)
		summary.TaxAmount = summary.TaxAmount.Add(sale.TaxAmount)
		summary.Revenue = summary.Revenue.Add(sale.Total)
		summary.Profit = summary.Profit.Add(sale.Profit)
	}
	return summary, nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID, actor string) (*SaleView, error) {
	return s.reverse(ctx, id, actor, enums.SaleStatusCancelled)
}

func (s *service) Refund(ctx context.Context, id uuid.UUID, actor string) (*SaleView, error) {
	return s.reverse(ctx, id, actor, enums.SaleStatusRefunded)
}

// reverse restores stock for every item and moves a completed sale into a
// terminal status, all in one transaction.
func (s *service) reverse(ctx context.Context, id uuid.UUID, actor string, target enums.SaleStatus) (*SaleView, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale id is required")
	}
	verb, eventType := "cancelled", enums.EventSaleCancelled
	if target == enums.SaleStatusRefunded {
		verb, eventType = "refunded", enums.EventSaleRefunded
	}

	var view SaleView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sale, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return mapLoadErr(err)
		}
		if sale.Status != enums.SaleStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Only completed sales can be "+verb).
				WithDetails(map[string]any{"status": sale.Status})
		}

		ok, err := repo.TransitionStatus(ctx, sale.ID, enums.SaleStatusCompleted, target)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update sale status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Only completed sales can be "+verb)
		}

		reason := fmt.Sprintf("Sale %s %s", sale.ReceiptNumber, verb)
		lines := make([]payloads.SaleLine, 0, len(sale.Items))
		for _, item := range sale.Items {
			if err := s.stock.Restore(ctx, tx, item.ProductID, item.Quantity, reason, optional(actor)); err != nil {
				return err
			}
			lines = append(lines, payloads.SaleLine{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
		}

		sale.Status = target
		event := outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Actor:         actorRef(actor),
			Data: payloads.SaleReversedEvent{
				SaleID:        sale.ID,
				ReceiptNumber: sale.ReceiptNumber,
				Status:        target,
				Total:         sale.Total,
				Lines:         lines,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit "+string(eventType))
		}
		view = NewSaleView(*sale)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"sale_id": view.ID, "status": view.Status})
	s.logg.Info(logCtx, "sale.reversed")
	return &view, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale id is required")
	}
	sale, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLoadErr(err)
	}
	return sale, nil
}

func mapLoadErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Sale not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sale")
}

func actorRef(actor string) *outbox.ActorRef {
	if actor == "" {
		return nil
	}
	return &outbox.ActorRef{Username: actor}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
