package sales

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/smes-pos/smes-backend/internal/customers"
	"github.com/smes-pos/smes-backend/pkg/db"
	"github.com/smes-pos/smes-backend/pkg/db/dbtest"
	"github.com/smes-pos/smes-backend/pkg/db/models"
	"github.com/smes-pos/smes-backend/pkg/enums"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
	"github.com/smes-pos/smes-backend/pkg/logger"
	"github.com/smes-pos/smes-backend/pkg/outbox"
	"github.com/smes-pos/smes-backend/pkg/pagination"
)

type restoreCall struct {
	productID uuid.UUID
	qty       int
	reason    string
}

type stubRestorer struct {
	calls []restoreCall
	err   error
}

func (s *stubRestorer) Restore(_ context.Context, tx *gorm.DB, productID uuid.UUID, qty int, reason string, _ *string) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "no tx")
	}
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, restoreCall{productID: productID, qty: qty, reason: reason})
	return nil
}

type harness struct {
	svc      Service
	conn     *gorm.DB
	restorer *stubRestorer
}

func setup(t *testing.T) harness {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "sales-test", Output: io.Discard})
	restorer := &stubRestorer{}
	svc, err := NewService(
		db.FromGorm(conn),
		NewRepository(conn),
		restorer,
		customers.NewRepository(conn),
		outbox.NewService(outbox.NewRepository(conn), logg),
		logg,
	)
	require.NoError(t, err)
	return harness{svc: svc, conn: conn, restorer: restorer}
}

func seedSale(t *testing.T, conn *gorm.DB, at time.Time, total string, status enums.SaleStatus, customerID *uuid.UUID) models.Sale {
	t.Helper()
	id := uuid.New()
	amount := decimal.RequireFromString(total)
	sale := models.Sale{
		ID:             id,
		ReceiptNumber:  NewReceiptNumber(id, at),
		CustomerID:     customerID,
		Cashier:        "cashier",
		Status:         status,
		PaymentMethod:  enums.PaymentMethodCash,
		Subtotal:       amount,
		DiscountAmount: decimal.Zero,
		TaxAmount:      decimal.RequireFromString("10"),
		Total:          amount,
		Profit:         decimal.RequireFromString("20"),
		SaleDate:       at.UTC(),
		Items: []models.SaleItem{{
			ProductID:      uuid.New(),
			ProductName:    "Sugar",
			Quantity:       2,
			UnitPrice:      amount.Div(decimal.NewFromInt(2)),
			CostPrice:      decimal.NewFromInt(1),
			DiscountAmount: decimal.Zero,
			TotalPrice:     amount,
		}},
	}
	require.NoError(t, conn.Create(&sale).Error)
	return sale
}

func TestCancelRestoresEveryItem(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	sale := seedSale(t, h.conn, time.Now(), "100", enums.SaleStatusCompleted, nil)

	view, err := h.svc.Cancel(ctx, sale.ID, "manager")
	require.NoError(t, err)
	assert.Equal(t, enums.SaleStatusCancelled, view.Status)

	require.Len(t, h.restorer.calls, 1)
	assert.Equal(t, sale.Items[0].ProductID, h.restorer.calls[0].productID)
	assert.Equal(t, 2, h.restorer.calls[0].qty)
	assert.Contains(t, h.restorer.calls[0].reason, sale.ReceiptNumber)

	var events []models.OutboxEvent
	require.NoError(t, h.conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventSaleCancelled, events[0].EventType)
}

func TestReverseRequiresCompletedSale(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	pending := seedSale(t, h.conn, time.Now(), "100", enums.SaleStatusPending, nil)

	_, err := h.svc.Refund(ctx, pending.ID, "manager")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, "Only completed sales can be refunded", pkgerrors.As(err).Message())

	_, err = h.svc.Cancel(ctx, pending.ID, "manager")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, "Only completed sales can be cancelled", pkgerrors.As(err).Message())
	assert.Empty(t, h.restorer.calls)

	_, err = h.svc.Refund(ctx, uuid.New(), "manager")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestReverseRollsBackWhenRestoreFails(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	sale := seedSale(t, h.conn, time.Now(), "100", enums.SaleStatusCompleted, nil)
	h.restorer.err = pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")

	_, err := h.svc.Refund(ctx, sale.ID, "manager")
	require.Error(t, err)

	got, err := h.svc.Get(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SaleStatusCompleted, got.Status)
}

func TestListFiltersAndPaginates(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	customer := models.Customer{Name: "Wanjiku"}
	require.NoError(t, h.conn.Create(&customer).Error)

	for i := 0; i < 5; i++ {
		seedSale(t, h.conn, base.Add(time.Duration(i)*time.Hour), "100", enums.SaleStatusCompleted, nil)
	}
	seedSale(t, h.conn, base.Add(10*time.Hour), "300", enums.SaleStatusRefunded, &customer.ID)

	page, err := h.svc.List(ctx, ListSalesInput{Pagination: pagination.Params{Limit: 4}})
	require.NoError(t, err)
	require.Len(t, page.Sales, 4)
	require.NotEmpty(t, page.NextCursor)
	assert.True(t, page.Sales[0].SaleDate.After(page.Sales[1].SaleDate))

	rest, err := h.svc.List(ctx, ListSalesInput{Pagination: pagination.Params{Limit: 4, Cursor: page.NextCursor}})
	require.NoError(t, err)
	assert.Len(t, rest.Sales, 2)
	assert.Empty(t, rest.NextCursor)

	status := enums.SaleStatusRefunded
	byStatus, err := h.svc.List(ctx, ListSalesInput{Status: &status})
	require.NoError(t, err)
	require.Len(t, byStatus.Sales, 1)

	byCustomer, err := h.svc.List(ctx, ListSalesInput{CustomerID: &customer.ID})
	require.NoError(t, err)
	require.Len(t, byCustomer.Sales, 1)

	from := base.Add(time.Hour)
	to := base.Add(3 * time.Hour)
	window, err := h.svc.List(ctx, ListSalesInput{From: &from, To: &to})
	require.NoError(t, err)
	assert.Len(t, window.Sales, 2)

	_, err = h.svc.List(ctx, ListSalesInput{From: &to, To: &from})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	_, err = h.svc.List(ctx, ListSalesInput{Pagination: pagination.Params{Cursor: "%%%"}})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestDailySummaryCountsCompletedOnly(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	day := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)

	seedSale(t, h.conn, day.Add(9*time.Hour), "100", enums.SaleStatusCompleted, nil)
	seedSale(t, h.conn, day.Add(15*time.Hour), "250.50", enums.SaleStatusCompleted, nil)
	seedSale(t, h.conn, day.Add(16*time.Hour), "999", enums.SaleStatusCancelled, nil)
	seedSale(t, h.conn, day.Add(30*time.Hour), "40", enums.SaleStatusCompleted, nil)

	summary, err := h.svc.DailySummary(ctx, day.Add(12*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "2026-04-02", summary.Date)
	assert.Equal(t, 2, summary.SaleCount)
	assert.True(t, decimal.RequireFromString("350.50").Equal(summary.Revenue), summary.Revenue.String())
	assert.True(t, decimal.NewFromInt(40).Equal(summary.Profit))
	assert.True(t, decimal.NewFromInt(20).Equal(summary.TaxAmount))
	assert.True(t, summary.Revenue.Equal(summary.CashInDrawer))
	assert.True(t, summary.Revenue.Equal(summary.ByPaymentMethod[enums.PaymentMethodCash]))
}

func TestReceiptIncludesCustomerAndSplit(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	customer := models.Customer{Name: "Otieno"}
	require.NoError(t, h.conn.Create(&customer).Error)
	sale := seedSale(t, h.conn, time.Now(), "116", enums.SaleStatusCompleted, &customer.ID)

	receipt, err := h.svc.Receipt(ctx, sale.ID)
	require.NoError(t, err)
	require.NotNil(t, receipt.CustomerName)
	assert.Equal(t, "Otieno", *receipt.CustomerName)
	assert.True(t, decimal.NewFromInt(106).Equal(receipt.PreTaxAmount))
	require.Len(t, receipt.Lines, 1)
	assert.Equal(t, "Sugar", receipt.Lines[0].Description)
	assert.Equal(t, "CASH", receipt.PaymentLabel)

	byReceipt, err := h.svc.GetByReceipt(ctx, sale.ReceiptNumber)
	require.NoError(t, err)
	assert.Equal(t, sale.ID, byReceipt.ID)
}

func TestNewReceiptNumber(t *testing.T) {
	id := uuid.MustParse("1a2b3c4d-0000-4000-8000-000000000000")
	got := NewReceiptNumber(id, time.Date(2026, 1, 2, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, "RCPT-20260102-1A2B3C4D", got)
}
