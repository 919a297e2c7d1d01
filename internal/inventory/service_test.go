package inventory

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

	product "github.com/smes-pos/smes-backend/internal/products"
	"github.com/smes-pos/smes-backend/pkg/db"
	"github.com/smes-pos/smes-backend/pkg/db/dbtest"
	"github.com/smes-pos/smes-backend/pkg/db/models"
	"github.com/smes-pos/smes-backend/pkg/enums"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
	"github.com/smes-pos/smes-backend/pkg/logger"
	"github.com/smes-pos/smes-backend/pkg/outbox"
)

type harness struct {
	svc  Service
	conn *gorm.DB
}

type hookedTx struct {
	db.TxRunner
	before func()
}

func (h hookedTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if h.before != nil {
		h.before()
	}
	return h.TxRunner.WithTx(ctx, fn)
}

func setup(t *testing.T) harness {
	t.Helper()
	return setupWithHook(t, nil)
}

func setupWithHook(t *testing.T, before func()) harness {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "inventory-test", Output: io.Discard})
	products := product.NewRepository(conn)
	adjustments := NewRepository(conn)
	ledger, err := NewLedger(products, adjustments, outbox.NewService(outbox.NewRepository(conn), logg))
	require.NoError(t, err)
	svc, err := NewService(hookedTx{TxRunner: db.FromGorm(conn), before: before}, ledger, products, adjustments, logg)
	require.NoError(t, err)
	return harness{svc: svc, conn: conn}
}

func seed(t *testing.T, conn *gorm.DB, p models.Product) models.Product {
	t.Helper()
	if p.Name == "" {
		p.Name = "Item"
	}
	if p.SKU == "" {
		p.SKU = uuid.NewString()[:8]
	}
	if p.Price.IsZero() {
		p.Price = decimal.NewFromInt(50)
	}
	if p.CostPrice.IsZero() {
		p.CostPrice = decimal.NewFromInt(30)
	}
	require.NoError(t, conn.Create(&p).Error)
	return p
}

func stockOf(t *testing.T, conn *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, conn.First(&p, "id = ?", id).Error)
	return p.QuantityInStock
}

func intPtr(v int) *int { return &v }

func TestAdjustStockWritesLogAndEvent(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	p := seed(t, h.conn, models.Product{QuantityInStock: 10})

	adj, err := h.svc.AdjustStock(ctx, AdjustStockInput{ProductID: p.ID, Delta: -4, Reason: "Damaged", Actor: "manager"})
	require.NoError(t, err)
	assert.Equal(t, 10, adj.PreviousQuantity)
	assert.Equal(t, 6, adj.NewQuantity)
	assert.Equal(t, 6, stockOf(t, h.conn, p.ID))

	var events []models.OutboxEvent
	require.NoError(t, h.conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventStockAdjusted, events[0].EventType)
	assert.Equal(t, p.ID, events[0].AggregateID)

	history, err := h.svc.ListAdjustments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Damaged", history[0].Reason)
	require.NotNil(t, history[0].Actor)
	assert.Equal(t, "manager", *history[0].Actor)
}

func TestAdjustStockBelowZeroChangesNothing(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	p := seed(t, h.conn, models.Product{QuantityInStock: 3})

	_, err := h.svc.AdjustStock(ctx, AdjustStockInput{ProductID: p.ID, Delta: -4, Reason: "Count"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, "Cannot adjust stock below zero", pkgerrors.As(err).Message())
	assert.Equal(t, 3, stockOf(t, h.conn, p.ID))

	var count int64
	require.NoError(t, h.conn.Model(&models.InventoryAdjustment{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAdjustStockValidation(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	p := seed(t, h.conn, models.Product{QuantityInStock: 3})

	_, err := h.svc.AdjustStock(ctx, AdjustStockInput{ProductID: p.ID, Delta: 0, Reason: "x"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	_, err = h.svc.AdjustStock(ctx, AdjustStockInput{ProductID: p.ID, Delta: 1, Reason: "  "})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	_, err = h.svc.AdjustStock(ctx, AdjustStockInput{ProductID: uuid.New(), Delta: 1, Reason: "x"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestRemoveExpiredProducts(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	expired := seed(t, h.conn, models.Product{Name: "Milk", QuantityInStock: 7, ExpiryDate: &yesterday})
	fresh := seed(t, h.conn, models.Product{Name: "Bread", QuantityInStock: 4, ExpiryDate: &tomorrow})
	seed(t, h.conn, models.Product{Name: "Empty", QuantityInStock: 0, ExpiryDate: &yesterday})

	result, err := h.svc.RemoveExpiredProducts(ctx, now)
	require.NoError(t, err)
	require.Len(t, result.Removed, 1)
	assert.Equal(t, expired.ID, result.Removed[0].ProductID)
	assert.Equal(t, 7, result.Removed[0].Quantity)

	assert.Equal(t, 0, stockOf(t, h.conn, expired.ID))
	assert.Equal(t, 4, stockOf(t, h.conn, fresh.ID))

	history, err := h.svc.ListAdjustments(ctx, expired.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ReasonExpiredRemoval, history[0].Reason)
	assert.Equal(t, -7, history[0].QuantityDelta)

	again, err := h.svc.RemoveExpiredProducts(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, again.Removed)
}

func TestRemoveExpiredProductsZeroesLockedStock(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)

	cases := map[string]struct {
		listed  int
		current int
	}{
		"stock rose after listing": {listed: 5, current: 15},
		"stock fell after listing": {listed: 5, current: 2},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var (
				h    harness
				milk models.Product
			)
			h = setupWithHook(t, func() {
				require.NoError(t, h.conn.Model(&models.Product{}).Where("id = ?", milk.ID).Update("quantity_in_stock", tc.current).Error)
			})
			milk = seed(t, h.conn, models.Product{Name: "Milk", QuantityInStock: tc.listed, ExpiryDate: &yesterday})

			result, err := h.svc.RemoveExpiredProducts(context.Background(), now)
			require.NoError(t, err)
			require.Len(t, result.Removed, 1)
			assert.Equal(t, tc.current, result.Removed[0].Quantity)
			assert.Equal(t, 0, stockOf(t, h.conn, milk.ID))

			history, err := h.svc.ListAdjustments(context.Background(), milk.ID)
			require.NoError(t, err)
			require.Len(t, history, 1)
			assert.Equal(t, -tc.current, history[0].QuantityDelta)
			assert.Equal(t, tc.current, history[0].PreviousQuantity)
		})
	}
}

func TestRemoveExpiredSkipsProductEmptiedAfterListing(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	var (
		h    harness
		milk models.Product
	)
	h = setupWithHook(t, func() {
		require.NoError(t, h.conn.Model(&models.Product{}).Where("id = ?", milk.ID).Update("quantity_in_stock", 0).Error)
	})
	milk = seed(t, h.conn, models.Product{Name: "Milk", QuantityInStock: 3, ExpiryDate: &yesterday})

	result, err := h.svc.RemoveExpiredProducts(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, result.Removed)

	history, err := h.svc.ListAdjustments(context.Background(), milk.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSuggestReorderQuantity(t *testing.T) {
	cases := []struct {
		name      string
		threshold *int
		stock     int
		want      int
	}{
		{name: "double threshold minus stock", threshold: intPtr(20), stock: 5, want: 35},
		{name: "threshold floor", threshold: intPtr(15), stock: 20, want: 15},
		{name: "ten floor", threshold: intPtr(3), stock: 1, want: 10},
		{name: "no threshold", threshold: nil, stock: 0, want: 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SuggestReorderQuantity(models.Product{LowStockThreshold: tc.threshold, QuantityInStock: tc.stock})
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestReorderSuggestionsRequireSupplier(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	supplier := models.Supplier{Name: "Acme"}
	require.NoError(t, h.conn.Create(&supplier).Error)

	low := seed(t, h.conn, models.Product{Name: "Rice", QuantityInStock: 2, LowStockThreshold: intPtr(8), SupplierID: &supplier.ID, CostPrice: decimal.RequireFromString("12.50")})
	seed(t, h.conn, models.Product{Name: "Orphan", QuantityInStock: 1, LowStockThreshold: intPtr(8)})
	seed(t, h.conn, models.Product{Name: "Plenty", QuantityInStock: 30, LowStockThreshold: intPtr(8), SupplierID: &supplier.ID})

	suggestions, err := h.svc.ReorderSuggestions(ctx)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	s := suggestions[0]
	assert.Equal(t, low.ID, s.ProductID)
	assert.Equal(t, supplier.ID, s.SupplierID)
	assert.Equal(t, 14, s.SuggestedQuantity)
	assert.True(t, decimal.RequireFromString("175").Equal(s.EstimatedTotal), s.EstimatedTotal.String())
}
