package discounts

import (
	"context"
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
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
)

func setupService(t *testing.T) (Service, *Repository, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc, err := NewService(db.FromGorm(conn), repo, product.NewRepository(conn))
	require.NoError(t, err)
	return svc, repo, conn
}

func seedProduct(t *testing.T, conn *gorm.DB, sku string) models.Product {
	t.Helper()
	p := models.Product{Name: sku, SKU: sku, Price: decimal.NewFromInt(100), CostPrice: decimal.NewFromInt(60), QuantityInStock: 10}
	require.NoError(t, conn.Create(&p).Error)
	return p
}

func TestCreateDiscountWithProducts(t *testing.T) {
	svc, repo, conn := setupService(t)
	ctx := context.Background()
	p1 := seedProduct(t, conn, "P1")
	p2 := seedProduct(t, conn, "P2")

	dto, err := svc.Create(ctx, DiscountInput{
		Code:       " easter ",
		Name:       "Easter",
		Percentage: decimal.NewFromInt(12),
		ProductIDs: []uuid.UUID{p1.ID, p2.ID, p1.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "EASTER", dto.Code)
	assert.True(t, dto.Active)
	assert.Len(t, dto.ProductIDs, 2)

	linked, err := repo.ListForProduct(ctx, p2.ID)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, dto.ID, linked[0].ID)

	_, err = svc.Create(ctx, DiscountInput{Code: "EASTER", Name: "Dup", Percentage: decimal.NewFromInt(5)})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestCreateDiscountValidation(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	now := time.Now().UTC()
	earlier := now.Add(-time.Hour)

	cases := []DiscountInput{
		{Name: "no code", Percentage: decimal.NewFromInt(5)},
		{Code: "X", Name: "too big", Percentage: decimal.NewFromInt(101)},
		{Code: "Y", Name: "backwards", Percentage: decimal.NewFromInt(5), ValidFrom: &now, ValidTo: &earlier},
		{Code: "Z", Name: "ghost product", Percentage: decimal.NewFromInt(5), ProductIDs: []uuid.UUID{uuid.New()}},
	}
	for _, input := range cases {
		_, err := svc.Create(ctx, input)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "input %+v", input)
	}
}

func TestAttachDetachAndDelete(t *testing.T) {
	svc, repo, conn := setupService(t)
	ctx := context.Background()
	p := seedProduct(t, conn, "P1")

	dto, err := svc.Create(ctx, DiscountInput{Code: "MID", Name: "Mid", Percentage: decimal.NewFromInt(20)})
	require.NoError(t, err)
	assert.Empty(t, dto.ProductIDs)

	dto, err = svc.AttachProducts(ctx, dto.ID, []uuid.UUID{p.ID})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{p.ID}, dto.ProductIDs)

	_, err = svc.AttachProducts(ctx, dto.ID, []uuid.UUID{p.ID})
	require.NoError(t, err)

	require.NoError(t, svc.DetachProduct(ctx, dto.ID, p.ID))
	err = svc.DetachProduct(ctx, dto.ID, p.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = svc.AttachProducts(ctx, dto.ID, []uuid.UUID{p.ID})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, dto.ID))

	linked, err := repo.ListForProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, linked)
	assert.True(t, pkgerrors.HasCode(svc.Delete(ctx, dto.ID), pkgerrors.CodeNotFound))
}
