package discounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/smes-pos/smes-backend/pkg/db/models"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

type discountReader interface {
	FindByCode(ctx context.Context, code string) (*models.Discount, error)
	ListForProduct(ctx context.Context, productID uuid.UUID) ([]models.Discount, error)
}

// Evaluator answers pricing questions about discounts at a point in time.
type Evaluator struct {
	repo discountReader
}

func NewEvaluator(repo discountReader) (*Evaluator, error) {
	if repo == nil {
		return nil, fmt.Errorf("discount repository required")
	}
	return &Evaluator{repo: repo}, nil
}

// IsActive reports whether now lies inside the discount window. Both bounds
// are inclusive and either may be open.
func IsActive(d models.Discount, now time.Time) bool {
	if d.ValidFrom != nil && now.Before(*d.ValidFrom) {
		return false
	}
	if d.ValidTo != nil && now.After(*d.ValidTo) {
		return false
	}
	return true
}

// ActiveDiscountsFor returns the product's discounts that are valid at now.
func (e *Evaluator) ActiveDiscountsFor(ctx context.Context, productID uuid.UUID, now time.Time) ([]models.Discount, error) {
	rows, err := e.repo.ListForProduct(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product discounts")
	}
	active := rows[:0]
	for _, d := range rows {
		if IsActive(d, now) {
			active = append(active, d)
		}
	}
	return active, nil
}

// MaxDiscountPercentage is the largest active percentage for the product,
// clamped to [0,100]. Discounts never stack on one product.
func (e *Evaluator) MaxDiscountPercentage(ctx context.Context, productID uuid.UUID, now time.Time) (decimal.Decimal, error) {
	active, err := e.ActiveDiscountsFor(ctx, productID, now)
	if err != nil {
		return decimal.Zero, err
	}
	best := decimal.Zero
	for _, d := range active {
		if d.Percentage.GreaterThan(best) {
			best = d.Percentage
		}
	}
	return Clamp(best), nil
}

// ValidByCode resolves a cart-level code that must be active at now.
func (e *Evaluator) ValidByCode(ctx context.Context, code string, now time.Time) (*models.Discount, error) {
	if strings.TrimSpace(code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code is required")
	}
	discount, err := e.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Discount not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load discount")
	}
	if !IsActive(*discount, now) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Discount is not valid").
			WithDetails(map[string]any{"code": discount.Code})
	}
	return discount, nil
}

// Clamp bounds a percentage to [0,100].
func Clamp(pct decimal.Decimal) decimal.Decimal {
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
