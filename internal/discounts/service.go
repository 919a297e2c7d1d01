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

	"github.com/smes-pos/smes-backend/pkg/db"
	"github.com/smes-pos/smes-backend/pkg/db/models"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
)

// Service manages discount definitions and their product links.
type Service interface {
	Create(ctx context.Context, input DiscountInput) (*DiscountDTO, error)
	Update(ctx context.Context, id uuid.UUID, input DiscountInput) (*DiscountDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*DiscountDTO, error)
	List(ctx context.Context) ([]DiscountDTO, error)
	AttachProducts(ctx context.Context, id uuid.UUID, productIDs []uuid.UUID) (*DiscountDTO, error)
	DetachProduct(ctx context.Context, id, productID uuid.UUID) error
}

type DiscountInput struct {
	Code        string
	Name        string
	Description *string
	Percentage  decimal.Decimal
	ValidFrom   *time.Time
	ValidTo     *time.Time
	ProductIDs  []uuid.UUID
}

type DiscountDTO struct {
	ID          uuid.UUID       `json:"id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Percentage  decimal.Decimal `json:"percentage"`
	ValidFrom   *time.Time      `json:"valid_from,omitempty"`
	ValidTo     *time.Time      `json:"valid_to,omitempty"`
	Active      bool            `json:"active"`
	ProductIDs  []uuid.UUID     `json:"product_ids"`
}

type productChecker interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type service struct {
	tx       db.TxRunner
	repo     *Repository
	products productChecker
	now      func() time.Time
}

func NewService(tx db.TxRunner, repo *Repository, products productChecker) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("discount repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product checker required")
	}
	return &service{tx: tx, repo: repo, products: products, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, input DiscountInput) (*DiscountDTO, error) {
	discount := &models.Discount{}
	applyInput(discount, input)
	if err := validateDiscount(discount); err != nil {
		return nil, err
	}
	if err := s.ensureProducts(ctx, input.ProductIDs); err != nil {
		return nil, err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, discount); err != nil {
			return mapWriteError(err)
		}
		return repo.AttachProducts(ctx, discount.ID, dedupe(input.ProductIDs))
	})
	if err != nil {
		return nil, asCoded(err, "create discount")
	}
	return s.Get(ctx, discount.ID)
}

// Update replaces the discount definition; the product set is left untouched
// unless ProductIDs is non-empty, in which case those products are attached.
func (s *service) Update(ctx context.Context, id uuid.UUID, input DiscountInput) (*DiscountDTO, error) {
	discount, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	applyInput(discount, input)
	if err := validateDiscount(discount); err != nil {
		return nil, err
	}
	if err := s.ensureProducts(ctx, input.ProductIDs); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, discount); err != nil {
			return mapWriteError(err)
		}
		return repo.AttachProducts(ctx, discount.ID, dedupe(input.ProductIDs))
	})
	if err != nil {
		return nil, asCoded(err, "update discount")
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	var deleted bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		deleted, err = s.repo.WithTx(tx).Delete(ctx, id)
		return err
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete discount")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Discount not found")
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*DiscountDTO, error) {
	discount, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	ids, err := s.repo.ProductIDs(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load discount products")
	}
	return toDTO(discount, ids, s.now()), nil
}

func (s *service) List(ctx context.Context) ([]DiscountDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list discounts")
	}
	now := s.now()
	out := make([]DiscountDTO, 0, len(rows))
	for i := range rows {
		ids, err := s.repo.ProductIDs(ctx, rows[i].ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load discount products")
		}
		out = append(out, *toDTO(&rows[i], ids, now))
	}
	return out, nil
}

func (s *service) AttachProducts(ctx context.Context, id uuid.UUID, productIDs []uuid.UUID) (*DiscountDTO, error) {
	if len(productIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_ids is required")
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	if err := s.ensureProducts(ctx, productIDs); err != nil {
		return nil, err
	}
	if err := s.repo.AttachProducts(ctx, id, dedupe(productIDs)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attach products")
	}
	return s.Get(ctx, id)
}

func (s *service) DetachProduct(ctx context.Context, id, productID uuid.UUID) error {
	removed, err := s.repo.DetachProduct(ctx, id, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "detach product")
	}
	if !removed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product is not linked to discount")
	}
	return nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	discount, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Discount not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load discount")
	}
	return discount, nil
}

func (s *service) ensureProducts(ctx context.Context, ids []uuid.UUID) error {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil
	}
	found, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown product ids").
			WithDetails(map[string]any{"product_ids": missing})
	}
	return nil
}

func applyInput(d *models.Discount, input DiscountInput) {
	d.Code = normalizeCode(input.Code)
	d.Name = strings.TrimSpace(input.Name)
	d.Description = input.Description
	d.Percentage = input.Percentage.Round(2)
	d.ValidFrom = utc(input.ValidFrom)
	d.ValidTo = utc(input.ValidTo)
}

func validateDiscount(d *models.Discount) error {
	switch {
	case d.Code == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	case d.Name == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	case d.Percentage.IsNegative() || d.Percentage.GreaterThan(hundred):
		return pkgerrors.New(pkgerrors.CodeValidation, "percentage must be between 0 and 100")
	case d.ValidFrom != nil && d.ValidTo != nil && d.ValidTo.Before(*d.ValidFrom):
		return pkgerrors.New(pkgerrors.CodeValidation, "valid_to must not precede valid_from")
	}
	return nil
}

func mapWriteError(err error) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "discount code already exists")
	}
	return err
}

func asCoded(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}

func toDTO(d *models.Discount, productIDs []uuid.UUID, now time.Time) *DiscountDTO {
	if productIDs == nil {
		productIDs = []uuid.UUID{}
	}
	return &DiscountDTO{
		ID:          d.ID,
		Code:        d.Code,
		Name:        d.Name,
		Description: d.Description,
		Percentage:  d.Percentage,
		ValidFrom:   d.ValidFrom,
		ValidTo:     d.ValidTo,
		Active:      IsActive(*d, now),
		ProductIDs:  productIDs,
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
