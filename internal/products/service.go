package products

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
	"github.com/smes-pos/smes-backend/pkg/pagination"
)

// Service exposes catalog management operations.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, productID uuid.UUID) error
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	GetBySKU(ctx context.Context, sku string) (*ProductDTO, error)
	GetByBarcode(ctx context.Context, barcode string) (*ProductDTO, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	ListLowStock(ctx context.Context) ([]ProductDTO, error)
	// ListExpiring lists products expiring before the cutoff, which defaults
	// to DefaultExpiryHorizon from now.
	ListExpiring(ctx context.Context, before *time.Time) ([]ProductDTO, error)
}

const DefaultExpiryHorizon = 100 * 24 * time.Hour

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name              string
	SKU               string
	Barcode           *string
	Description       *string
	Price             decimal.Decimal
	CostPrice         decimal.Decimal
	QuantityInStock   int
	LowStockThreshold *int
	ExpiryDate        *time.Time
	Category          *string
	Brand             *string
	Unit              *string
	SupplierID        *uuid.UUID
}

// UpdateProductInput holds optional mutation values. Stock is not editable
// here; it only moves through sales, purchases and inventory adjustments.
type UpdateProductInput struct {
	Name              *string
	SKU               *string
	Barcode           *string
	Description       *string
	Price             *decimal.Decimal
	CostPrice         *decimal.Decimal
	LowStockThreshold *int
	ExpiryDate        *time.Time
	Category          *string
	Brand             *string
	Unit              *string
	SupplierID        *uuid.UUID
}

type supplierLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Supplier, error)
}

type service struct {
	repo      *Repository
	suppliers supplierLoader
	now       func() time.Time
}

// NewService constructs a product service instance.
func NewService(repo *Repository, suppliers supplierLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if suppliers == nil {
		return nil, fmt.Errorf("supplier loader required")
	}
	return &service{repo: repo, suppliers: suppliers, now: time.Now}, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	product := &models.Product{
		Name:              strings.TrimSpace(input.Name),
		SKU:               strings.TrimSpace(input.SKU),
		Barcode:           trimmedOrNil(input.Barcode),
		Description:       trimmedOrNil(input.Description),
		Price:             input.Price.Round(2),
		CostPrice:         input.CostPrice.Round(2),
		QuantityInStock:   input.QuantityInStock,
		LowStockThreshold: input.LowStockThreshold,
		ExpiryDate:        utcOrNil(input.ExpiryDate),
		Category:          trimmedOrNil(input.Category),
		Brand:             trimmedOrNil(input.Brand),
		Unit:              trimmedOrNil(input.Unit),
		SupplierID:        input.SupplierID,
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if err := s.ensureSupplier(ctx, product.SupplierID); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return NewProductDTO(created, s.now()), nil
}

func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	applyUpdateToProduct(product, input)
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if input.SupplierID != nil {
		if err := s.ensureSupplier(ctx, product.SupplierID); err != nil {
			return nil, err
		}
	}

	updated, err := s.repo.Update(ctx, product)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return NewProductDTO(updated, s.now()), nil
}

func (s *service) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete product")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
	}
	return nil
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	return NewProductDTO(product, s.now()), nil
}

func (s *service) GetBySKU(ctx context.Context, sku string) (*ProductDTO, error) {
	product, err := s.repo.FindBySKU(ctx, strings.TrimSpace(sku))
	if err != nil {
		return nil, mapReadError(err)
	}
	return NewProductDTO(product, s.now()), nil
}

func (s *service) GetByBarcode(ctx context.Context, barcode string) (*ProductDTO, error) {
	product, err := s.repo.FindByBarcode(ctx, strings.TrimSpace(barcode))
	if err != nil {
		return nil, mapReadError(err)
	}
	return NewProductDTO(product, s.now()), nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	if _, err := pagination.ParseCursor(input.Pagination.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	page, err := s.repo.List(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	now := s.now()
	out := &ProductListResult{Products: make([]ProductDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
	for i := range page.Items {
		out.Products = append(out.Products, *NewProductDTO(&page.Items[i], now))
	}
	return out, nil
}

func (s *service) ListLowStock(ctx context.Context) ([]ProductDTO, error) {
	rows, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list low stock products")
	}
	now := s.now()
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewProductDTO(&rows[i], now))
	}
	return out, nil
}

func (s *service) ListExpiring(ctx context.Context, before *time.Time) ([]ProductDTO, error) {
	now := s.now()
	cutoff := now.Add(DefaultExpiryHorizon)
	if before != nil {
		cutoff = *before
	}
	rows, err := s.repo.ListExpiringBefore(ctx, cutoff)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list expiring products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewProductDTO(&rows[i], now))
	}
	return out, nil
}

func (s *service) load(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, mapReadError(err)
	}
	return product, nil
}

func (s *service) ensureSupplier(ctx context.Context, supplierID *uuid.UUID) error {
	if supplierID == nil {
		return nil
	}
	if _, err := s.suppliers.FindByID(ctx, *supplierID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "supplier does not exist")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load supplier")
	}
	return nil
}

func validateProduct(p *models.Product) error {
	switch {
	case p.Name == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	case p.SKU == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	case p.Price.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	case p.CostPrice.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "cost_price cannot be negative")
	case p.QuantityInStock < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity_in_stock cannot be negative")
	case p.LowStockThreshold != nil && *p.LowStockThreshold < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "low_stock_threshold cannot be negative")
	}
	return nil
}

func applyUpdateToProduct(p *models.Product, input UpdateProductInput) {
	if input.Name != nil {
		p.Name = strings.TrimSpace(*input.Name)
	}
	if input.SKU != nil {
		p.SKU = strings.TrimSpace(*input.SKU)
	}
	if input.Barcode != nil {
		p.Barcode = trimmedOrNil(input.Barcode)
	}
	if input.Description != nil {
		p.Description = trimmedOrNil(input.Description)
	}
	if input.Price != nil {
		p.Price = input.Price.Round(2)
	}
	if input.CostPrice != nil {
		p.CostPrice = input.CostPrice.Round(2)
	}
	if input.LowStockThreshold != nil {
		v := *input.LowStockThreshold
		p.LowStockThreshold = &v
	}
	if input.ExpiryDate != nil {
		p.ExpiryDate = utcOrNil(input.ExpiryDate)
	}
	if input.Category != nil {
		p.Category = trimmedOrNil(input.Category)
	}
	if input.Brand != nil {
		p.Brand = trimmedOrNil(input.Brand)
	}
	if input.Unit != nil {
		p.Unit = trimmedOrNil(input.Unit)
	}
	if input.SupplierID != nil {
		id := *input.SupplierID
		p.SupplierID = &id
	}
}

func mapReadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
}

func mapWriteError(err error) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "sku or barcode already in use")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist product")
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func utcOrNil(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	t := value.UTC()
	return &t
}
