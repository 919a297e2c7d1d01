package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smes-pos/smes-backend/pkg/db/models"
	"github.com/smes-pos/smes-backend/pkg/enums"
)

// ProductDTO is the catalog payload returned to clients.
type ProductDTO struct {
	ID                uuid.UUID             `json:"id"`
	Name              string                `json:"name"`
	SKU               string                `json:"sku"`
	Barcode           *string               `json:"barcode,omitempty"`
	Description       *string               `json:"description,omitempty"`
	Price             decimal.Decimal       `json:"price"`
	CostPrice         decimal.Decimal       `json:"cost_price"`
	QuantityInStock   int                   `json:"quantity_in_stock"`
	LowStockThreshold *int                  `json:"low_stock_threshold,omitempty"`
	ExpiryDate        *time.Time            `json:"expiry_date,omitempty"`
	Category          *string               `json:"category,omitempty"`
	Brand             *string               `json:"brand,omitempty"`
	Unit              *string               `json:"unit,omitempty"`
	SupplierID        *uuid.UUID            `json:"supplier_id,omitempty"`
	InventoryStatus   enums.InventoryStatus `json:"inventory_status"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// NewProductDTO builds a DTO from the persisted model.
func NewProductDTO(p *models.Product, now time.Time) *ProductDTO {
	return &ProductDTO{
		ID:                p.ID,
		Name:              p.Name,
		SKU:               p.SKU,
		Barcode:           p.Barcode,
		Description:       p.Description,
		Price:             p.Price,
		CostPrice:         p.CostPrice,
		QuantityInStock:   p.QuantityInStock,
		LowStockThreshold: p.LowStockThreshold,
		ExpiryDate:        p.ExpiryDate,
		Category:          p.Category,
		Brand:             p.Brand,
		Unit:              p.Unit,
		SupplierID:        p.SupplierID,
		InventoryStatus:   StatusOf(*p, now),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// StatusOf classifies stock health. Expiry wins over quantity.
func StatusOf(p models.Product, now time.Time) enums.InventoryStatus {
	switch {
	case p.IsExpired(now):
		return enums.InventoryStatusExpired
	case p.QuantityInStock == 0:
		return enums.InventoryStatusOutOfStock
	case p.LowStockThreshold != nil && p.QuantityInStock <= *p.LowStockThreshold:
		return enums.InventoryStatusLowStock
	default:
		return enums.InventoryStatusOK
	}
}
