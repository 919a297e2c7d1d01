package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a sellable catalog entry and the unit of stock accounting.
type Product struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name              string          `gorm:"column:name;not null"`
	SKU               string          `gorm:"column:sku;not null;uniqueIndex"`
	Barcode           *string         `gorm:"column:barcode;uniqueIndex"`
	Description       *string         `gorm:"column:description"`
	Price             decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	CostPrice         decimal.Decimal `gorm:"column:cost_price;type:numeric(12,2);not null"`
	QuantityInStock   int             `gorm:"column:quantity_in_stock;not null;check:quantity_in_stock >= 0"`
	LowStockThreshold *int            `gorm:"column:low_stock_threshold"`
	ExpiryDate        *time.Time      `gorm:"column:expiry_date"`
	Category          *string         `gorm:"column:category"`
	Brand             *string         `gorm:"column:brand"`
	Unit              *string         `gorm:"column:unit"`
	SupplierID        *uuid.UUID      `gorm:"column:supplier_id;type:uuid"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Threshold returns the configured low-stock threshold or zero.
func (p Product) Threshold() int {
	if p.LowStockThreshold == nil {
		return 0
	}
	return *p.LowStockThreshold
}

// IsExpired reports whether the product expiry date lies before now.
func (p Product) IsExpired(now time.Time) bool {
	return p.ExpiryDate != nil && p.ExpiryDate.Before(now)
}
