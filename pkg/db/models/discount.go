package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Discount is a percentage reduction usable within an optional validity window.
type Discount struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Code        string          `gorm:"column:code;not null;uniqueIndex"`
	Name        string          `gorm:"column:name;not null"`
	Description *string         `gorm:"column:description"`
	Percentage  decimal.Decimal `gorm:"column:percentage;type:numeric(5,2);not null"`
	ValidFrom   *time.Time      `gorm:"column:valid_from"`
	ValidTo     *time.Time      `gorm:"column:valid_to"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *Discount) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// DiscountProduct is one row of the discount/product join table.
type DiscountProduct struct {
	DiscountID uuid.UUID `gorm:"column:discount_id;type:uuid;primaryKey"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (DiscountProduct) TableName() string { return "discount_products" }
