package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/smes-pos/smes-backend/pkg/enums"
)

// Sale is the durable record of a checkout.
type Sale struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ReceiptNumber  string              `gorm:"column:receipt_number;not null;uniqueIndex"`
	CustomerID     *uuid.UUID          `gorm:"column:customer_id;type:uuid"`
	Cashier        string              `gorm:"column:cashier;not null"`
	Status         enums.SaleStatus    `gorm:"column:status;type:text;not null"`
	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	DiscountCode   *string             `gorm:"column:discount_code"`
	Subtotal       decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal     `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TaxAmount      decimal.Decimal     `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	Total          decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	Profit         decimal.Decimal     `gorm:"column:profit;type:numeric(12,2);not null"`
	SaleDate       time.Time           `gorm:"column:sale_date;not null"`
	Items          []SaleItem          `gorm:"foreignKey:SaleID"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Sale) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SaleItem snapshots the price of one product at the time of sale.
type SaleItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SaleID         uuid.UUID       `gorm:"column:sale_id;type:uuid;not null;index"`
	ProductID      uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName    string          `gorm:"column:product_name;not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	UnitPrice      decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CostPrice      decimal.Decimal `gorm:"column:cost_price;type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TotalPrice     decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *SaleItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
