package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/smes-pos/smes-backend/pkg/enums"
)

// Purchase is a supplier order that replenishes stock once received.
type Purchase struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	SupplierID  uuid.UUID            `gorm:"column:supplier_id;type:uuid;not null;index"`
	Status      enums.PurchaseStatus `gorm:"column:status;type:text;not null"`
	Notes       *string              `gorm:"column:notes"`
	TotalAmount decimal.Decimal      `gorm:"column:total_amount;type:numeric(12,2);not null"`
	OrderedBy   *string              `gorm:"column:ordered_by"`
	OrderedAt   time.Time            `gorm:"column:ordered_at;not null"`
	ReceivedAt  *time.Time           `gorm:"column:received_at"`
	Items       []PurchaseItem       `gorm:"foreignKey:PurchaseID"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Purchase) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PurchaseItem is one product line of a purchase.
type PurchaseItem struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PurchaseID uuid.UUID       `gorm:"column:purchase_id;type:uuid;not null;index"`
	ProductID  uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity   int             `gorm:"column:quantity;not null"`
	UnitCost   decimal.Decimal `gorm:"column:unit_cost;type:numeric(12,2);not null"`
	TotalCost  decimal.Decimal `gorm:"column:total_cost;type:numeric(12,2);not null"`
}

func (i *PurchaseItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
