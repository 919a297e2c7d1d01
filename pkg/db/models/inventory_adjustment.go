package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventoryAdjustment is an append-only log entry for every stock mutation
// that is not a plain sale.
type InventoryAdjustment struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID        uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	QuantityDelta    int       `gorm:"column:quantity_delta;not null"`
	PreviousQuantity int       `gorm:"column:previous_quantity;not null"`
	NewQuantity      int       `gorm:"column:new_quantity;not null"`
	Reason           string    `gorm:"column:reason;not null"`
	Actor            *string   `gorm:"column:actor"`
	AdjustedAt       time.Time `gorm:"column:adjusted_at;not null"`
}

func (a *InventoryAdjustment) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
