package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smes-pos/smes-backend/pkg/db/models"
)

// Repository persists the append-only adjustment log.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, adj *models.InventoryAdjustment) error {
	return r.db.WithContext(ctx).Create(adj).Error
}

// ListForProduct returns the newest adjustments first.
func (r *Repository) ListForProduct(ctx context.Context, productID uuid.UUID, limit int) ([]models.InventoryAdjustment, error) {
	var rows []models.InventoryAdjustment
	q := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("adjusted_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
