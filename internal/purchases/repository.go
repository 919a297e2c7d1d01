package purchases

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smes-pos/smes-backend/pkg/db"
	"github.com/smes-pos/smes-backend/pkg/db/models"
	"github.com/smes-pos/smes-backend/pkg/enums"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).Preload("Items").First(&purchase, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

// FindByIDForUpdate locks the purchase row, then loads its items.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := db.ForUpdate(r.db.WithContext(ctx)).First(&purchase, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("purchase_id = ?", purchase.ID).Find(&purchase.Items).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

// List returns purchases newest-first, optionally filtered by status and supplier.
func (r *Repository) List(ctx context.Context, status *enums.PurchaseStatus, supplierID *uuid.UUID) ([]models.Purchase, error) {
	q := r.db.WithContext(ctx).Preload("Items")
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if supplierID != nil {
		q = q.Where("supplier_id = ?", *supplierID)
	}
	var rows []models.Purchase
	if err := q.Order("ordered_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// TransitionStatus moves a PENDING purchase to status and reports whether
// the row was still pending.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, status enums.PurchaseStatus, receivedAt *time.Time) (bool, error) {
	updates := map[string]any{"status": status, "updated_at": time.Now().UTC()}
	if receivedAt != nil {
		updates["received_at"] = receivedAt.UTC()
	}
	res := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND status = ?", id, enums.PurchaseStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
