package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smes-pos/smes-backend/pkg/db"
	"github.com/smes-pos/smes-backend/pkg/db/models"
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

func (r *Repository) Create(ctx context.Context, txn *models.MpesaTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *Repository) Save(ctx context.Context, txn *models.MpesaTransaction) error {
	return r.db.WithContext(ctx).Save(txn).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.MpesaTransaction, error) {
	var txn models.MpesaTransaction
	if err := r.db.WithContext(ctx).First(&txn, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// FindByCheckoutRequestIDForUpdate locks the transaction a callback settles.
func (r *Repository) FindByCheckoutRequestIDForUpdate(ctx context.Context, checkoutRequestID string) (*models.MpesaTransaction, error) {
	var txn models.MpesaTransaction
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("checkout_request_id = ?", checkoutRequestID).
		Order("created_at ASC").
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *Repository) FindByRequestIDs(ctx context.Context, checkoutRequestID, merchantRequestID string) (*models.MpesaTransaction, error) {
	var txn models.MpesaTransaction
	err := r.db.WithContext(ctx).
		Where("checkout_request_id = ? AND merchant_request_id = ?", checkoutRequestID, merchantRequestID).
		Order("created_at DESC").
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}
