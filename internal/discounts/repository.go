package discounts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smes-pos/smes-backend/pkg/db/models"
)

// Repository persists discounts and the discount_products join rows.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	var discount models.Discount
	if err := r.db.WithContext(ctx).First(&discount, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &discount, nil
}

// FindByCode matches codes case-insensitively; codes are stored upper-cased.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Discount, error) {
	var discount models.Discount
	if err := r.db.WithContext(ctx).First(&discount, "code = ?", normalizeCode(code)).Error; err != nil {
		return nil, err
	}
	return &discount, nil
}

// ListForProduct returns every discount linked to the product, valid or not.
func (r *Repository) ListForProduct(ctx context.Context, productID uuid.UUID) ([]models.Discount, error) {
	var rows []models.Discount
	err := r.db.WithContext(ctx).
		Joins("JOIN discount_products dp ON dp.discount_id = discounts.id").
		Where("dp.product_id = ?", productID).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) List(ctx context.Context) ([]models.Discount, error) {
	var rows []models.Discount
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error
	return rows, err
}

func (r *Repository) Create(ctx context.Context, discount *models.Discount) error {
	return r.db.WithContext(ctx).Create(discount).Error
}

func (r *Repository) Update(ctx context.Context, discount *models.Discount) error {
	return r.db.WithContext(ctx).Save(discount).Error
}

// Delete removes the discount after its join rows.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := r.db.WithContext(ctx).Where("discount_id = ?", id).Delete(&models.DiscountProduct{}).Error; err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Discount{})
	return res.RowsAffected > 0, res.Error
}

// AttachProducts links products to the discount; existing links are kept.
func (r *Repository) AttachProducts(ctx context.Context, discountID uuid.UUID, productIDs []uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}
	rows := make([]models.DiscountProduct, 0, len(productIDs))
	for _, id := range productIDs {
		rows = append(rows, models.DiscountProduct{DiscountID: discountID, ProductID: id})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// DetachProduct removes one link and reports whether it existed.
func (r *Repository) DetachProduct(ctx context.Context, discountID, productID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("discount_id = ? AND product_id = ?", discountID, productID).
		Delete(&models.DiscountProduct{})
	return res.RowsAffected > 0, res.Error
}

// ProductIDs lists the products linked to the discount.
func (r *Repository) ProductIDs(ctx context.Context, discountID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.DiscountProduct{}).
		Where("discount_id = ?", discountID).
		Order("created_at ASC").
		Pluck("product_id", &ids).Error
	return ids, err
}
