package suppliers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smes-pos/smes-backend/pkg/db/models"
)

// Repository persists suppliers.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, supplier *models.Supplier) error {
	return r.db.WithContext(ctx).Create(supplier).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Supplier, error) {
	var supplier models.Supplier
	if err := r.db.WithContext(ctx).First(&supplier, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (r *Repository) List(ctx context.Context) ([]models.Supplier, error) {
	var rows []models.Supplier
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

// Update writes the editable columns of an existing supplier.
func (r *Repository) Update(ctx context.Context, supplier *models.Supplier) (bool, error) {
	res := r.db.WithContext(ctx).Model(supplier).
		Select("name", "contact_person", "email", "phone", "address", "updated_at").
		Updates(supplier)
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Supplier{})
	return res.RowsAffected > 0, res.Error
}

// References counts the products and purchases pointing at a supplier.
func (r *Repository) References(ctx context.Context, id uuid.UUID) (products, purchases int64, err error) {
	if err = r.db.WithContext(ctx).Model(&models.Product{}).Where("supplier_id = ?", id).Count(&products).Error; err != nil {
		return 0, 0, err
	}
	if err = r.db.WithContext(ctx).Model(&models.Purchase{}).Where("supplier_id = ?", id).Count(&purchases).Error; err != nil {
		return 0, 0, err
	}
	return products, purchases, nil
}
