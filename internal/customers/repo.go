package customers

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smes-pos/smes-backend/pkg/db/models"
)

// Repository persists customers.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *Repository) List(ctx context.Context) ([]models.Customer, error) {
	var rows []models.Customer
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

// Update writes the editable columns of an existing customer.
func (r *Repository) Update(ctx context.Context, customer *models.Customer) (bool, error) {
	res := r.db.WithContext(ctx).Model(customer).
		Select("name", "email", "phone", "address", "updated_at").
		Updates(customer)
	return res.RowsAffected > 0, res.Error
}

// Delete removes a customer. Sales keep their rows with the customer unset.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Customer{})
	return res.RowsAffected > 0, res.Error
}

// Search matches term against name and phone, case-insensitively.
func (r *Repository) Search(ctx context.Context, term string) ([]models.Customer, error) {
	like := "%" + strings.ToLower(term) + "%"
	var rows []models.Customer
	err := r.db.WithContext(ctx).
		Where("LOWER(name) LIKE ? OR LOWER(COALESCE(phone, '')) LIKE ?", like, like).
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}
