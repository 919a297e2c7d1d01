package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smes-pos/smes-backend/pkg/db"
	"github.com/smes-pos/smes-backend/pkg/db/models"
	"github.com/smes-pos/smes-backend/pkg/enums"
	"github.com/smes-pos/smes-backend/pkg/pagination"
)

// Repository persists sales and their items.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts the sale and its items in one statement batch.
func (r *Repository) Create(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("created_at ASC").Order("id ASC") }).
		First(&sale, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// FindByIDForUpdate locks the sale row before loading its items.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	if err := db.ForUpdate(r.db.WithContext(ctx)).First(&sale, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("sale_id = ?", sale.ID).
		Order("created_at ASC").Order("id ASC").
		Find(&sale.Items).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *Repository) FindByReceipt(ctx context.Context, receipt string) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&sale, "receipt_number = ?", receipt).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// TransitionStatus moves a sale from one status to another and reports
// whether the row was still in the expected status.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.SaleStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// List returns sales newest-first by sale date.
func (r *Repository) List(ctx context.Context, input ListSalesInput) (pagination.Page[models.Sale], error) {
	q := r.db.WithContext(ctx).Model(&models.Sale{})
	if input.From != nil {
		q = q.Where("sale_date >= ?", input.From.UTC())
	}
	if input.To != nil {
		q = q.Where("sale_date < ?", input.To.UTC())
	}
	if input.CustomerID != nil {
		q = q.Where("customer_id = ?", *input.CustomerID)
	}
	if input.Status != nil {
		q = q.Where("status = ?", *input.Status)
	}
	if input.Cashier != "" {
		q = q.Where("cashier = ?", input.Cashier)
	}

	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return pagination.Page[models.Sale]{}, err
	}
	if cursor != nil {
		q = q.Where("(sale_date < ?) OR (sale_date = ? AND id < ?)", cursor.At, cursor.At, cursor.ID)
	}

	var rows []models.Sale
	if err := q.Preload("Items").
		Order("sale_date DESC").Order("id DESC").
		Limit(pagination.LimitWithBuffer(input.Pagination.Limit)).
		Find(&rows).Error; err != nil {
		return pagination.Page[models.Sale]{}, err
	}
	return pagination.BuildPage(rows, input.Pagination.Limit, func(s models.Sale) pagination.Cursor {
		return pagination.Cursor{At: s.SaleDate, ID: s.ID}
	}), nil
}

// ListCompletedBetween loads completed sales in [from, to) without items.
func (r *Repository) ListCompletedBetween(ctx context.Context, from, to time.Time) ([]models.Sale, error) {
	var rows []models.Sale
	err := r.db.WithContext(ctx).
		Where("status = ? AND sale_date >= ? AND sale_date < ?", enums.SaleStatusCompleted, from.UTC(), to.UTC()).
		Order("sale_date ASC").
		Find(&rows).Error
	return rows, err
}
