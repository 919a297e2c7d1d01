package products

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smes-pos/smes-backend/pkg/db"
	"github.com/smes-pos/smes-backend/pkg/db/models"
	"github.com/smes-pos/smes-backend/pkg/pagination"
)

// Repository is the catalog store: product rows and their stock counters.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads a product.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDForUpdate loads a product and row-locks it for the rest of the transaction.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := db.ForUpdate(r.db.WithContext(ctx)).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads every product in ids keyed by id; missing ids are simply absent.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *Repository) FindBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "sku = ?", sku).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) FindByBarcode(ctx context.Context, barcode string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "barcode = ?", barcode).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// Create inserts a new product row.
func (r *Repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// editableColumns are the catalog fields an update may write. Stock is left
// out: it only moves through DecrementStock, IncrementStock and SetStock.
var editableColumns = []string{
	"name", "sku", "barcode", "description", "price", "cost_price",
	"low_stock_threshold", "expiry_date", "category", "brand", "unit",
	"supplier_id", "updated_at",
}

// Update writes the editable catalog columns and returns the stored row, so
// the caller sees the live stock counter.
func (r *Repository) Update(ctx context.Context, product *models.Product) (*models.Product, error) {
	res := r.db.WithContext(ctx).Model(product).Select(editableColumns).Updates(product)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindByID(ctx, product.ID)
}

// Delete removes a product by ID and reports whether a row existed.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	return res.RowsAffected > 0, res.Error
}

// List returns newest-first products matching the filters, one page at a time.
func (r *Repository) List(ctx context.Context, input ListProductsInput) (pagination.Page[models.Product], error) {
	q := r.db.WithContext(ctx).Model(&models.Product{})
	if term := strings.TrimSpace(input.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ? OR barcode = ?", like, like, term)
	}
	if input.Category != nil {
		q = q.Where("category = ?", *input.Category)
	}
	if input.SupplierID != nil {
		q = q.Where("supplier_id = ?", *input.SupplierID)
	}

	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return pagination.Page[models.Product]{}, err
	}
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.At, cursor.At, cursor.ID)
	}

	var rows []models.Product
	if err := q.Order("created_at DESC").Order("id DESC").
		Limit(pagination.LimitWithBuffer(input.Pagination.Limit)).
		Find(&rows).Error; err != nil {
		return pagination.Page[models.Product]{}, err
	}
	return pagination.BuildPage(rows, input.Pagination.Limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{At: p.CreatedAt, ID: p.ID}
	}), nil
}

// ListLowStock returns products with a threshold whose stock is at or below it.
func (r *Repository) ListLowStock(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("low_stock_threshold IS NOT NULL AND quantity_in_stock <= low_stock_threshold").
		Order("quantity_in_stock ASC").Order("name ASC").
		Find(&rows).Error
	return rows, err
}

// ListExpiredInStock returns products past expiry that still hold stock.
func (r *Repository) ListExpiredInStock(ctx context.Context, now time.Time) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("expiry_date IS NOT NULL AND expiry_date < ? AND quantity_in_stock > 0", now.UTC()).
		Order("expiry_date ASC").
		Find(&rows).Error
	return rows, err
}

// ListExpiringBefore returns products whose expiry date falls before cutoff,
// soonest first, whether or not they still hold stock.
func (r *Repository) ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("expiry_date IS NOT NULL AND expiry_date < ?", cutoff.UTC()).
		Order("expiry_date ASC").Order("name ASC").
		Find(&rows).Error
	return rows, err
}

// DecrementStock atomically removes qty units if at least qty are available.
// It returns false when the guard rejected the update.
func (r *Repository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		"UPDATE products SET quantity_in_stock = quantity_in_stock - ?, updated_at = ? WHERE id = ? AND quantity_in_stock >= ?",
		qty, time.Now().UTC(), id, qty,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// IncrementStock adds qty units and reports whether the product exists.
func (r *Repository) IncrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		"UPDATE products SET quantity_in_stock = quantity_in_stock + ?, updated_at = ? WHERE id = ?",
		qty, time.Now().UTC(), id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetStock overwrites the stock counter.
func (r *Repository) SetStock(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		"UPDATE products SET quantity_in_stock = ?, updated_at = ? WHERE id = ?",
		qty, time.Now().UTC(), id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
