package purchases

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smes-pos/smes-backend/pkg/db/models"
	"github.com/smes-pos/smes-backend/pkg/enums"
)

type PurchaseItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	UnitCost  decimal.Decimal
}

type CreatePurchaseInput struct {
	SupplierID uuid.UUID
	Notes      string
	OrderedBy  string
	Items      []PurchaseItemInput
}

// ReorderInput places a supplier order for one low-stock product. A zero
// Quantity falls back to the suggested reorder quantity.
type ReorderInput struct {
	ProductID uuid.UUID
	Quantity  int
	Notes     string
	OrderedBy string
}

type PurchaseItemDTO struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

type PurchaseDTO struct {
	ID          uuid.UUID            `json:"id"`
	SupplierID  uuid.UUID            `json:"supplier_id"`
	Status      enums.PurchaseStatus `json:"status"`
	Notes       *string              `json:"notes,omitempty"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
	OrderedBy   *string              `json:"ordered_by,omitempty"`
	OrderedAt   time.Time            `json:"ordered_at"`
	ReceivedAt  *time.Time           `json:"received_at,omitempty"`
	Items       []PurchaseItemDTO    `json:"items"`
}

func toDTO(p models.Purchase) PurchaseDTO {
	items := make([]PurchaseItemDTO, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, PurchaseItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitCost:  item.UnitCost,
			TotalCost: item.TotalCost,
		})
	}
	return PurchaseDTO{
		ID:          p.ID,
		SupplierID:  p.SupplierID,
		Status:      p.Status,
		Notes:       p.Notes,
		TotalAmount: p.TotalAmount,
		OrderedBy:   p.OrderedBy,
		OrderedAt:   p.OrderedAt,
		ReceivedAt:  p.ReceivedAt,
		Items:       items,
	}
}
