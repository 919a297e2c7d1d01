package products

import (
	"github.com/google/uuid"

	"github.com/smes-pos/smes-backend/pkg/pagination"
)

// ListProductsInput captures catalog browse filters.
type ListProductsInput struct {
	Query      string
	Category   *string
	SupplierID *uuid.UUID
	Pagination pagination.Params
}

// ProductListResult is one page of catalog entries.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}
