package enums

import "fmt"

// InventoryStatus summarises the stock health of a product.
type InventoryStatus string

const (
	InventoryStatusOK         InventoryStatus = "OK"
	InventoryStatusLowStock   InventoryStatus = "LOW_STOCK"
	InventoryStatusOutOfStock InventoryStatus = "OUT_OF_STOCK"
	InventoryStatusExpired    InventoryStatus = "EXPIRED"
)

var validInventoryStatuses = []InventoryStatus{
	InventoryStatusOK,
	InventoryStatusLowStock,
	InventoryStatusOutOfStock,
	InventoryStatusExpired,
}

// String implements fmt.Stringer.
func (i InventoryStatus) String() string {
	return string(i)
}

// IsValid reports whether the value is a known InventoryStatus.
func (i InventoryStatus) IsValid() bool {
	for _, candidate := range validInventoryStatuses {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseInventoryStatus converts raw input into a InventoryStatus.
func ParseInventoryStatus(value string) (InventoryStatus, error) {
	for _, candidate := range validInventoryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory status %q", value)
}
