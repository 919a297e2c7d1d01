package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smes-pos/smes-backend/pkg/enums"
)

// SaleLine is one product line as reported on sale events.
type SaleLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// SaleCompletedEvent is emitted when a checkout commits.
type SaleCompletedEvent struct {
	SaleID         uuid.UUID           `json:"sale_id"`
	ReceiptNumber  string              `json:"receipt_number"`
	CustomerID     *uuid.UUID          `json:"customer_id,omitempty"`
	Cashier        string              `json:"cashier"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	DiscountAmount decimal.Decimal     `json:"discount_amount"`
	TaxAmount      decimal.Decimal     `json:"tax_amount"`
	Total          decimal.Decimal     `json:"total"`
	Lines          []SaleLine          `json:"lines"`
	SaleDate       time.Time           `json:"sale_date"`
}

// SaleReversedEvent is emitted when a completed sale is cancelled or refunded.
type SaleReversedEvent struct {
	SaleID        uuid.UUID        `json:"sale_id"`
	ReceiptNumber string           `json:"receipt_number"`
	Status        enums.SaleStatus `json:"status"`
	Total         decimal.Decimal  `json:"total"`
	Lines         []SaleLine       `json:"lines"`
}

// StockAdjustedEvent is emitted for every logged inventory adjustment.
type StockAdjustedEvent struct {
	ProductID        uuid.UUID `json:"product_id"`
	QuantityDelta    int       `json:"quantity_delta"`
	PreviousQuantity int       `json:"previous_quantity"`
	NewQuantity      int       `json:"new_quantity"`
	Reason           string    `json:"reason"`
}

// PurchaseReceivedEvent is emitted when supplier goods are booked into stock.
type PurchaseReceivedEvent struct {
	PurchaseID  uuid.UUID       `json:"purchase_id"`
	SupplierID  uuid.UUID       `json:"supplier_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
}

// PaymentStatusEvent is emitted when an M-Pesa callback settles a transaction.
type PaymentStatusEvent struct {
	TransactionID      uuid.UUID         `json:"transaction_id"`
	SaleID             *uuid.UUID        `json:"sale_id,omitempty"`
	CheckoutRequestID  string            `json:"checkout_request_id"`
	Status             enums.MpesaStatus `json:"status"`
	Amount             decimal.Decimal   `json:"amount"`
	MpesaReceiptNumber *string           `json:"mpesa_receipt_number,omitempty"`
	ResultDesc         *string           `json:"result_desc,omitempty"`
}
