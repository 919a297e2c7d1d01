package sales

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smes-pos/smes-backend/pkg/db/models"
	"github.com/smes-pos/smes-backend/pkg/enums"
	"github.com/smes-pos/smes-backend/pkg/pagination"
)

type SaleItemView struct {
	ID             uuid.UUID       `json:"id"`
	ProductID      uuid.UUID       `json:"product_id"`
	ProductName    string          `json:"product_name"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalPrice     decimal.Decimal `json:"total_price"`
}

// SaleView is the API representation of a sale. Cost prices stay internal.
type SaleView struct {
	ID             uuid.UUID           `json:"id"`
	ReceiptNumber  string              `json:"receipt_number"`
	CustomerID     *uuid.UUID          `json:"customer_id,omitempty"`
	Cashier        string              `json:"cashier"`
	Status         enums.SaleStatus    `json:"status"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method"`
	DiscountCode   *string             `json:"discount_code,omitempty"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	DiscountAmount decimal.Decimal     `json:"discount_amount"`
	TaxAmount      decimal.Decimal     `json:"tax_amount"`
	Total          decimal.Decimal     `json:"total"`
	Profit         decimal.Decimal     `json:"profit"`
	SaleDate       time.Time           `json:"sale_date"`
	Items          []SaleItemView      `json:"items"`
}

func NewSaleView(s models.Sale) SaleView {
	items := make([]SaleItemView, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, SaleItemView{
			ID:             item.ID,
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			DiscountAmount: item.DiscountAmount,
			TotalPrice:     item.TotalPrice,
		})
	}
	return SaleView{
		ID:             s.ID,
		ReceiptNumber:  s.ReceiptNumber,
		CustomerID:     s.CustomerID,
		Cashier:        s.Cashier,
		Status:         s.Status,
		PaymentMethod:  s.PaymentMethod,
		DiscountCode:   s.DiscountCode,
		Subtotal:       s.Subtotal,
		DiscountAmount: s.DiscountAmount,
		TaxAmount:      s.TaxAmount,
		Total:          s.Total,
		Profit:         s.Profit,
		SaleDate:       s.SaleDate,
		Items:          items,
	}
}

// ListSalesInput filters the sales history.
type ListSalesInput struct {
	From       *time.Time
	To         *time.Time
	CustomerID *uuid.UUID
	Status     *enums.SaleStatus
	Cashier    string
	Pagination pagination.Params
}

type SaleListResult struct {
	Sales      []SaleView `json:"sales"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

type ReceiptLine struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Amount      decimal.Decimal `json:"amount"`
}

// Receipt is the printable form of a sale.
type Receipt struct {
	ReceiptNumber  string              `json:"receipt_number"`
	SaleDate       time.Time           `json:"sale_date"`
	Cashier        string              `json:"cashier"`
	CustomerName   *string             `json:"customer_name,omitempty"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method"`
	PaymentLabel   string              `json:"payment_label"`
	Status         enums.SaleStatus    `json:"status"`
	Lines          []ReceiptLine       `json:"lines"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	DiscountAmount decimal.Decimal     `json:"discount_amount"`
	PreTaxAmount   decimal.Decimal     `json:"pre_tax_amount"`
	TaxAmount      decimal.Decimal     `json:"tax_amount"`
	Total          decimal.Decimal     `json:"total"`
}

// DailySummary aggregates the completed sales of one calendar day.
type DailySummary struct {
	Date           string          `json:"date"`
	SaleCount      int             `json:"sale_count"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Revenue        decimal.Decimal `json:"revenue"`
	Profit         decimal.Decimal `json:"profit"`
	CashInDrawer   decimal.Decimal `json:"cash_in_drawer"`

	ByPaymentMethod map[enums.PaymentMethod]decimal.Decimal `json:"by_payment_method"`
}

// NewReceiptNumber derives a human-readable receipt number from the sale id.
func NewReceiptNumber(id uuid.UUID, at time.Time) string {
	return "RCPT-" + at.UTC().Format("20060102") + "-" + strings.ToUpper(id.String()[:8])
}
