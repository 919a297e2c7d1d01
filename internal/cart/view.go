package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CartItemView is the priced representation of one line.
type CartItemView struct {
	ProductID      uuid.UUID       `json:"product_id"`
	ProductName    string          `json:"product_name"`
	SKU            string          `json:"sku"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalPrice     decimal.Decimal `json:"total_price"`
}

// CartView is recomputed from the live lines on every read. Subtotal is tax
// inclusive; PreTaxAmount and TaxAmount split it by back-calculation.
type CartView struct {
	Items              []CartItemView   `json:"items"`
	ItemCount          int              `json:"item_count"`
	Subtotal           decimal.Decimal  `json:"subtotal"`
	PreTaxAmount       decimal.Decimal  `json:"pre_tax_amount"`
	TaxAmount          decimal.Decimal  `json:"tax_amount"`
	ItemDiscount       decimal.Decimal  `json:"item_discount"`
	CartDiscount       decimal.Decimal  `json:"cart_discount"`
	DiscountAmount     decimal.Decimal  `json:"discount_amount"`
	Total              decimal.Decimal  `json:"total"`
	DiscountCode       *string          `json:"discount_code,omitempty"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
}

func newItemView(line Line) CartItemView {
	return CartItemView{
		ProductID:      line.ProductID,
		ProductName:    line.ProductName,
		SKU:            line.SKU,
		Quantity:       line.Quantity,
		UnitPrice:      line.UnitPrice,
		DiscountAmount: line.DiscountAmount,
		TotalPrice:     lineTotal(line),
	}
}

func lineTotal(line Line) decimal.Decimal {
	return line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
}

// SplitTax derives the pre-tax and tax parts of a tax-inclusive amount.
// The pre-tax part is rounded half-up to cents and tax is the remainder, so
// the two always sum back to amount.
func SplitTax(amount decimal.Decimal, rate decimal.Decimal) (preTax, tax decimal.Decimal) {
	preTax = amount.DivRound(decimal.NewFromInt(1).Add(rate), 2)
	return preTax, amount.Sub(preTax)
}

// PercentOf returns pct percent of amount rounded to cents.
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred).Round(2)
}

// price builds the view for a cart. cartPct is the percentage of the applied
// cart-level code, or nil when none contributes.
func price(cart Cart, rate decimal.Decimal, cartPct *decimal.Decimal) CartView {
	view := CartView{
		Items:        make([]CartItemView, 0, len(cart.Order)),
		Subtotal:     decimal.Zero,
		ItemDiscount: decimal.Zero,
		CartDiscount: decimal.Zero,
	}
	for _, id := range cart.Order {
		line, ok := cart.Lines[id]
		if !ok {
			continue
		}
		item := newItemView(*line)
		view.Items = append(view.Items, item)
		view.ItemCount += item.Quantity
		view.Subtotal = view.Subtotal.Add(item.TotalPrice)
		view.ItemDiscount = view.ItemDiscount.Add(item.DiscountAmount)
	}

	view.PreTaxAmount, view.TaxAmount = SplitTax(view.Subtotal, rate)

	if cart.DiscountCode != nil {
		code := *cart.DiscountCode
		view.DiscountCode = &code
	}
	if cartPct != nil {
		pct := *cartPct
		view.DiscountPercentage = &pct
		// Capped at what item discounts left, so the total never goes below zero.
		remaining := decimal.Max(view.Subtotal.Sub(view.ItemDiscount), decimal.Zero)
		view.CartDiscount = decimal.Min(PercentOf(view.Subtotal, pct), remaining)
	}

	view.DiscountAmount = view.ItemDiscount.Add(view.CartDiscount)
	view.Total = view.Subtotal.Sub(view.DiscountAmount)
	return view
}
