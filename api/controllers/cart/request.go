package cart

import (
	"github.com/google/uuid"

	cartsvc "github.com/smes-pos/smes-backend/internal/cart"
	"github.com/smes-pos/smes-backend/internal/checkout"
	"github.com/smes-pos/smes-backend/pkg/enums"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
)

type addItemsRequest struct {
	Items []addItemRequest `json:"items" validate:"required,min=1,dive"`
}

type addItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

func (r addItemsRequest) toInputs() []cartsvc.ItemInput {
	out := make([]cartsvc.ItemInput, 0, len(r.Items))
	for _, item := range r.Items {
		out = append(out, cartsvc.ItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type applyDiscountRequest struct {
	Code string `json:"code" validate:"required"`
}

type checkoutRequest struct {
	CustomerID    *uuid.UUID `json:"customer_id,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
}

func (r checkoutRequest) toInput() (checkout.CheckoutInput, error) {
	method, err := enums.ParsePaymentMethod(r.PaymentMethod)
	if err != nil {
		return checkout.CheckoutInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}
	input := checkout.CheckoutInput{PaymentMethod: method}
	if r.CustomerID != nil && *r.CustomerID != uuid.Nil {
		id := *r.CustomerID
		input.CustomerID = &id
	}
	return input, nil
}
