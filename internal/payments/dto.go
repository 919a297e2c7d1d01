package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smes-pos/smes-backend/pkg/db/models"
	"github.com/smes-pos/smes-backend/pkg/enums"
)

// InitiateInput starts an STK push for an amount, optionally tied to a sale.
type InitiateInput struct {
	SaleID           *uuid.UUID
	Amount           decimal.Decimal
	PhoneNumber      string
	AccountReference string
	TransactionDesc  string
}

type TransactionDTO struct {
	ID                 uuid.UUID         `json:"id"`
	SaleID             *uuid.UUID        `json:"sale_id,omitempty"`
	MerchantRequestID  *string           `json:"merchant_request_id,omitempty"`
	CheckoutRequestID  *string           `json:"checkout_request_id,omitempty"`
	PhoneNumber        string            `json:"phone_number"`
	Amount             decimal.Decimal   `json:"amount"`
	AccountReference   string            `json:"account_reference"`
	Status             enums.MpesaStatus `json:"status"`
	ResultCode         *int              `json:"result_code,omitempty"`
	ResultDesc         *string           `json:"result_desc,omitempty"`
	MpesaReceiptNumber *string           `json:"mpesa_receipt_number,omitempty"`
	TransactionDate    *time.Time        `json:"transaction_date,omitempty"`
	CustomerMessage    string            `json:"customer_message,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

func toDTO(t models.MpesaTransaction) TransactionDTO {
	return TransactionDTO{
		ID:                 t.ID,
		SaleID:             t.SaleID,
		MerchantRequestID:  t.MerchantRequestID,
		CheckoutRequestID:  t.CheckoutRequestID,
		PhoneNumber:        t.PhoneNumber,
		Amount:             t.Amount,
		AccountReference:   t.AccountReference,
		Status:             t.Status,
		ResultCode:         t.ResultCode,
		ResultDesc:         t.ResultDesc,
		MpesaReceiptNumber: t.MpesaReceiptNumber,
		TransactionDate:    t.TransactionDate,
		CreatedAt:          t.CreatedAt,
	}
}
