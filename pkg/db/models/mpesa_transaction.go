package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/smes-pos/smes-backend/pkg/enums"
)

// MpesaTransaction tracks an STK push from initiation to callback.
type MpesaTransaction struct {
	ID                 uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	SaleID             *uuid.UUID        `gorm:"column:sale_id;type:uuid"`
	MerchantRequestID  *string           `gorm:"column:merchant_request_id"`
	CheckoutRequestID  *string           `gorm:"column:checkout_request_id;index"`
	PhoneNumber        string            `gorm:"column:phone_number;not null"`
	Amount             decimal.Decimal   `gorm:"column:amount;type:numeric(12,2);not null"`
	AccountReference   string            `gorm:"column:account_reference;not null"`
	Status             enums.MpesaStatus `gorm:"column:status;type:text;not null"`
	ResultCode         *int              `gorm:"column:result_code"`
	ResultDesc         *string           `gorm:"column:result_desc"`
	MpesaReceiptNumber *string           `gorm:"column:mpesa_receipt_number"`
	TransactionDate    *time.Time        `gorm:"column:transaction_date"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *MpesaTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
