package mpesa

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CallbackRequest is the body Daraja posts to the configured callback URL.
type CallbackRequest struct {
	Body struct {
		StkCallback *StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

// StkCallback carries the final outcome of an STK push.
type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

// CallbackItem values arrive as numbers or strings depending on the field.
type CallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

// PaymentDetails are the metadata fields reported for a successful payment.
type PaymentDetails struct {
	Amount             *decimal.Decimal
	MpesaReceiptNumber string
	PhoneNumber        string
	TransactionDate    *time.Time
}

// Succeeded reports whether the customer completed the payment.
func (c StkCallback) Succeeded() bool {
	return c.ResultCode == 0
}

// Details extracts the known metadata items; unparseable values are skipped.
func (c StkCallback) Details() PaymentDetails {
	var out PaymentDetails
	if c.CallbackMetadata == nil {
		return out
	}
	for _, item := range c.CallbackMetadata.Item {
		raw := rawScalar(item.Value)
		if raw == "" {
			continue
		}
		switch item.Name {
		case "Amount":
			if amount, err := decimal.NewFromString(raw); err == nil {
				out.Amount = &amount
			}
		case "MpesaReceiptNumber":
			out.MpesaReceiptNumber = raw
		case "PhoneNumber":
			out.PhoneNumber = raw
		case "TransactionDate":
			if ts, err := time.ParseInLocation(timestampLayout, raw, nairobi); err == nil {
				utc := ts.UTC()
				out.TransactionDate = &utc
			}
		}
	}
	return out
}

// Daraja reports TransactionDate in East Africa Time.
var nairobi = time.FixedZone("EAT", 3*60*60)

func rawScalar(value json.RawMessage) string {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	return string(trimmed)
}
