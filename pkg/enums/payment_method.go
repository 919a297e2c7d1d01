package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod is how a customer settled a sale. It is recorded on the sale
// and printed on the receipt.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodMpesa        PaymentMethod = "MPESA"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

// DefaultPaymentMethod applies when a checkout names none.
const DefaultPaymentMethod = PaymentMethodCash

var paymentMethodAliases = map[string]PaymentMethod{
	"M_PESA": PaymentMethodMpesa,
	"BANK":   PaymentMethodBankTransfer,
}

func (p PaymentMethod) String() string {
	return string(p)
}

func (p PaymentMethod) IsValid() bool {
	switch p {
	case PaymentMethodCash, PaymentMethodMpesa, PaymentMethodCard, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// Label is the receipt form, e.g. "BANK TRANSFER".
func (p PaymentMethod) Label() string {
	return strings.ReplaceAll(string(p), "_", " ")
}

// SettledInDrawer is true for tender that lands in the till.
func (p PaymentMethod) SettledInDrawer() bool {
	return p == PaymentMethodCash
}

// ParsePaymentMethod accepts the canonical names case-insensitively, with
// spaces or dashes in place of underscores ("bank transfer", "m-pesa").
// Blank input yields DefaultPaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	key := strings.ToUpper(strings.TrimSpace(value))
	if key == "" {
		return DefaultPaymentMethod, nil
	}
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if alias, ok := paymentMethodAliases[key]; ok {
		return alias, nil
	}
	if method := PaymentMethod(key); method.IsValid() {
		return method, nil
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
