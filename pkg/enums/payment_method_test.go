package enums

import "testing"

func TestParsePaymentMethod(t *testing.T) {
	cases := map[string]PaymentMethod{
		"":              PaymentMethodCash,
		"  ":            PaymentMethodCash,
		"cash":          PaymentMethodCash,
		"Mpesa":         PaymentMethodMpesa,
		"m-pesa":        PaymentMethodMpesa,
		"bank transfer": PaymentMethodBankTransfer,
		"BANK_TRANSFER": PaymentMethodBankTransfer,
		"bank":          PaymentMethodBankTransfer,
		" card ":        PaymentMethodCard,
	}
	for raw, want := range cases {
		got, err := ParsePaymentMethod(raw)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", raw, err)
		}
		if got != want {
			t.Fatalf("%q: expected %s got %s", raw, want, got)
		}
	}

	for _, raw := range []string{"cheque", "credit", "mpesa!"} {
		if _, err := ParsePaymentMethod(raw); err == nil {
			t.Fatalf("%q: expected error", raw)
		}
	}
}

func TestPaymentMethodLabelAndDrawer(t *testing.T) {
	if got := PaymentMethodBankTransfer.Label(); got != "BANK TRANSFER" {
		t.Fatalf("unexpected label %q", got)
	}
	if !PaymentMethodCash.SettledInDrawer() || PaymentMethodMpesa.SettledInDrawer() {
		t.Fatal("only cash settles in the drawer")
	}
}
