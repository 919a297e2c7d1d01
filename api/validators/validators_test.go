package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
)

type lineRequest struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

type orderRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	Items  []lineRequest   `json:"items" validate:"required,min=1,dive"`
}

func decode(body string) error {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dest orderRequest
	return DecodeJSONBody(req, &dest)
}

func detailsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok, "unexpected details %T", typed.Details())
	return details
}

func TestDecodeJSONBodyValidatesDecimalsAndNestedItems(t *testing.T) {
	require.NoError(t, decode(`{"amount":"12.50","items":[{"quantity":2}]}`))

	details := detailsOf(t, decode(`{"amount":"0","items":[{"quantity":0}]}`))
	require.Equal(t, "must be greater than 0", details["amount"])
	require.Equal(t, "must be greater than 0", details["items[0].quantity"])
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	tests := map[string]struct {
		body    string
		message string
	}{
		"empty":         {body: "", message: "request body is required"},
		"unknown field": {body: `{"amount":"1","items":[{"quantity":1}],"extra":true}`, message: "invalid request body"},
		"trailing":      {body: `{"amount":"1","items":[{"quantity":1}]} {}`, message: "request body must contain a single json object"},
		"syntax":        {body: `{"amount":}`, message: "malformed json"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			typed := pkgerrors.As(decode(tc.body))
			require.NotNil(t, typed)
			require.Equal(t, pkgerrors.CodeValidation, typed.Code())
			require.Equal(t, tc.message, typed.Message())
		})
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&page=x", nil)

	got, err := ParseQueryInt(req, "missing", 25, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 25, got)

	_, err = ParseQueryInt(req, "limit", 25, 1, 100)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = ParseQueryInt(req, "page", 1, 1, 10)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "Sugar 2kg", SanitizeString("  Sugar \t\n 2kg\x00 ", 0))
	require.Equal(t, "Café", SanitizeString("Café au lait", 4))
	require.Equal(t, "abc", SanitizeString("abc", 10))
}
