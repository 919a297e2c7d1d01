package payments

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smes-pos/smes-backend/api/responses"
	"github.com/smes-pos/smes-backend/api/validators"
	paymentsvc "github.com/smes-pos/smes-backend/internal/payments"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
	"github.com/smes-pos/smes-backend/pkg/logger"
	"github.com/smes-pos/smes-backend/pkg/mpesa"
)

type stkPushRequest struct {
	SaleID           *uuid.UUID      `json:"sale_id,omitempty"`
	Amount           decimal.Decimal `json:"amount" validate:"gt=0"`
	PhoneNumber      string          `json:"phone_number" validate:"required,min=9,max=15"`
	AccountReference string          `json:"account_reference" validate:"required,max=12"`
	TransactionDesc  string          `json:"transaction_desc,omitempty" validate:"max=13"`
}

// callbackAck is the body Safaricom expects back from a result URL.
type callbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// MpesaSTKPush asks the customer's phone to authorize a payment.
func MpesaSTKPush(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var payload stkPushRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !payload.Amount.IsPositive() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive").WithDetails(map[string]any{"field": "amount"}))
			return
		}

		txn, err := svc.Initiate(r.Context(), paymentsvc.InitiateInput{
			SaleID:           payload.SaleID,
			Amount:           payload.Amount,
			PhoneNumber:      strings.TrimSpace(payload.PhoneNumber),
			AccountReference: validators.SanitizeString(payload.AccountReference, 12),
			TransactionDesc:  validators.SanitizeString(payload.TransactionDesc, 13),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, txn)
	}
}

// MpesaCallback receives STK results. It always acknowledges a parseable
// payload so the gateway stops retrying; processing failures are logged.
func MpesaCallback(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var req mpesa.CallbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid callback payload"))
			return
		}
		if req.Body.StkCallback == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stkCallback is required"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"checkout_request_id": req.Body.StkCallback.CheckoutRequestID,
				"merchant_request_id": req.Body.StkCallback.MerchantRequestID,
				"result_code":         req.Body.StkCallback.ResultCode,
			})
		}

		if _, err := svc.HandleCallback(ctx, req); err != nil {
			if logg != nil {
				logg.Error(ctx, "mpesa.callback.failed", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(callbackAck{ResultCode: 0, ResultDesc: "Accepted"})
	}
}

func MpesaStatus(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		query := r.URL.Query()
		checkoutID := strings.TrimSpace(query.Get("checkout_request_id"))
		merchantID := strings.TrimSpace(query.Get("merchant_request_id"))
		if checkoutID == "" || merchantID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "checkout_request_id and merchant_request_id are required"))
			return
		}

		txn, err := svc.Status(r.Context(), checkoutID, merchantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}
