package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/smes-pos/smes-backend/pkg/db"
	"github.com/smes-pos/smes-backend/pkg/db/models"
	"github.com/smes-pos/smes-backend/pkg/enums"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
	"github.com/smes-pos/smes-backend/pkg/logger"
	"github.com/smes-pos/smes-backend/pkg/metrics"
	"github.com/smes-pos/smes-backend/pkg/mpesa"
	"github.com/smes-pos/smes-backend/pkg/outbox"
	"github.com/smes-pos/smes-backend/pkg/outbox/payloads"
)

const defaultTransactionDesc = "Payment"

type gateway interface {
	STKPush(ctx context.Context, in mpesa.STKPushRequest) (*mpesa.STKPushResponse, error)
}

// Service initiates M-Pesa STK pushes and settles them from callbacks.
type Service interface {
	Initiate(ctx context.Context, input InitiateInput) (*TransactionDTO, error)
	HandleCallback(ctx context.Context, req mpesa.CallbackRequest) (*TransactionDTO, error)
	Status(ctx context.Context, checkoutRequestID, merchantRequestID string) (*TransactionDTO, error)
}

type service struct {
	tx      db.TxRunner
	repo    *Repository
	gateway gateway
	outbox  outbox.Emitter
	metrics *metrics.PaymentMetrics
	logg    *logger.Logger
}

func NewService(tx db.TxRunner, repo *Repository, gw gateway, emitter outbox.Emitter, m *metrics.PaymentMetrics, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("mpesa repository required")
	}
	if gw == nil {
		return nil, fmt.Errorf("mpesa gateway required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{tx: tx, repo: repo, gateway: gw, outbox: emitter, metrics: m, logg: logg}, nil
}

func (s *service) Initiate(ctx context.Context, input InitiateInput) (*TransactionDTO, error) {
	phone, err := mpesa.NormalizePhone(input.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	reference := strings.TrimSpace(input.AccountReference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account reference is required")
	}
	desc := strings.TrimSpace(input.TransactionDesc)
	if desc == "" {
		desc = defaultTransactionDesc
	}

	resp, err := s.gateway.STKPush(ctx, mpesa.STKPushRequest{
		Amount:           input.Amount,
		PhoneNumber:      phone,
		AccountReference: reference,
		TransactionDesc:  desc,
	})
	if err != nil {
		s.logg.Error(ctx, "mpesa.stk_push_failed", err)
		return nil, err
	}
	if !resp.Accepted() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stk push was not accepted").
			WithDetails(map[string]any{
				"response_code":        resp.ResponseCode,
				"response_description": resp.ResponseDescription,
			})
	}

	txn := &models.MpesaTransaction{
		SaleID:            input.SaleID,
		MerchantRequestID: optional(resp.MerchantRequestID),
		CheckoutRequestID: optional(resp.CheckoutRequestID),
		PhoneNumber:       phone,
		Amount:            input.Amount.Round(2),
		AccountReference:  reference,
		Status:            enums.MpesaStatusPending,
	}
	if err := s.repo.Create(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist mpesa transaction")
	}

	ctx = s.logg.WithField(ctx, "checkout_request_id", resp.CheckoutRequestID)
	s.logg.Info(ctx, "mpesa.stk_push_initiated")

	dto := toDTO(*txn)
	dto.CustomerMessage = resp.CustomerMessage
	return &dto, nil
}

// HandleCallback settles the transaction matching the callback's checkout
// request id. Callbacks for unknown ids are stored as CALLBACK_NO_MATCH and
// repeated callbacks for a settled transaction leave it unchanged.
func (s *service) HandleCallback(ctx context.Context, req mpesa.CallbackRequest) (*TransactionDTO, error) {
	cb := req.Body.StkCallback
	if cb == nil || strings.TrimSpace(cb.CheckoutRequestID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid mpesa callback payload")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"checkout_request_id": cb.CheckoutRequestID,
		"result_code":         cb.ResultCode,
	})

	var dto TransactionDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := repo.FindByCheckoutRequestIDForUpdate(ctx, cb.CheckoutRequestID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load mpesa transaction")
		}

		if txn == nil {
			orphan := unmatched(*cb)
			if err := repo.Create(ctx, orphan); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist unmatched callback")
			}
			s.logg.Warn(ctx, "mpesa.callback_no_match")
			dto = toDTO(*orphan)
			return nil
		}

		if txn.Status != enums.MpesaStatusPending {
			s.logg.Info(ctx, "mpesa.callback_duplicate")
			dto = toDTO(*txn)
			return nil
		}

		settle(txn, *cb)
		if err := repo.Save(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update mpesa transaction")
		}

		eventType := enums.EventPaymentCompleted
		if txn.Status == enums.MpesaStatusFailed {
			eventType = enums.EventPaymentFailed
		}
		event := outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateMpesaTransaction,
			AggregateID:   txn.ID,
			Data: payloads.PaymentStatusEvent{
				TransactionID:      txn.ID,
				SaleID:             txn.SaleID,
				CheckoutRequestID:  cb.CheckoutRequestID,
				Status:             txn.Status,
				Amount:             txn.Amount,
				MpesaReceiptNumber: txn.MpesaReceiptNumber,
				ResultDesc:         txn.ResultDesc,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit "+string(eventType))
		}
		dto = toDTO(*txn)
		return nil
	})
	if err != nil {
		s.metrics.Callback("error")
		return nil, err
	}

	s.metrics.Callback(string(dto.Status))
	s.logg.Info(s.logg.WithField(ctx, "status", dto.Status), "mpesa.callback_processed")
	return &dto, nil
}

func (s *service) Status(ctx context.Context, checkoutRequestID, merchantRequestID string) (*TransactionDTO, error) {
	checkoutRequestID = strings.TrimSpace(checkoutRequestID)
	merchantRequestID = strings.TrimSpace(merchantRequestID)
	if checkoutRequestID == "" || merchantRequestID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout_id and merchant_id are required")
	}
	txn, err := s.repo.FindByRequestIDs(ctx, checkoutRequestID, merchantRequestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Transaction not found for given checkout_id and merchant_id.")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load mpesa transaction")
	}
	dto := toDTO(*txn)
	return &dto, nil
}

func settle(txn *models.MpesaTransaction, cb mpesa.StkCallback) {
	code := cb.ResultCode
	txn.ResultCode = &code
	txn.ResultDesc = optional(cb.ResultDesc)
	if cb.MerchantRequestID != "" && txn.MerchantRequestID == nil {
		txn.MerchantRequestID = optional(cb.MerchantRequestID)
	}

	if !cb.Succeeded() {
		txn.Status = enums.MpesaStatusFailed
		return
	}

	txn.Status = enums.MpesaStatusCompleted
	details := cb.Details()
	if details.Amount != nil {
		txn.Amount = details.Amount.Round(2)
	}
	if details.MpesaReceiptNumber != "" {
		txn.MpesaReceiptNumber = optional(details.MpesaReceiptNumber)
	}
	if details.PhoneNumber != "" {
		txn.PhoneNumber = details.PhoneNumber
	}
	if details.TransactionDate != nil {
		txn.TransactionDate = details.TransactionDate
	}
}

func unmatched(cb mpesa.StkCallback) *models.MpesaTransaction {
	code := cb.ResultCode
	txn := &models.MpesaTransaction{
		MerchantRequestID: optional(cb.MerchantRequestID),
		CheckoutRequestID: optional(cb.CheckoutRequestID),
		Amount:            decimal.Zero,
		Status:            enums.MpesaStatusCallbackNoMatch,
		ResultCode:        &code,
		ResultDesc:        optional(cb.ResultDesc),
	}
	if cb.Succeeded() {
		details := cb.Details()
		if details.Amount != nil {
			txn.Amount = details.Amount.Round(2)
		}
		txn.MpesaReceiptNumber = optional(details.MpesaReceiptNumber)
		txn.PhoneNumber = details.PhoneNumber
		txn.TransactionDate = details.TransactionDate
	}
	return txn
}

func optional(value string) *string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return &trimmed
	}
	return nil
}
