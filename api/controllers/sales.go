package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smes-pos/smes-backend/api/middleware"
	"github.com/smes-pos/smes-backend/api/responses"
	"github.com/smes-pos/smes-backend/api/validators"
	"github.com/smes-pos/smes-backend/internal/sales"
	"github.com/smes-pos/smes-backend/pkg/enums"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
	"github.com/smes-pos/smes-backend/pkg/logger"
	"github.com/smes-pos/smes-backend/pkg/pagination"
)

// SaleList pages through sales history, newest first.
func SaleList(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}

		input, err := parseSaleListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, result.Sales, len(result.Sales), result.NextCursor)
	}
}

func parseSaleListQuery(r *http.Request) (sales.ListSalesInput, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return sales.ListSalesInput{}, err
	}
	from, err := validators.ParseQueryDate(r, "from")
	if err != nil {
		return sales.ListSalesInput{}, err
	}
	to, err := validators.ParseQueryDate(r, "to")
	if err != nil {
		return sales.ListSalesInput{}, err
	}
	customerID, err := validators.ParseQueryUUID(r, "customer_id")
	if err != nil {
		return sales.ListSalesInput{}, err
	}

	query := r.URL.Query()
	input := sales.ListSalesInput{
		From:       from,
		To:         to,
		CustomerID: customerID,
		Cashier:    validators.SanitizeString(query.Get("cashier"), 64),
		Pagination: pagination.Params{Limit: limit, Cursor: strings.TrimSpace(query.Get("cursor"))},
	}
	if raw := strings.ToUpper(strings.TrimSpace(query.Get("status"))); raw != "" {
		status, err := enums.ParseSaleStatus(raw)
		if err != nil {
			return sales.ListSalesInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		input.Status = &status
	}
	return input, nil
}

func SaleDetail(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}
		id, err := validators.URLParamUUID(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sale, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sale)
	}
}

func SaleByReceipt(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}
		number := strings.TrimSpace(r.URL.Query().Get("number"))
		if number == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "receipt number is required"))
			return
		}
		sale, err := svc.GetByReceipt(r.Context(), number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sale)
	}
}

func SaleReceipt(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}
		id, err := validators.URLParamUUID(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		receipt, err := svc.Receipt(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, receipt)
	}
}

// SaleDailySummary totals completed sales for ?date=YYYY-MM-DD (default today, UTC).
func SaleDailySummary(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}
		day, err := validators.ParseQueryDate(r, "date")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if day == nil {
			today := time.Now().UTC()
			day = &today
		}
		summary, err := svc.DailySummary(r.Context(), *day)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

type saleReverser func(svc sales.Service, r *http.Request, id uuid.UUID, actor string) (*sales.SaleView, error)

// SaleCancel voids a completed sale and restocks its lines.
func SaleCancel(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return saleReversal(svc, logg, func(svc sales.Service, r *http.Request, id uuid.UUID, actor string) (*sales.SaleView, error) {
		return svc.Cancel(r.Context(), id, actor)
	})
}

func SaleRefund(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return saleReversal(svc, logg, func(svc sales.Service, r *http.Request, id uuid.UUID, actor string) (*sales.SaleView, error) {
		return svc.Refund(r.Context(), id, actor)
	})
}

func saleReversal(svc sales.Service, logg *logger.Logger, reverse saleReverser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}
		id, err := validators.URLParamUUID(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sale, err := reverse(svc, r, id, middleware.UsernameFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sale)
	}
}
