package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/smes-pos/smes-backend/internal/sales"
	"github.com/smes-pos/smes-backend/pkg/enums"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
)

type stubSalesService struct {
	listInput sales.ListSalesInput
	day       time.Time
	actor     string
	reversed  enums.SaleStatus
	err       error
}

func (s *stubSalesService) Get(_ context.Context, id uuid.UUID) (*sales.SaleView, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &sales.SaleView{ID: id, Status: enums.SaleStatusCompleted}, nil
}

func (s *stubSalesService) GetByReceipt(_ context.Context, receiptNumber string) (*sales.SaleView, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &sales.SaleView{ID: uuid.New(), ReceiptNumber: receiptNumber}, nil
}

func (s *stubSalesService) List(_ context.Context, input sales.ListSalesInput) (*sales.SaleListResult, error) {
	s.listInput = input
	if s.err != nil {
		return nil, s.err
	}
	return &sales.SaleListResult{Sales: []sales.SaleView{{ID: uuid.New()}}, NextCursor: "next"}, nil
}

func (s *stubSalesService) Receipt(_ context.Context, _ uuid.UUID) (*sales.Receipt, error) {
	return &sales.Receipt{ReceiptNumber: "RCPT-20260101-ABCDEF12"}, s.err
}

func (s *stubSalesService) DailySummary(_ context.Context, day time.Time) (*sales.DailySummary, error) {
	s.day = day
	return &sales.DailySummary{Date: day.Format("2006-01-02"), Revenue: decimal.NewFromInt(1000)}, s.err
}

func (s *stubSalesService) Cancel(_ context.Context, id uuid.UUID, actor string) (*sales.SaleView, error) {
	s.actor, s.reversed = actor, enums.SaleStatusCancelled
	if s.err != nil {
		return nil, s.err
	}
	return &sales.SaleView{ID: id, Status: enums.SaleStatusCancelled}, nil
}

func (s *stubSalesService) Refund(_ context.Context, id uuid.UUID, actor string) (*sales.SaleView, error) {
	s.actor, s.reversed = actor, enums.SaleStatusRefunded
	if s.err != nil {
		return nil, s.err
	}
	return &sales.SaleView{ID: id, Status: enums.SaleStatusRefunded}, nil
}

func TestSaleListParsesFilters(t *testing.T) {
	stub := &stubSalesService{}
	customerID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales?from=2026-01-01&to=2026-01-31&status=completed&limit=10&customer_id="+customerID.String(), nil)
	rec := httptest.NewRecorder()

	SaleList(stub, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, stub.listInput.From)
	require.NotNil(t, stub.listInput.To)
	require.NotNil(t, stub.listInput.Status)
	require.Equal(t, enums.SaleStatusCompleted, *stub.listInput.Status)
	require.Equal(t, customerID, *stub.listInput.CustomerID)
	require.Equal(t, 10, stub.listInput.Pagination.Limit)

	var body struct {
		Data []sales.SaleView `json:"data"`
		Meta struct {
			NextCursor string `json:"next_cursor"`
			Count      int    `json:"count"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, "next", body.Meta.NextCursor)
}

func TestSaleListRejectsBadStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales?status=bogus", nil)
	rec := httptest.NewRecorder()
	SaleList(&stubSalesService{}, testLogger()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaleDailySummaryDefaultsToToday(t *testing.T) {
	stub := &stubSalesService{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales/summary/daily", nil)
	rec := httptest.NewRecorder()

	SaleDailySummary(stub, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, time.Now().UTC().Format("2006-01-02"), stub.day.Format("2006-01-02"))
}

func TestSaleByReceiptRequiresNumber(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales/by-receipt", nil)
	rec := httptest.NewRecorder()
	SaleByReceipt(&stubSalesService{}, testLogger()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaleCancelPassesActor(t *testing.T) {
	stub := &stubSalesService{}
	id := uuid.New()
	req := withURLParam(withActor(httptest.NewRequest(http.MethodPost, "/api/v1/sales/"+id.String()+"/cancel", nil), "manager1"), "saleId", id.String())
	rec := httptest.NewRecorder()

	SaleCancel(stub, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "manager1", stub.actor)
	require.Equal(t, enums.SaleStatusCancelled, stub.reversed)
}

func TestSaleRefundSurfacesStateConflict(t *testing.T) {
	stub := &stubSalesService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "sale already refunded")}
	id := uuid.New()
	req := withURLParam(withActor(httptest.NewRequest(http.MethodPost, "/api/v1/sales/"+id.String()+"/refund", nil), "manager1"), "saleId", id.String())
	rec := httptest.NewRecorder()

	SaleRefund(stub, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, enums.SaleStatusRefunded, stub.reversed)
}

func TestSaleHandlersWithoutService(t *testing.T) {
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "saleId", uuid.NewString())
	rec := httptest.NewRecorder()
	SaleCancel(nil, testLogger()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
