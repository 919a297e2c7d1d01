package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smes-pos/smes-backend/internal/inventory"
	"github.com/smes-pos/smes-backend/internal/payments"
	pkgAuth "github.com/smes-pos/smes-backend/pkg/auth"
	"github.com/smes-pos/smes-backend/pkg/auth/session"
	"github.com/smes-pos/smes-backend/pkg/config"
	"github.com/smes-pos/smes-backend/pkg/enums"
	"github.com/smes-pos/smes-backend/pkg/logger"
	"github.com/smes-pos/smes-backend/pkg/metrics"
	"github.com/smes-pos/smes-backend/pkg/mpesa"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessionChecker struct{}

func (stubSessionChecker) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubInventoryService struct{}

func (stubInventoryService) AdjustStock(ctx context.Context, input inventory.AdjustStockInput) (*inventory.AdjustmentDTO, error) {
	return &inventory.AdjustmentDTO{ProductID: input.ProductID}, nil
}

func (stubInventoryService) ListAdjustments(ctx context.Context, productID uuid.UUID) ([]inventory.AdjustmentDTO, error) {
	return nil, nil
}

func (stubInventoryService) RemoveExpiredProducts(ctx context.Context, now time.Time) (*inventory.ExpiredRemovalResult, error) {
	return &inventory.ExpiredRemovalResult{}, nil
}

func (stubInventoryService) ReorderSuggestions(ctx context.Context) ([]inventory.ReorderSuggestion, error) {
	return []inventory.ReorderSuggestion{}, nil
}

type stubPaymentService struct{}

func (stubPaymentService) Initiate(ctx context.Context, input payments.InitiateInput) (*payments.TransactionDTO, error) {
	return &payments.TransactionDTO{}, nil
}

func (stubPaymentService) HandleCallback(ctx context.Context, req mpesa.CallbackRequest) (*payments.TransactionDTO, error) {
	return &payments.TransactionDTO{}, nil
}

func (stubPaymentService) Status(ctx context.Context, checkoutRequestID, merchantRequestID string) (*payments.TransactionDTO, error) {
	return &payments.TransactionDTO{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "smes-test",
			ExpirationMinutes: 15,
		},
	}
}

func newTestRouter(cfg *config.Config, reg *prometheus.Registry) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
	var gatherer prometheus.Gatherer
	var httpMetrics *metrics.HTTPMetrics
	if reg != nil {
		gatherer = reg
		httpMetrics = metrics.NewHTTPMetrics(reg)
	}
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		nil,
		stubSessionChecker{},
		gatherer,
		httpMetrics,
		Services{
			Inventory: stubInventoryService{},
			Payments:  stubPaymentService{},
		},
	)
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:   uuid.New(),
		Username: strings.ToLower(string(role)) + "1",
		Role:     role,
		JTI:      session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestHealthReadyWithoutRedis(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	for _, path := range []string{"/api/v1/cart", "/api/v1/products", "/api/v1/sales"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", path, resp.Code)
		}
	}
}

func TestInventoryRequiresManagerRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil)

	tests := []struct {
		role   enums.UserRole
		status int
	}{
		{role: enums.UserRoleCashier, status: http.StatusForbidden},
		{role: enums.UserRoleManager, status: http.StatusOK},
		{role: enums.UserRoleAdmin, status: http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/reorder-suggestions", nil)
		req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, tt.role))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != tt.status {
			t.Fatalf("role %s: expected %d got %d", tt.role, tt.status, resp.Code)
		}
	}
}

func TestUsersRequireAdmin(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleManager))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for manager got %d", resp.Code)
	}
}

func TestMpesaCallbackIsPublic(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	body := `{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResultCode":0,"ResultDesc":"ok"}}}`
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/payments/mpesa/callback", strings.NewReader(body)))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestMetricsEndpointExportsHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	router := newTestRouter(testConfig(), reg)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "smes_http_requests_total") {
		t.Fatalf("expected http request counter in output")
	}
}
