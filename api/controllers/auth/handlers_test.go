package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/smes-pos/smes-backend/internal/auth"
	"github.com/smes-pos/smes-backend/internal/users"
	"github.com/smes-pos/smes-backend/pkg/enums"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
	"github.com/smes-pos/smes-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func TestAuthLogin(t *testing.T) {
	stub := &stubAuthService{resp: &auth.TokenResponse{
		AccessToken:  "access",
		RefreshToken: "refresh",
		User:         &users.UserDTO{ID: uuid.New(), Username: "jane", Role: enums.UserRoleCashier},
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username":"jane","password":"pw"}`))
	rec := httptest.NewRecorder()
	AuthLogin(stub, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Data auth.TokenResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.AccessToken != "access" || body.Data.RefreshToken != "refresh" {
		t.Fatalf("unexpected tokens %+v", body.Data)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("token responses must not be cached, got %q", got)
	}
}

func TestAuthHandlersWithoutService(t *testing.T) {
	for name, h := range map[string]http.HandlerFunc{
		"login":   AuthLogin(nil, testLogger()),
		"refresh": AuthRefresh(nil, testLogger()),
		"logout":  AuthLogout(nil, testLogger()),
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/"+name, strings.NewReader(`{}`)))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503, got %d", name, rec.Code)
		}
	}
}

func TestAuthLoginRejectsMissingPassword(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username":"jane"}`))
	rec := httptest.NewRecorder()
	AuthLogin(&stubAuthService{}, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAuthLoginInvalidCredentials(t *testing.T) {
	stub := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username":"jane","password":"bad"}`))
	rec := httptest.NewRecorder()
	AuthLogin(stub, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthRefreshRequiresBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(`{"refresh_token":"r"}`))
	rec := httptest.NewRecorder()
	AuthRefresh(&stubAuthService{}, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthRefreshPassesTokens(t *testing.T) {
	stub := &stubAuthService{resp: &auth.TokenResponse{AccessToken: "new"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(`{"refresh_token":"r1"}`))
	req.Header.Set("Authorization", "Bearer old-access")
	rec := httptest.NewRecorder()
	AuthRefresh(stub, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if stub.accessToken != "old-access" || stub.refreshToken != "r1" {
		t.Fatalf("unexpected tokens passed: %q %q", stub.accessToken, stub.refreshToken)
	}
}

func TestAuthLogout(t *testing.T) {
	stub := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	AuthLogout(stub, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if stub.accessToken != "tok" {
		t.Fatalf("expected logout with bearer token, got %q", stub.accessToken)
	}
}

type stubAuthService struct {
	resp         *auth.TokenResponse
	err          error
	accessToken  string
	refreshToken string
}

func (s *stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.TokenResponse, error) {
	return s.resp, s.err
}

func (s *stubAuthService) Refresh(ctx context.Context, accessToken, refreshToken string) (*auth.TokenResponse, error) {
	s.accessToken = accessToken
	s.refreshToken = refreshToken
	return s.resp, s.err
}

func (s *stubAuthService) Logout(ctx context.Context, accessToken string) error {
	s.accessToken = accessToken
	return s.err
}
