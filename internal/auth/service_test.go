package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/smes-pos/smes-backend/pkg/auth"
	"github.com/smes-pos/smes-backend/pkg/auth/session"
	"github.com/smes-pos/smes-backend/pkg/config"
	"github.com/smes-pos/smes-backend/pkg/db/models"
	"github.com/smes-pos/smes-backend/pkg/enums"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
	"github.com/smes-pos/smes-backend/pkg/security"
)

var testJWT = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "smes",
	ExpirationMinutes: 30,
}

func TestServiceLoginIssuesRoleClaim(t *testing.T) {
	user := newUser(t, "manager1", "manager-secret", enums.UserRoleManager)
	svc, sessions := buildTestService(t, user)

	resp, err := svc.Login(context.Background(), LoginRequest{Username: " Manager1 ", Password: "manager-secret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Role != enums.UserRoleManager {
		t.Fatalf("expected manager role claim, got %s", claims.Role)
	}
	if claims.Username != "manager1" {
		t.Fatalf("expected username claim, got %q", claims.Username)
	}
	if resp.RefreshToken == "" || sessions.usernames[claims.ID] != "manager1" {
		t.Fatalf("expected refresh session bound to jti %q", claims.ID)
	}
	if resp.User == nil || resp.User.LastLoginAt == nil {
		t.Fatalf("expected last login to be recorded")
	}
	if resp.TokenType != "Bearer" || resp.ExpiresIn != 1800 {
		t.Fatalf("unexpected token metadata type=%q expires_in=%d", resp.TokenType, resp.ExpiresIn)
	}
	if !resp.ExpiresAt.Equal(claims.ExpiresAt.Time) {
		t.Fatalf("expires_at %s does not match token exp %s", resp.ExpiresAt, claims.ExpiresAt.Time)
	}
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	user := newUser(t, "cashier1", "cashier-secret", enums.UserRoleCashier)
	svc, _ := buildTestService(t, user)

	cases := []LoginRequest{
		{Username: "cashier1", Password: "wrong-password"},
		{Username: "unknown", Password: "cashier-secret"},
		{Username: "", Password: "cashier-secret"},
	}
	for _, req := range cases {
		_, err := svc.Login(context.Background(), req)
		if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
			t.Fatalf("expected unauthorized for %+v, got %v", req, err)
		}
	}

	user.IsActive = false
	_, err := svc.Login(context.Background(), LoginRequest{Username: "cashier1", Password: "cashier-secret"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected inactive user to be rejected, got %v", err)
	}
}

func TestServiceRefreshRotatesSession(t *testing.T) {
	user := newUser(t, "cashier1", "cashier-secret", enums.UserRoleCashier)
	svc, sessions := buildTestService(t, user)
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginRequest{Username: "cashier1", Password: "cashier-secret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	old, _ := pkgAuth.ParseAccessToken(testJWT, login.AccessToken)

	user.Role = enums.UserRoleManager
	refreshed, err := svc.Refresh(ctx, login.AccessToken, login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWT, refreshed.AccessToken)
	if err != nil {
		t.Fatalf("parse refreshed token: %v", err)
	}
	if claims.ID == old.ID {
		t.Fatalf("expected a new session id")
	}
	if claims.Role != enums.UserRoleManager {
		t.Fatalf("expected refreshed token to carry current role, got %s", claims.Role)
	}
	if _, ok := sessions.usernames[old.ID]; ok {
		t.Fatalf("old session should be dropped")
	}

	if _, err := svc.Refresh(ctx, refreshed.AccessToken, "bogus"); !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for bad refresh token, got %v", err)
	}
}

func TestServiceLogoutRevokesSession(t *testing.T) {
	user := newUser(t, "cashier1", "cashier-secret", enums.UserRoleCashier)
	svc, sessions := buildTestService(t, user)
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginRequest{Username: "cashier1", Password: "cashier-secret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(ctx, login.AccessToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(sessions.usernames) != 0 {
		t.Fatalf("expected no sessions after logout, got %d", len(sessions.usernames))
	}
	if err := svc.Logout(ctx, "not-a-jwt"); !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for garbage token, got %v", err)
	}
}

func TestServiceLoginUpgradesWeakHash(t *testing.T) {
	user := newUser(t, "admin1", "admin-secret", enums.UserRoleAdmin)
	weakHash := user.PasswordHash
	repo := &stubUserRepo{user: user}
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: &stubSessionManager{usernames: map[string]string{}, tokens: map[string]string{}},
		JWTConfig:      testJWT,
		PasswordConfig: config.PasswordConfig{ArgonMemoryKB: 128, ArgonTime: 1, ArgonParallelism: 1},
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	ctx := context.Background()
	if _, err := svc.Login(ctx, LoginRequest{Username: "admin1", Password: "admin-secret"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if repo.rehashed != 1 || user.PasswordHash == weakHash {
		t.Fatalf("expected hash upgrade, rehashed=%d", repo.rehashed)
	}

	if _, err := svc.Login(ctx, LoginRequest{Username: "admin1", Password: "admin-secret"}); err != nil {
		t.Fatalf("login with upgraded hash: %v", err)
	}
	if repo.rehashed != 1 {
		t.Fatalf("expected no second upgrade, rehashed=%d", repo.rehashed)
	}
}

func TestServiceLoginIgnoresRehashFailure(t *testing.T) {
	user := newUser(t, "admin2", "admin-secret", enums.UserRoleAdmin)
	weakHash := user.PasswordHash
	svc, err := NewService(ServiceParams{
		UserRepo:       &stubUserRepo{user: user, rehashErr: errors.New("db down")},
		SessionManager: &stubSessionManager{usernames: map[string]string{}, tokens: map[string]string{}},
		JWTConfig:      testJWT,
		PasswordConfig: config.PasswordConfig{ArgonMemoryKB: 128, ArgonTime: 1, ArgonParallelism: 1},
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	if _, err := svc.Login(context.Background(), LoginRequest{Username: "admin2", Password: "admin-secret"}); err != nil {
		t.Fatalf("login should succeed despite rehash failure: %v", err)
	}
	if user.PasswordHash != weakHash {
		t.Fatal("hash should be unchanged when the write fails")
	}
}

func buildTestService(t *testing.T, user *models.User) (Service, *stubSessionManager) {
	t.Helper()
	sessions := &stubSessionManager{usernames: map[string]string{}, tokens: map[string]string{}}
	svc, err := NewService(ServiceParams{
		UserRepo:       &stubUserRepo{user: user},
		SessionManager: sessions,
		JWTConfig:      testJWT,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, sessions
}

func newUser(t *testing.T, username, password string, role enums.UserRole) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
}

type stubUserRepo struct {
	user      *models.User
	rehashed  int
	rehashErr error
}

func (s *stubUserRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	if s.user == nil || s.user.Username != username {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	if s.user != nil && s.user.ID == id {
		s.user.LastLoginAt = &at
	}
	return nil
}

func (s *stubUserRepo) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	if s.rehashErr != nil {
		return s.rehashErr
	}
	if s.user != nil && s.user.ID == id {
		s.user.PasswordHash = hash
		s.rehashed++
	}
	return nil
}

type stubSessionManager struct {
	usernames map[string]string
	tokens    map[string]string
}

func (s *stubSessionManager) Generate(_ context.Context, accessID, username string) (string, error) {
	token := "refresh-" + accessID
	s.usernames[accessID] = username
	s.tokens[accessID] = token
	return token, nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, string, error) {
	if s.tokens[oldAccessID] != provided {
		return "", "", "", session.ErrInvalidRefreshToken
	}
	username := s.usernames[oldAccessID]
	delete(s.usernames, oldAccessID)
	delete(s.tokens, oldAccessID)
	newID := session.NewAccessID()
	token, _ := s.Generate(ctx, newID, username)
	return newID, token, username, nil
}

func (s *stubSessionManager) Revoke(_ context.Context, accessID string) error {
	if accessID == "" {
		return errors.New("access id is required")
	}
	delete(s.usernames, accessID)
	delete(s.tokens, accessID)
	return nil
}
