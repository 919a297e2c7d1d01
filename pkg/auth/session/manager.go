package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/smes-pos/smes-backend/pkg/config"
	pkgredis "github.com/smes-pos/smes-backend/pkg/redis"
)

const refreshTokenBytes = 32

// ErrInvalidRefreshToken covers unknown, expired, reused and mismatched
// refresh tokens alike.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

var errAccessIDRequired = errors.New("access id is required")

// Store is the Redis surface sessions live on.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	GetDel(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// entry is stored per access id. Only a digest of the refresh token is kept.
type entry struct {
	Username  string    `json:"username"`
	TokenHash string    `json:"token_hash"`
	IssuedAt  time.Time `json:"issued_at"`
}

// Manager issues refresh tokens keyed by the access token's jti and rotates
// them one-shot: presenting a token consumes its session whether or not the
// token matches.
type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewManager checks that refresh sessions outlive the access tokens they
// back.
func NewManager(client *pkgredis.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return newManager(client, cfg)
}

func newManager(store Store, cfg config.JWTConfig) (*Manager, error) {
	ttl := cfg.RefreshTokenTTL()
	access := time.Duration(cfg.ExpirationMinutes) * time.Minute
	switch {
	case ttl <= 0:
		return nil, errors.New("refresh token ttl must be positive")
	case ttl <= access:
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, access)
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// NewAccessID produces the identifier used as JWT jti and session key.
func NewAccessID() string {
	return uuid.NewString()
}

// Generate opens a session for username under accessID and returns the
// refresh token to hand to the client.
func (m *Manager) Generate(ctx context.Context, accessID, username string) (string, error) {
	if strings.TrimSpace(accessID) == "" {
		return "", errAccessIDRequired
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return "", errors.New("username is required")
	}
	token, err := newRefreshToken()
	if err != nil {
		return "", err
	}
	if err := m.save(ctx, accessID, entry{Username: username, TokenHash: digest(token), IssuedAt: m.now().UTC()}); err != nil {
		return "", err
	}
	return token, nil
}

// Rotate consumes the session under oldAccessID and, when provided matches,
// opens a fresh one for the same user.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, provided string) (newAccessID, newToken, username string, err error) {
	if strings.TrimSpace(oldAccessID) == "" || strings.TrimSpace(provided) == "" {
		return "", "", "", ErrInvalidRefreshToken
	}

	raw, err := m.store.GetDel(ctx, m.store.AccessSessionKey(oldAccessID))
	if errors.Is(err, goredis.Nil) {
		return "", "", "", ErrInvalidRefreshToken
	}
	if err != nil {
		return "", "", "", fmt.Errorf("claim session: %w", err)
	}
	var old entry
	if err := json.Unmarshal([]byte(raw), &old); err != nil || old.Username == "" {
		return "", "", "", ErrInvalidRefreshToken
	}
	if subtle.ConstantTimeCompare([]byte(old.TokenHash), []byte(digest(provided))) != 1 {
		return "", "", "", ErrInvalidRefreshToken
	}

	newAccessID = NewAccessID()
	newToken, err = m.Generate(ctx, newAccessID, old.Username)
	if err != nil {
		return "", "", "", err
	}
	return newAccessID, newToken, old.Username, nil
}

// Revoke ends the session tied to accessID. Unknown ids are not an error.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errAccessIDRequired
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

// HasSession reports whether accessID still has a live refresh session.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, errAccessIDRequired
	}
	_, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	switch {
	case errors.Is(err, goredis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (m *Manager) save(ctx context.Context, accessID string, e entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return m.store.Set(ctx, m.store.AccessSessionKey(accessID), string(payload), m.ttl)
}

func newRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
