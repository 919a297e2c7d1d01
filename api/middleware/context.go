package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/smes-pos/smes-backend/pkg/enums"
)

type contextKey int

const (
	ctxPrincipal contextKey = iota
	ctxRequestID
)

// Principal is the authenticated operator behind a request.
type Principal struct {
	UserID   uuid.UUID
	Username string
	Role     enums.UserRole
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipal, p)
}

// PrincipalFromContext reports false for unauthenticated requests.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxPrincipal).(Principal)
	return p, ok && p.Username != ""
}

// UsernameFromContext returns the operator's username, which also keys their
// cart and attributes stock movements.
func UsernameFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.Username
}

// WithUsername sets only the username, keeping any other principal fields.
func WithUsername(ctx context.Context, username string) context.Context {
	p, _ := ctx.Value(ctxPrincipal).(Principal)
	p.Username = username
	return WithPrincipal(ctx, p)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxRequestID).(string)
	return id
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}
