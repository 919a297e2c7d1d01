package middleware

import (
	"net/http"
	"strings"

	"github.com/smes-pos/smes-backend/api/responses"
	pkgAuth "github.com/smes-pos/smes-backend/pkg/auth"
	"github.com/smes-pos/smes-backend/pkg/auth/session"
	"github.com/smes-pos/smes-backend/pkg/config"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
	"github.com/smes-pos/smes-backend/pkg/logger"
)

// Auth admits requests carrying a valid access token whose session is still
// live, and stores the operator as the request Principal. A nil verifier
// skips the session lookup.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	reject := func(w http.ResponseWriter, r *http.Request, err *pkgerrors.Error) {
		responses.WriteError(r.Context(), logg, w, err)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				reject(w, r, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				reject(w, r, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if claims.ID == "" {
				reject(w, r, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
				return
			}

			if verifier != nil {
				live, err := verifier.HasSession(r.Context(), claims.ID)
				switch {
				case err != nil:
					reject(w, r, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				case !live:
					reject(w, r, pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired or revoked"))
					return
				}
			}

			ctx := WithPrincipal(r.Context(), Principal{
				UserID:   claims.UserID,
				Username: claims.Username,
				Role:     claims.Role,
			})
			if logg != nil {
				ctx = logg.WithUsername(ctx, claims.Username)
				ctx = logg.WithField(ctx, "actor_role", string(claims.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken returns the token from "Authorization: Bearer <token>". A bare
// token without the scheme is accepted; anything containing spaces is not.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, rest, ok := strings.Cut(header, " "); ok {
		if !strings.EqualFold(scheme, "bearer") {
			return ""
		}
		header = strings.TrimSpace(rest)
	}
	if strings.ContainsAny(header, " \t") {
		return ""
	}
	return header
}
