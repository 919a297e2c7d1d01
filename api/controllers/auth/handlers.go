package auth

import (
	"net/http"

	"github.com/smes-pos/smes-backend/api/middleware"
	"github.com/smes-pos/smes-backend/api/responses"
	"github.com/smes-pos/smes-backend/api/validators"
	"github.com/smes-pos/smes-backend/internal/auth"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
	"github.com/smes-pos/smes-backend/pkg/logger"
)

var (
	errUnavailable        = pkgerrors.New(pkgerrors.CodeDependency, "auth service unavailable")
	errMissingCredentials = pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
)

type handler struct {
	svc  auth.Service
	logg *logger.Logger
}

// guard rejects the request when no service is wired, and otherwise runs fn.
func (h handler) guard(fn func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.svc == nil {
			responses.WriteError(r.Context(), h.logg, w, errUnavailable)
			return
		}
		fn(w, r)
	}
}

func (h handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	responses.WriteError(r.Context(), h.logg, w, err)
}

// tokens writes a token pair. Responses carrying credentials must not be
// cached by the till's browser or an intermediary.
func (h handler) tokens(w http.ResponseWriter, resp *auth.TokenResponse) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	responses.WriteSuccess(w, resp)
}

// AuthLogin exchanges username and password for an access and refresh token.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	h := handler{svc: svc, logg: logg}
	return h.guard(func(w http.ResponseWriter, r *http.Request) {
		var req auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
		resp, err := h.svc.Login(r.Context(), req)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if h.logg != nil && resp.User != nil {
			h.logg.Info(h.logg.WithUsername(r.Context(), resp.User.Username), "auth.login.succeeded")
		}
		h.tokens(w, resp)
	})
}

// AuthRefresh rotates the refresh session. The bearer access token may
// already be expired but must still verify.
func AuthRefresh(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	h := handler{svc: svc, logg: logg}
	return h.guard(func(w http.ResponseWriter, r *http.Request) {
		access := middleware.BearerToken(r)
		if access == "" {
			h.fail(w, r, errMissingCredentials)
			return
		}
		var req auth.RefreshRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
		resp, err := h.svc.Refresh(r.Context(), access, req.RefreshToken)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.tokens(w, resp)
	})
}

// AuthLogout revokes the session behind the bearer token.
func AuthLogout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	h := handler{svc: svc, logg: logg}
	return h.guard(func(w http.ResponseWriter, r *http.Request) {
		access := middleware.BearerToken(r)
		if access == "" {
			h.fail(w, r, errMissingCredentials)
			return
		}
		if err := h.svc.Logout(r.Context(), access); err != nil {
			h.fail(w, r, err)
			return
		}
		responses.WriteNoContent(w)
	})
}
