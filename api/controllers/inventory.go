package controllers

import (
	"net/http"
	"time"

	"go.uber.org/multierr"

	"github.com/smes-pos/smes-backend/api/middleware"
	"github.com/smes-pos/smes-backend/api/responses"
	"github.com/smes-pos/smes-backend/api/validators"
	"github.com/smes-pos/smes-backend/internal/inventory"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
	"github.com/smes-pos/smes-backend/pkg/logger"
)

type adjustStockRequest struct {
	ProductID      string `json:"product_id" validate:"required,uuid"`
	QuantityChange int    `json:"quantity_change" validate:"required"`
	Reason         string `json:"reason" validate:"required,max=255"`
}

// InventoryAdjust applies a manual stock correction and logs it.
func InventoryAdjust(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var payload adjustStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := parseUUID("product_id", payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		adj, err := svc.AdjustStock(r.Context(), inventory.AdjustStockInput{
			ProductID: productID,
			Delta:     payload.QuantityChange,
			Reason:    validators.SanitizeString(payload.Reason, 255),
			Actor:     middleware.UsernameFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, adj)
	}
}

func InventoryAdjustments(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListAdjustments(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, list, len(list), "")
	}
}

func InventoryReorderSuggestions(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		list, err := svc.ReorderSuggestions(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, list, len(list), "")
	}
}

type expiredRemovalResponse struct {
	Removed []inventory.ExpiredRemoval `json:"removed"`
	Failed  int                        `json:"failed"`
}

// InventoryRemoveExpired writes off expired stock on demand. Partial failures
// still return the products that were removed.
func InventoryRemoveExpired(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		result, err := svc.RemoveExpiredProducts(r.Context(), time.Now().UTC())
		if result == nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		failed := len(multierr.Errors(err))
		if failed > 0 && logg != nil {
			logg.Error(logg.WithField(r.Context(), "failed", failed), "inventory.expired_removal.partial", err)
		}
		responses.WriteSuccess(w, expiredRemovalResponse{Removed: result.Removed, Failed: failed})
	}
}
