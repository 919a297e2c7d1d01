package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smes-pos/smes-backend/api/responses"
	"github.com/smes-pos/smes-backend/api/validators"
	productsvc "github.com/smes-pos/smes-backend/internal/products"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
	"github.com/smes-pos/smes-backend/pkg/logger"
	"github.com/smes-pos/smes-backend/pkg/pagination"
)

// ProductCreate handles product creation.
func ProductCreate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toCreateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func ProductUpdate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toUpdateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

func ProductDelete(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteProduct(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteNoContent(w)
	}
}

func ProductDetail(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// ProductLookup resolves a scanned code; field is "sku" or "barcode".
func ProductLookup(svc productsvc.Service, field string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		code := strings.TrimSpace(chi.URLParam(r, "code"))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, field+" is required"))
			return
		}

		var (
			product *productsvc.ProductDTO
			err     error
		)
		if field == "barcode" {
			product, err = svc.GetByBarcode(r.Context(), code)
		} else {
			product, err = svc.GetBySKU(r.Context(), code)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ProductList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		supplierID, err := validators.ParseQueryUUID(r, "supplier_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		input := productsvc.ListProductsInput{
			Query:      validators.SanitizeString(query.Get("q"), 128),
			SupplierID: supplierID,
			Pagination: pagination.Params{Limit: limit, Cursor: strings.TrimSpace(query.Get("cursor"))},
		}
		if category := validators.SanitizeString(query.Get("category"), 64); category != "" {
			input.Category = &category
		}

		result, err := svc.ListProducts(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, result.Products, len(result.Products), result.NextCursor)
	}
}

func ProductLowStock(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		products, err := svc.ListLowStock(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, products, len(products), "")
	}
}

// ProductExpiring lists products expiring before ?before=YYYY-MM-DD, or
// within the default horizon when the parameter is absent.
func ProductExpiring(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		before, err := validators.ParseQueryDate(r, "before")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		products, err := svc.ListExpiring(r.Context(), before)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, products, len(products), "")
	}
}

type createProductRequest struct {
	Name              string          `json:"name" validate:"required,max=255"`
	SKU               string          `json:"sku" validate:"required,max=64"`
	Barcode           *string         `json:"barcode,omitempty"`
	Description       *string         `json:"description,omitempty"`
	Price             decimal.Decimal `json:"price" validate:"gte=0"`
	CostPrice         decimal.Decimal `json:"cost_price" validate:"gte=0"`
	QuantityInStock   int             `json:"quantity_in_stock" validate:"gte=0"`
	LowStockThreshold *int            `json:"low_stock_threshold,omitempty" validate:"omitempty,gte=0"`
	ExpiryDate        string          `json:"expiry_date,omitempty"`
	Category          *string         `json:"category,omitempty"`
	Brand             *string         `json:"brand,omitempty"`
	Unit              *string         `json:"unit,omitempty"`
	SupplierID        *uuid.UUID      `json:"supplier_id,omitempty"`
}

func (r createProductRequest) toCreateInput() (productsvc.CreateProductInput, error) {
	expiry, err := validators.ParseDate("expiry_date", r.ExpiryDate)
	if err != nil {
		return productsvc.CreateProductInput{}, err
	}
	return productsvc.CreateProductInput{
		Name:              r.Name,
		SKU:               r.SKU,
		Barcode:           r.Barcode,
		Description:       r.Description,
		Price:             r.Price,
		CostPrice:         r.CostPrice,
		QuantityInStock:   r.QuantityInStock,
		LowStockThreshold: r.LowStockThreshold,
		ExpiryDate:        expiry,
		Category:          r.Category,
		Brand:             r.Brand,
		Unit:              r.Unit,
		SupplierID:        r.SupplierID,
	}, nil
}

type updateProductRequest struct {
	Name              *string          `json:"name,omitempty" validate:"omitempty,max=255"`
	SKU               *string          `json:"sku,omitempty" validate:"omitempty,max=64"`
	Barcode           *string          `json:"barcode,omitempty"`
	Description       *string          `json:"description,omitempty"`
	Price             *decimal.Decimal `json:"price,omitempty"`
	CostPrice         *decimal.Decimal `json:"cost_price,omitempty"`
	LowStockThreshold *int             `json:"low_stock_threshold,omitempty" validate:"omitempty,gte=0"`
	ExpiryDate        *string          `json:"expiry_date,omitempty"`
	Category          *string          `json:"category,omitempty"`
	Brand             *string          `json:"brand,omitempty"`
	Unit              *string          `json:"unit,omitempty"`
	SupplierID        *uuid.UUID       `json:"supplier_id,omitempty"`
}

func (r updateProductRequest) toUpdateInput() (productsvc.UpdateProductInput, error) {
	input := productsvc.UpdateProductInput{
		Name:              r.Name,
		SKU:               r.SKU,
		Barcode:           r.Barcode,
		Description:       r.Description,
		Price:             r.Price,
		CostPrice:         r.CostPrice,
		LowStockThreshold: r.LowStockThreshold,
		Category:          r.Category,
		Brand:             r.Brand,
		Unit:              r.Unit,
		SupplierID:        r.SupplierID,
	}
	if r.ExpiryDate != nil {
		expiry, err := validators.ParseDate("expiry_date", *r.ExpiryDate)
		if err != nil {
			return productsvc.UpdateProductInput{}, err
		}
		input.ExpiryDate = expiry
	}
	return input, nil
}
