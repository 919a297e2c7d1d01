package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smes-pos/smes-backend/api/controllers"
	authcontrollers "github.com/smes-pos/smes-backend/api/controllers/auth"
	cartcontrollers "github.com/smes-pos/smes-backend/api/controllers/cart"
	paymentcontrollers "github.com/smes-pos/smes-backend/api/controllers/payments"
	"github.com/smes-pos/smes-backend/api/middleware"
	"github.com/smes-pos/smes-backend/internal/auth"
	"github.com/smes-pos/smes-backend/internal/cart"
	"github.com/smes-pos/smes-backend/internal/checkout"
	"github.com/smes-pos/smes-backend/internal/customers"
	"github.com/smes-pos/smes-backend/internal/discounts"
	"github.com/smes-pos/smes-backend/internal/inventory"
	"github.com/smes-pos/smes-backend/internal/payments"
	"github.com/smes-pos/smes-backend/internal/products"
	"github.com/smes-pos/smes-backend/internal/purchases"
	"github.com/smes-pos/smes-backend/internal/sales"
	"github.com/smes-pos/smes-backend/internal/suppliers"
	"github.com/smes-pos/smes-backend/internal/users"
	"github.com/smes-pos/smes-backend/pkg/auth/session"
	"github.com/smes-pos/smes-backend/pkg/config"
	"github.com/smes-pos/smes-backend/pkg/db"
	"github.com/smes-pos/smes-backend/pkg/enums"
	"github.com/smes-pos/smes-backend/pkg/logger"
	"github.com/smes-pos/smes-backend/pkg/metrics"
	pkgredis "github.com/smes-pos/smes-backend/pkg/redis"
)

// RedisStore is the slice of the redis client the HTTP layer needs. A nil
// store disables idempotency replay and auth rate limiting.
type RedisStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

// Services bundles the domain services mounted under /api/v1.
type Services struct {
	Auth      auth.Service
	Users     users.Service
	Cart      cart.Service
	Checkout  checkout.Service
	Products  products.Service
	Discounts discounts.Service
	Customers customers.Service
	Suppliers suppliers.Service
	Sales     sales.Service
	Inventory inventory.Service
	Purchases purchases.Service
	Payments  payments.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisStore RedisStore,
	sessions session.AccessSessionChecker,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var (
		idempotencyStore pkgredis.IdempotencyStore
		rateStore        rateLimiter
		redisPinger      controllers.Pinger
	)
	if redisStore != nil {
		idempotencyStore, rateStore, redisPinger = redisStore, redisStore, redisStore
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.RateLimit.LoginWindow,
		cfg.RateLimit.LoginIPLimit,
		cfg.RateLimit.LoginUsernameLimit,
	)

	var dbPinger controllers.Pinger
	if dbP != nil {
		dbPinger = dbP
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbPinger, redisPinger))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, rateStore, logg)).Post("/login", authcontrollers.AuthLogin(svc.Auth, logg))
		r.Post("/refresh", authcontrollers.AuthRefresh(svc.Auth, logg))
		r.Post("/logout", authcontrollers.AuthLogout(svc.Auth, logg))
	})

	// Safaricom calls back without credentials.
	r.Post("/api/v1/payments/mpesa/callback", paymentcontrollers.MpesaCallback(svc.Payments, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		managers := middleware.RequireRoles(logg, enums.UserRoleAdmin, enums.UserRoleManager)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(svc.Cart, logg))
			r.Post("/", cartcontrollers.CartAddItems(svc.Cart, logg))
			r.Delete("/", cartcontrollers.CartClear(svc.Cart, logg))
			r.Post("/apply-discount", cartcontrollers.CartApplyDiscount(svc.Cart, logg))
			r.Post("/checkout", cartcontrollers.CartCheckout(svc.Checkout, logg))
			r.Put("/{productId}", cartcontrollers.CartUpdateItem(svc.Cart, logg))
			r.Delete("/{productId}", cartcontrollers.CartRemoveItem(svc.Cart, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(svc.Products, logg))
			r.Get("/low-stock", controllers.ProductLowStock(svc.Products, logg))
			r.Get("/expiring", controllers.ProductExpiring(svc.Products, logg))
			r.Get("/sku/{code}", controllers.ProductLookup(svc.Products, "sku", logg))
			r.Get("/barcode/{code}", controllers.ProductLookup(svc.Products, "barcode", logg))
			r.Get("/{productId}", controllers.ProductDetail(svc.Products, logg))
			r.With(managers).Post("/", controllers.ProductCreate(svc.Products, logg))
			r.With(managers).Put("/{productId}", controllers.ProductUpdate(svc.Products, logg))
			r.With(managers).Delete("/{productId}", controllers.ProductDelete(svc.Products, logg))
		})

		r.Route("/discounts", func(r chi.Router) {
			r.Get("/", controllers.DiscountList(svc.Discounts, logg))
			r.Get("/{discountId}", controllers.DiscountDetail(svc.Discounts, logg))
			r.Group(func(r chi.Router) {
				r.Use(managers)
				r.Post("/", controllers.DiscountCreate(svc.Discounts, logg))
				r.Put("/{discountId}", controllers.DiscountUpdate(svc.Discounts, logg))
				r.Delete("/{discountId}", controllers.DiscountDelete(svc.Discounts, logg))
				r.Post("/{discountId}/products", controllers.DiscountAttachProducts(svc.Discounts, logg))
				r.Delete("/{discountId}/products/{productId}", controllers.DiscountDetachProduct(svc.Discounts, logg))
			})
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", controllers.CustomerList(svc.Customers, logg))
			r.Post("/", controllers.CustomerCreate(svc.Customers, logg))
			r.Get("/search", controllers.CustomerSearch(svc.Customers, logg))
			r.Get("/{customerId}", controllers.CustomerDetail(svc.Customers, logg))
			r.Put("/{customerId}", controllers.CustomerUpdate(svc.Customers, logg))
			r.With(managers).Delete("/{customerId}", controllers.CustomerDelete(svc.Customers, logg))
		})

		r.Route("/suppliers", func(r chi.Router) {
			r.Get("/", controllers.SupplierList(svc.Suppliers, logg))
			r.Get("/{supplierId}", controllers.SupplierDetail(svc.Suppliers, logg))
			r.Get("/{supplierId}/products", controllers.SupplierProducts(svc.Suppliers, svc.Products, logg))
			r.With(managers).Get("/{supplierId}/purchases", controllers.SupplierPurchases(svc.Purchases, logg))
			r.With(managers).Post("/", controllers.SupplierCreate(svc.Suppliers, logg))
			r.With(managers).Put("/{supplierId}", controllers.SupplierUpdate(svc.Suppliers, logg))
			r.With(managers).Delete("/{supplierId}", controllers.SupplierDelete(svc.Suppliers, logg))
		})

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", controllers.SaleList(svc.Sales, logg))
			r.Get("/by-receipt", controllers.SaleByReceipt(svc.Sales, logg))
			r.Get("/summary/daily", controllers.SaleDailySummary(svc.Sales, logg))
			r.Get("/{saleId}", controllers.SaleDetail(svc.Sales, logg))
			r.Get("/{saleId}/receipt", controllers.SaleReceipt(svc.Sales, logg))
			r.With(managers).Post("/{saleId}/cancel", controllers.SaleCancel(svc.Sales, logg))
			r.With(managers).Post("/{saleId}/refund", controllers.SaleRefund(svc.Sales, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Use(managers)
			r.Post("/adjustments", controllers.InventoryAdjust(svc.Inventory, logg))
			r.Get("/products/{productId}/adjustments", controllers.InventoryAdjustments(svc.Inventory, logg))
			r.Get("/reorder-suggestions", controllers.InventoryReorderSuggestions(svc.Inventory, logg))
			r.Post("/remove-expired", controllers.InventoryRemoveExpired(svc.Inventory, logg))
		})

		r.Route("/purchases", func(r chi.Router) {
			r.Use(managers)
			r.Get("/", controllers.PurchaseList(svc.Purchases, logg))
			r.Post("/", controllers.PurchaseCreate(svc.Purchases, logg))
			r.Post("/reorder", controllers.PurchaseReorder(svc.Purchases, logg))
			r.Get("/{purchaseId}", controllers.PurchaseDetail(svc.Purchases, logg))
			r.Post("/{purchaseId}/receive", controllers.PurchaseReceive(svc.Purchases, logg))
			r.Post("/{purchaseId}/cancel", controllers.PurchaseCancel(svc.Purchases, logg))
		})

		r.Route("/payments/mpesa", func(r chi.Router) {
			r.Post("/stk-push", paymentcontrollers.MpesaSTKPush(svc.Payments, logg))
			r.Get("/status", paymentcontrollers.MpesaStatus(svc.Payments, logg))
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.RequireRoles(logg, enums.UserRoleAdmin))
			r.Get("/", controllers.UserList(svc.Users, logg))
			r.Post("/", controllers.UserCreate(svc.Users, logg))
			r.Get("/{userId}", controllers.UserDetail(svc.Users, logg))
			r.Put("/{userId}/active", controllers.UserSetActive(svc.Users, logg))
		})
	})

	return r
}

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}
