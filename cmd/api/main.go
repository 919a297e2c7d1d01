package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/smes-pos/smes-backend/api/routes"
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
	"github.com/smes-pos/smes-backend/pkg/instance"
	"github.com/smes-pos/smes-backend/pkg/logger"
	"github.com/smes-pos/smes-backend/pkg/metrics"
	"github.com/smes-pos/smes-backend/pkg/migrate"
	"github.com/smes-pos/smes-backend/pkg/mpesa"
	"github.com/smes-pos/smes-backend/pkg/outbox"
	"github.com/smes-pos/smes-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     strings.EqualFold(cfg.App.LogFormat, "console"),
		Fields:      map[string]any{"env": cfg.App.Env, "instance": instance.GetID()},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	services, err := buildServices(ctx, cfg, logg, dbClient, redisClient, sessionManager, registry)
	if err != nil {
		logg.Error(ctx, "failed to build services", err)
		os.Exit(1)
	}

	if cfg.Bootstrap.Enabled() {
		created, err := services.Users.EnsureAdmin(ctx, cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap admin user", err)
			os.Exit(1)
		}
		if created {
			logg.Info(logg.WithField(ctx, "username", cfg.Bootstrap.AdminUsername), "bootstrap admin created")
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithField(ctx, "addr", addr)
	logg.Info(serverCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, sessionManager, registry, metrics.NewHTTPMetrics(registry), services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(serverCtx, "graceful shutdown failed", err)
		}
	}
}

func buildServices(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	sessionManager *session.Manager,
	registry prometheus.Registerer,
) (routes.Services, error) {
	conn := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	userRepo := users.NewRepository(conn)
	productRepo := products.NewRepository(conn)
	supplierRepo := suppliers.NewRepository(conn)
	customerRepo := customers.NewRepository(conn)
	discountRepo := discounts.NewRepository(conn)
	salesRepo := sales.NewRepository(conn)
	adjustmentRepo := inventory.NewRepository(conn)

	var out routes.Services
	var err error

	if out.Auth, err = auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	}); err != nil {
		return out, err
	}
	if out.Users, err = users.NewService(dbClient, userRepo, cfg.Password); err != nil {
		return out, err
	}
	if out.Products, err = products.NewService(productRepo, supplierRepo); err != nil {
		return out, err
	}
	if out.Suppliers, err = suppliers.NewService(supplierRepo); err != nil {
		return out, err
	}
	if out.Customers, err = customers.NewService(customerRepo); err != nil {
		return out, err
	}
	if out.Discounts, err = discounts.NewService(dbClient, discountRepo, productRepo); err != nil {
		return out, err
	}

	evaluator, err := discounts.NewEvaluator(discountRepo)
	if err != nil {
		return out, err
	}
	if out.Cart, err = cart.NewService(cart.NewMemoryStore(), productRepo, evaluator, cfg.Tax, logg); err != nil {
		return out, err
	}
	if out.Checkout, err = checkout.NewService(dbClient, out.Cart, productRepo, salesRepo, customerRepo, emitter, metrics.NewCheckoutMetrics(registry), logg); err != nil {
		return out, err
	}

	ledger, err := inventory.NewLedger(productRepo, adjustmentRepo, emitter)
	if err != nil {
		return out, err
	}
	if out.Inventory, err = inventory.NewService(dbClient, ledger, productRepo, adjustmentRepo, logg); err != nil {
		return out, err
	}
	if out.Sales, err = sales.NewService(dbClient, salesRepo, ledger, customerRepo, emitter, logg); err != nil {
		return out, err
	}
	if out.Purchases, err = purchases.NewService(dbClient, purchases.NewRepository(conn), productRepo, supplierRepo, ledger, emitter, logg); err != nil {
		return out, err
	}

	paymentMetrics := metrics.NewPaymentMetrics(registry)
	if !cfg.Mpesa.Enabled() {
		logg.Warn(ctx, "mpesa credentials missing; payment routes disabled")
		return out, nil
	}
	opts := []mpesa.Option{mpesa.WithMetrics(paymentMetrics)}
	if cfg.FeatureFlags.SharedMpesaTokens {
		opts = append(opts, mpesa.WithTokenCache(mpesa.NewRedisTokenCache(redisClient, cfg.Mpesa.ShortCode, logg)))
	}
	gateway, err := mpesa.NewClient(cfg.Mpesa, opts...)
	if err != nil {
		return out, err
	}
	if out.Payments, err = payments.NewService(dbClient, payments.NewRepository(conn), gateway, emitter, paymentMetrics, logg); err != nil {
		return out, err
	}
	return out, nil
}
