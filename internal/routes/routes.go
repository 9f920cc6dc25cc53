package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kolopay/kolopay/internal/auth"
	"github.com/kolopay/kolopay/internal/config"
	"github.com/kolopay/kolopay/internal/funding"
	"github.com/kolopay/kolopay/internal/gateway"
	"github.com/kolopay/kolopay/internal/identity"
	"github.com/kolopay/kolopay/internal/ledger"
	"github.com/kolopay/kolopay/internal/middleware"
	"github.com/kolopay/kolopay/internal/notification"
	"github.com/kolopay/kolopay/internal/payments"
	"github.com/kolopay/kolopay/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	if d.Logger != nil {
		app.Use(middleware.Audit(d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// Services and handlers
	var ledgerBackend ledger.Ledger
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
	}

	var walletRepo wallet.Repository
	if d.DB != nil {
		walletRepo = wallet.NewPostgresRepository(d.DB)
	} else {
		walletRepo = wallet.NewMemoryRepository()
	}
	walletSvc := wallet.NewService(walletRepo, ledgerBackend)
	notifier := notification.NewLoggerNotifier(d.Logger)
	paymentSvc := payments.NewService(ledgerBackend, walletSvc, notifier)

	var identityRepo identity.Repository
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
	}
	identitySvc := identity.NewService(identityRepo)
	authSvc := auth.NewService(d.Cfg, identityRepo)
	authHandler := auth.NewHandler(identitySvc, authSvc, walletSvc)

	var gatewayClient gateway.Client
	if d.Cfg.PaystackSecretKey != "" {
		gatewayClient = gateway.NewPaystack(d.Cfg.PaystackSecretKey, d.Cfg.PaystackBaseURL, d.Logger)
	} else {
		gatewayClient = &gateway.Static{}
	}
	fundingSvc := funding.NewService(ledgerBackend, walletSvc, gatewayClient, d.Cfg.PaystackSecretKey, notifier, d.Logger)

	fundingHandler := funding.NewHandler(fundingSvc, identityRepo)
	paymentHandler := payments.NewHandler(paymentSvc)
	walletHandler := wallet.NewHandler(walletSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes. The webhook stays outside the idempotency middleware:
	// its deliveries are deduplicated by transaction reference instead of an
	// Idempotency-Key header the gateway would never send.
	RegisterIdentityRoutes(api, identitySvc, walletSvc, d.Logger)
	rateLimiter := middleware.LoginRateLimit(d.Cache, 5)
	RegisterAuthRoutes(api, authHandler, rateLimiter)
	api.Post("/wallet/paystack/webhook", fundingHandler.Webhook)
	api.Get("/payments/callback", fundingHandler.Callback)

	// Protected routes
	jwtmw := middleware.JWTAuth(authSvc, identityRepo)
	protected := api.Group("", jwtmw)
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterWalletRoutes(protected, walletHandler)
	RegisterFundingRoutes(protected, fundingHandler)
	RegisterPaymentRoutes(protected, paymentHandler)

	return nil
}
