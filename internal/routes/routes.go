package routes

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/tutorconnect/coin_ledger/internal/access"
	"github.com/tutorconnect/coin_ledger/internal/auth"
	"github.com/tutorconnect/coin_ledger/internal/catalog"
	"github.com/tutorconnect/coin_ledger/internal/config"
	"github.com/tutorconnect/coin_ledger/internal/directory"
	"github.com/tutorconnect/coin_ledger/internal/identity"
	"github.com/tutorconnect/coin_ledger/internal/ledger"
	"github.com/tutorconnect/coin_ledger/internal/middleware"
	"github.com/tutorconnect/coin_ledger/internal/notification"
	"github.com/tutorconnect/coin_ledger/internal/purchase"
	"github.com/tutorconnect/coin_ledger/internal/requirement"
	"github.com/tutorconnect/coin_ledger/internal/unlock"
	"github.com/tutorconnect/coin_ledger/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Runtime holds what Setup started besides routes: the order sweeper and
// resources to release on shutdown.
type Runtime struct {
	Sweeper *purchase.Sweeper
	closers []io.Closer
}

// Close releases resources opened during Setup.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*Runtime, error) {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	cat, err := catalog.Load(d.Cfg.CoinPackagesFile)
	if err != nil {
		return nil, err
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Metrics())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	rt := &Runtime{}

	var (
		store    ledger.Store
		users    identity.Repository
		dir      directory.Repository
		grantSet access.Cache
	)
	if d.DB != nil {
		store = ledger.NewPostgresLedger(d.DB)
		users = identity.NewPostgresRepository(d.DB)
		dir = directory.NewPostgresRepository(d.DB)
	} else {
		store = ledger.NewInMemory()
		users = identity.NewMemoryRepository()
		dir = directory.NewMemoryRepository()
	}
	if d.Cache != nil {
		grantSet = access.NewRedisCache(d.Cache)
	} else {
		grantSet = access.NewMemoryCache()
	}

	var notifier notification.Notifier = notification.NewLoggerNotifier(d.Logger)
	if len(d.Cfg.KafkaBrokers) > 0 {
		kafka := notification.NewKafkaNotifier(d.Cfg.KafkaBrokers, d.Cfg.KafkaTopic)
		rt.closers = append(rt.closers, kafka)
		notifier = kafka
	}

	var gateway purchase.Gateway = purchase.MockGateway{}
	if !d.Cfg.MockPayments {
		gateway = purchase.NewRazorpayGateway(d.Cfg.RazorpayKeyID, d.Cfg.RazorpayKeySecret)
	}

	checker := access.NewChecker(grantSet, store, d.Logger)
	walletSvc := wallet.NewService(store, d.Logger)
	identitySvc := identity.NewService(users, store)
	authSvc := auth.NewService(d.Cfg, users)
	unlockSvc := unlock.NewService(store, checker, cat.Prices, unlock.DirectoryRevealers(dir), notifier, d.Logger)
	purchaseSvc := purchase.NewService(store, cat, gateway, purchase.Options{
		KeySecret:  d.Cfg.RazorpayKeySecret,
		Mock:       d.Cfg.MockPayments,
		PendingTTL: d.Cfg.PendingOrderTTL,
	}, notifier, d.Logger)
	rt.Sweeper = purchase.NewSweeper(purchaseSvc, d.Cfg.SweepInterval, d.Logger)

	authHandler := auth.NewHandler(identitySvc, authSvc, walletSvc, dir, d.Logger)
	walletHandler := wallet.NewHandler(walletSvc)
	unlockHandler := unlock.NewHandler(unlockSvc)
	purchaseHandler := purchase.NewHandler(purchaseSvc)
	requirementHandler := requirement.NewHandler(dir, identitySvc, d.Logger)

	api := app.Group("/api")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID := middleware.RequestIDFrom(c)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterAuthRoutes(api, authHandler, middleware.LoginRateLimit(d.Cache, 5))
	api.Get("/wallet/packages", purchaseHandler.Packages)
	api.Get("/wallet/prices", unlockHandler.Prices)

	// Protected routes
	protected := api.Group("", middleware.JWTAuth(authSvc))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	protected.Post("/auth/logout", authHandler.Logout)
	protected.Get("/me", authHandler.Me)
	RegisterWalletRoutes(protected, walletHandler, unlockHandler, purchaseHandler)
	RegisterRequirementRoutes(protected, requirementHandler)

	return rt, nil
}
