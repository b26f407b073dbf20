package server

import (
    "context"
    "errors"
    "log/slog"
    "time"

    "github.com/gofiber/fiber/v2"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/redis/go-redis/v9"

    "github.com/tutorconnect/coin_ledger/internal/config"
    "github.com/tutorconnect/coin_ledger/internal/middleware"
    "github.com/tutorconnect/coin_ledger/internal/routes"
)

// Server wraps the Fiber application, the order sweeper and shared dependencies.
type Server struct {
    app     *fiber.App
    cfg     config.Config
    runtime *routes.Runtime
    logger  *slog.Logger
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
// db and cache may be nil in development, in which case in-memory stores are used.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
    app := fiber.New(fiber.Config{
        AppName:      cfg.AppName,
        ReadTimeout:  30 * time.Second,
        WriteTimeout: 30 * time.Second,
        ErrorHandler: middleware.ErrorHandler(logger),
    })

    rt, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger})
    if err != nil {
        return nil, err
    }

    return &Server{app: app, cfg: cfg, runtime: rt, logger: logger}, nil
}

// App exposes the underlying Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
    return s.app
}

// Listen starts the order sweeper and then the HTTP server. It blocks until
// the server stops.
func (s *Server) Listen(ctx context.Context) error {
    s.runtime.Sweeper.Start(ctx)
    return s.app.Listen(s.cfg.Address())
}

// Shutdown stops accepting requests, stops the sweeper and releases the
// event publisher.
func (s *Server) Shutdown(ctx context.Context) error {
    err := s.app.ShutdownWithContext(ctx)
    s.runtime.Sweeper.Stop()
    return errors.Join(err, s.runtime.Close())
}
