// Package app wires configuration, storage, accounts and the HTTP stack into a
// runnable server.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"catalogue/docs"
	"catalogue/internal/auth"
	"catalogue/internal/config"
	"catalogue/internal/database"
	"catalogue/internal/database/migration"
	"catalogue/internal/http/handler"
	"catalogue/internal/http/middleware"
	"catalogue/internal/repository/postgres"
	"catalogue/internal/service"
	"catalogue/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// App is the assembled HTTP server and the resources it owns.
type App struct {
	cfg    *config.AppConfig
	logger *slog.Logger
	fiber  *fiber.App
	db     *sql.DB
}

// Accounts bundles what the account routes need.
type Accounts struct {
	DB      *sql.DB
	Service service.AuthService
	Tokens  *auth.TokenManager
}

// OpenAccounts connects to PostgreSQL, applies the schema and seeds the default roles.
// The caller closes Accounts.DB.
func OpenAccounts(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*Accounts, error) {
	db, err := database.NewPostgres(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := migration.EnsureMigrated(ctx, db, logger, cfg.Database.Host); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	svc := service.NewAuthService(
		postgres.NewUserPostgres(db),
		postgres.NewRolePostgres(db),
		tokens,
		cfg.Auth.EmailDomain,
		logger,
	)
	if err := svc.SeedRoles(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed roles: %w", err)
	}

	return &Accounts{DB: db, Service: svc, Tokens: tokens}, nil
}

func newStorage(cfg *config.AppConfig) (storage.Storage, error) {
	if cfg.Storage.Driver == config.StorageDriverMinIO {
		return storage.NewMinIO(cfg.MinIO, cfg.Storage.UploadsDir)
	}
	return storage.NewFS(cfg.Storage.UploadsDir)
}

// New builds the server. The account routes are mounted only when a database is configured.
func New(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := newStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	catSvc := service.NewCatalogueService(store, cfg.BaseURL, logger)

	a := &App{cfg: cfg, logger: logger}

	var (
		authSvc service.AuthService
		tokens  middleware.TokenParser
	)
	if cfg.Database.Enabled() {
		acc, err := OpenAccounts(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		a.db = acc.DB
		authSvc = acc.Service
		tokens = acc.Tokens
	} else {
		logger.Warn("database_disabled", slog.String("detail", "account and upload routes are not mounted"))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	a.fiber = fiber.New(fiber.Config{
		AppName:               "catalogue",
		ErrorHandler:          handler.ErrorHandler(),
		BodyLimit:             cfg.Storage.MaxUploadMB << 20,
		DisableStartupMessage: true,
	})

	a.fiber.Use(middleware.RequestID())
	a.fiber.Use(middleware.RequestLogger(logger))
	a.fiber.Use(otelfiber.Middleware())
	a.fiber.Use(metrics.Handler())
	a.fiber.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, x-access-token",
	}))

	a.fiber.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Swagger UI with dynamic host and scheme
	a.fiber.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	handler.RegisterRoutes(a.fiber, a.db, catSvc, authSvc, tokens)

	return a, nil
}

// Fiber exposes the underlying fiber app, mainly for app.Test in tests.
func (a *App) Fiber() *fiber.App {
	return a.fiber
}

// Run serves on the configured port until ctx is cancelled or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	addr := ":" + a.cfg.Port
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("server_starting",
			slog.String("address", addr),
			slog.String("storage", a.cfg.Storage.Driver),
			slog.Bool("accounts", a.db != nil))
		if err := a.fiber.Listen(addr); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			a.logger.Info("shutdown_signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
		}

		if err := a.fiber.ShutdownWithTimeout(shutdownTimeout); err != nil {
			a.logger.Error("shutdown_failed", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("server_failed", slog.String("error", err.Error()))
		return err
	}

	a.logger.Info("server_stopped")
	return nil
}

// Close releases the database connection, if any.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
