package routes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/eas-pay/eas_wallet/internal/apiclient"
	"github.com/eas-pay/eas_wallet/internal/auth"
	"github.com/eas-pay/eas_wallet/internal/config"
	"github.com/eas-pay/eas_wallet/internal/intentlog"
	"github.com/eas-pay/eas_wallet/internal/middleware"
	"github.com/eas-pay/eas_wallet/internal/notification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Registry receives the proxy metrics. A fresh registry is used when nil.
	Registry *prometheus.Registry
	// Upstream overrides the Grid API client built from Cfg.
	Upstream *apiclient.Client
	// Intents overrides the intent log chosen from DB.
	Intents intentlog.Log
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() && d.Cache == nil {
		return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	registry := d.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	metrics := middleware.NewMetrics(registry)

	upstream := d.Upstream
	if upstream == nil {
		var err error
		upstream, err = apiclient.New(apiclient.Options{
			BaseURL:  d.Cfg.UpstreamURL,
			Timeout:  d.Cfg.UpstreamTimeout,
			Headers:  map[string]string{"x-api-key": d.Cfg.UpstreamAPIKey},
			Notifier: notification.NewLoggerNotifier(d.Logger),
			Logger:   d.Logger,
		})
		if err != nil {
			return fmt.Errorf("build upstream client: %w", err)
		}
	}

	intents := d.Intents
	if intents == nil {
		if d.DB != nil {
			pg := intentlog.NewPostgresLog(d.DB)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := pg.EnsureSchema(ctx); err != nil {
				return err
			}
			intents = pg
		} else {
			intents = intentlog.NewInMemory()
		}
	}

	var versions auth.VersionStore = auth.NewMemoryVersions()
	if d.Cache != nil {
		versions = auth.NewRedisVersions(d.Cache)
	}
	sessions := auth.NewService(d.Cfg.SessionSecret, d.Cfg.SessionTTL, versions)

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(metrics.Handler())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	app.Get(d.Cfg.MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	fwd := &forwarder{upstream: upstream, metrics: metrics, logger: d.Logger}
	idempotency := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	rateLimiter := middleware.OTPRateLimit(d.Cache, d.Cfg.OTPMaxPerWindow, d.Cfg.OTPWindow, d.Logger)

	// Public routes
	RegisterAuthRoutes(app, fwd, sessions, rateLimiter, d.Logger)
	RegisterReportRoutes(app, d.Logger)

	// Protected routes
	protected := app.Group("", middleware.Session(sessions, d.Logger))
	h := &authRoutes{fwd: fwd, sessions: sessions, logger: d.Logger}
	protected.Post(apiclient.PathLogout, h.logout)
	RegisterWalletRoutes(protected, fwd)
	RegisterFundingRoutes(protected, fwd, idempotency)
	RegisterPaymentRoutes(protected, fwd, intents, idempotency, d.Logger)

	return nil
}
