package bootstrap

import (
	"context"
	"strings"
	"time"

	"caderneta_server/adapter/in/http"
	"caderneta_server/adapter/in/worker"
	"caderneta_server/infra/database"
	"caderneta_server/infra/middleware"
	"caderneta_server/pkg/ratelimit"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const webhookBodyLimit = 1 << 20

// NewAPI builds the HTTP surface: probes, the WhatsApp webhook and export
// downloads. pool is optional and only feeds /metrics.
func NewAPI(deps *Dependencies, publisher http.InboundPublisher, pool *worker.Pool) *fiber.App {
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             4 * webhookBodyLimit,
		ServerHeader:          "",
		DisableDefaultDate:    true,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger(deps.Metrics))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	if allowOrigins == "" || (allowOrigins == "*" && cfg.IsProduction()) {
		allowOrigins = "http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Request-ID,X-Hub-Signature-256",
		MaxAge:       86400,
	}))

	webhook := http.NewWebhookHandler(
		cfg.WhatsAppVerifyToken,
		publisher,
		ratelimit.NewDeduplicator(deps.KV, cfg.DedupWindow),
		ratelimit.NewSlidingWindowLimiter(deps.Redis, cfg.RateLimitPerMinute, time.Minute),
	)

	health := http.NewHealthHandler(healthChecks(deps), deps.DBStats, deps.Metrics).
		WithExtra(func() map[string]any {
			extra := map[string]any{"webhook": webhook.GetMetrics()}
			if pool != nil {
				extra["worker_pool"] = pool.GetMetrics()
			}
			if deps.DB != nil {
				extra["pgx_pool"] = database.GetPoolStats(deps.DB)
			}
			return extra
		})
	health.Register(app)

	webhook.Register(app,
		middleware.MaxBodySize(webhookBodyLimit),
		middleware.WebhookSignature(cfg.WhatsAppAppSecret),
	)
	http.NewExportHandler(deps.Exporter).Register(app)

	return app
}

func healthChecks(deps *Dependencies) map[string]http.HealthChecker {
	var pg, rdb, mongo http.HealthChecker
	if deps.DB != nil {
		pg = http.HealthCheckFunc(deps.DB.Ping)
	}
	if deps.Redis != nil {
		rdb = http.HealthCheckFunc(func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		})
	}
	if deps.MongoDB != nil {
		mongo = http.HealthCheckFunc(func(ctx context.Context) error {
			return deps.MongoDB.Ping(ctx, nil)
		})
	}
	return map[string]http.HealthChecker{
		"postgres": pg,
		"redis":    rdb,
		"mongodb":  mongo,
	}
}
