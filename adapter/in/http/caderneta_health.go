package http

import (
	"context"
	"database/sql"
	"time"

	"caderneta_server/pkg/metrics"

	"github.com/gofiber/fiber/v2"
)

// HealthChecker is a dependency /ready pings.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler serves liveness, readiness and metrics.
type HealthHandler struct {
	checks   map[string]HealthChecker
	dbStats  func() sql.DBStats
	registry *metrics.Registry
	extra    func() map[string]any
}

// NewHealthHandler builds the probes. A nil checker is reported as not
// configured.
func NewHealthHandler(checks map[string]HealthChecker, dbStats func() sql.DBStats, reg *metrics.Registry) *HealthHandler {
	if reg == nil {
		reg = metrics.Global()
	}
	return &HealthHandler{checks: checks, dbStats: dbStats, registry: reg}
}

// WithExtra adds fields to the metrics endpoint.
func (h *HealthHandler) WithExtra(fn func() map[string]any) *HealthHandler {
	h.extra = fn
	return h
}

// Register mounts /health, /ready and /metrics.
func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
	app.Get("/metrics", h.Metrics)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready pings every configured dependency.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	allHealthy := true
	for name, checker := range h.checks {
		if checker == nil {
			checks[name] = "not configured"
			continue
		}
		if err := checker.Ping(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			allHealthy = false
			continue
		}
		checks[name] = "healthy"
	}

	status := "ready"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Metrics reports latency, counters and pool stats.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	body := h.registry.Snapshot()
	if h.dbStats != nil {
		body["db_pool"] = metrics.AssessDBPool(h.dbStats())
	}
	if h.extra != nil {
		for k, v := range h.extra() {
			body[k] = v
		}
	}
	return c.JSON(body)
}
