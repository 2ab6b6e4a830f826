package http

import (
	"context"
	"sync/atomic"
	"time"

	"caderneta_server/core/domain"
	"caderneta_server/pkg/apperr"
	"caderneta_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// InboundPublisher queues a message for the workers.
type InboundPublisher interface {
	PublishInbound(ctx context.Context, msg domain.InboundMessage) (string, error)
}

// Deduplicator remembers delivered message ids.
type Deduplicator interface {
	Seen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// Limiter caps messages per sender.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration)
}

// WebhookMetrics counts webhook outcomes since start.
type WebhookMetrics struct {
	Received   int64
	Queued     int64
	Duplicates int64
	Limited    int64
	Rejected   int64
	Errors     int64
}

// WebhookHandler receives WhatsApp Cloud API callbacks.
type WebhookHandler struct {
	verifyToken string
	publisher   InboundPublisher
	dedup       Deduplicator
	limiter     Limiter
	now         func() time.Time
	metrics     WebhookMetrics
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(verifyToken string, publisher InboundPublisher, dedup Deduplicator, limiter Limiter) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		publisher:   publisher,
		dedup:       dedup,
		limiter:     limiter,
		now:         time.Now,
	}
}

// Register mounts the verification and delivery routes behind middleware.
func (h *WebhookHandler) Register(router fiber.Router, middleware ...fiber.Handler) {
	bot := router.Group("/bot/whatsapp", middleware...)
	bot.Get("/", h.Verify)
	bot.Post("/", h.Receive)
}

// GetMetrics returns a snapshot of the counters
func (h *WebhookHandler) GetMetrics() WebhookMetrics {
	return WebhookMetrics{
		Received:   atomic.LoadInt64(&h.metrics.Received),
		Queued:     atomic.LoadInt64(&h.metrics.Queued),
		Duplicates: atomic.LoadInt64(&h.metrics.Duplicates),
		Limited:    atomic.LoadInt64(&h.metrics.Limited),
		Rejected:   atomic.LoadInt64(&h.metrics.Rejected),
		Errors:     atomic.LoadInt64(&h.metrics.Errors),
	}
}

// Verify answers the subscription handshake.
func (h *WebhookHandler) Verify(c *fiber.Ctx) error {
	if c.Query("hub.mode") != "subscribe" || h.verifyToken == "" || c.Query("hub.verify_token") != h.verifyToken {
		return apperr.Forbidden("webhook verification failed")
	}
	return c.SendString(c.Query("hub.challenge"))
}

// Receive queues every message of a delivery and acknowledges it. A
// delivery is only refused when queueing fails, so the platform retries it.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	msgs, err := ParseWebhook(c.Body(), h.now())
	if err != nil {
		return apperr.BadRequest("invalid webhook payload")
	}

	requestID, _ := c.Locals("request_id").(string)
	ctx := context.WithValue(c.UserContext(), logger.RequestIDKey, requestID)
	log := logger.WithContext(ctx)

	for _, msg := range msgs {
		atomic.AddInt64(&h.metrics.Received, 1)

		phone := domain.NormalizePhone(msg.From)
		if !domain.IsBrazilianMobile(phone) {
			atomic.AddInt64(&h.metrics.Rejected, 1)
			log.Warn("ignoring message %s from unsupported number %q", msg.ExternalID, msg.From)
			continue
		}

		if seen, err := h.dedup.Seen(ctx, msg.ExternalID); err != nil {
			log.WithError(err).Warn("dedup check failed for %s", msg.ExternalID)
		} else if seen {
			atomic.AddInt64(&h.metrics.Duplicates, 1)
			log.Debug("duplicate delivery %s", msg.ExternalID)
			continue
		}

		if ok, retryIn := h.limiter.Allow(ctx, phone); !ok {
			atomic.AddInt64(&h.metrics.Limited, 1)
			log.Warn("sender %s rate limited, retry in %s", phone, retryIn)
			continue
		}

		if _, err := h.publisher.PublishInbound(ctx, msg); err != nil {
			atomic.AddInt64(&h.metrics.Errors, 1)
			if ferr := h.dedup.Forget(ctx, msg.ExternalID); ferr != nil {
				log.WithError(ferr).Warn("forget %s", msg.ExternalID)
			}
			return apperr.Internal("queue inbound message").WithError(err)
		}
		atomic.AddInt64(&h.metrics.Queued, 1)
	}

	return c.SendString("EVENT_RECEIVED")
}
