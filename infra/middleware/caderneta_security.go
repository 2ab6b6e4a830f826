package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"caderneta_server/pkg/logger"
	"caderneta_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const signatureHeader = "X-Hub-Signature-256"

// SecurityHeaders adds security headers to all responses
func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		return c.Next()
	}
}

// MaxBodySize limits request body size for specific endpoints
func MaxBodySize(maxBytes int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(c.Body()) > maxBytes {
			return response.ErrorWithDetails(c, fiber.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
				"request body too large", map[string]any{"max_size": maxBytes})
		}
		return c.Next()
	}
}

// WebhookSignature rejects webhook deliveries whose X-Hub-Signature-256
// does not match the HMAC of the body under secret. An empty secret
// disables the check.
func WebhookSignature(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" || c.Method() != fiber.MethodPost {
			return c.Next()
		}
		if !ValidSignature(secret, c.Body(), c.Get(signatureHeader)) {
			logger.WithField("ip", c.IP()).Warn("webhook signature mismatch on %s", c.Path())
			return response.Forbidden(c, "invalid signature")
		}
		return c.Next()
	}
}

// ValidSignature checks a "sha256=<hex>" header against body.
func ValidSignature(secret string, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
