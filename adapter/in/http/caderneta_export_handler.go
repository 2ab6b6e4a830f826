package http

import (
	"context"
	"fmt"

	"caderneta_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// ExportLoader returns a stored spreadsheet by token.
type ExportLoader interface {
	Load(ctx context.Context, token string) ([]byte, bool, error)
}

// ExportHandler serves generated spreadsheets by token.
type ExportHandler struct {
	exports ExportLoader
}

// NewExportHandler creates a new export handler
func NewExportHandler(exports ExportLoader) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Register mounts the download route.
func (h *ExportHandler) Register(router fiber.Router) {
	router.Get("/exportar/:token", h.Download)
}

// Download streams the CSV stored under the token, or 404 once it expired.
func (h *ExportHandler) Download(c *fiber.Ctx) error {
	token := c.Params("token")
	data, ok, err := h.exports.Load(c.UserContext(), token)
	if err != nil {
		return apperr.Internal("load export").WithError(err)
	}
	if !ok {
		return apperr.NotFound("export")
	}
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="lancamentos-%s.csv"`, token[:8]))
	c.Set(fiber.HeaderCacheControl, "private, no-store")
	return c.Send(data)
}
