package worker

import (
	"context"

	"caderneta_server/pkg/logger"

	"github.com/goccy/go-json"
)

// Reloader refreshes the live classifier model.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Handler routes jobs to their processors by type.
type Handler struct {
	inbound  *InboundProcessor
	reloader Reloader
}

// NewHandler creates a new job handler
func NewHandler(inbound *InboundProcessor, reloader Reloader) *Handler {
	return &Handler{
		inbound:  inbound,
		reloader: reloader,
	}
}

// Process runs one job. Unknown types are dropped.
func (h *Handler) Process(ctx context.Context, msg *Message) error {
	logger.Debug("Processing message: %s", msg.Type)

	switch msg.Type {
	case JobInbound:
		return h.inbound.Process(ctx, msg)
	case JobReload:
		if h.reloader == nil {
			return nil
		}
		return h.reloader.Reload(ctx)
	default:
		logger.Warn("Unknown job type: %s", msg.Type)
		return nil
	}
}

// DeadLetter is called once msg has exhausted its retries.
func (h *Handler) DeadLetter(ctx context.Context, msg *Message) {
	if msg.Type == JobInbound {
		h.inbound.Fail(ctx, msg)
	}
}

// ParsePayload decodes msg.Payload into T.
func ParsePayload[T any](msg *Message) (*T, error) {
	var payload T
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
