package in

import (
	"context"

	"caderneta_server/core/domain"
)

// BotService answers one inbound chat message.
type BotService interface {
	Handle(ctx context.Context, msg domain.InboundMessage) (domain.Reply, error)
}
