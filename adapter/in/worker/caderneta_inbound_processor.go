package worker

import (
	"context"
	"fmt"
	"time"

	"caderneta_server/core/domain"
	"caderneta_server/core/port/in"
	"caderneta_server/core/port/out"
	"caderneta_server/pkg/logger"
	"caderneta_server/pkg/metrics"
	"caderneta_server/pkg/resilience"
)

const failureReply = "Tive um problema para processar sua mensagem 😕 Tente novamente em alguns minutos."

// InboundProcessor answers queued chat messages.
type InboundProcessor struct {
	bot       in.BotService
	messenger out.Messenger
	metrics   *metrics.Registry
}

// NewInboundProcessor creates a new inbound processor
func NewInboundProcessor(bot in.BotService, messenger out.Messenger, reg *metrics.Registry) *InboundProcessor {
	if reg == nil {
		reg = metrics.Global()
	}
	return &InboundProcessor{bot: bot, messenger: messenger, metrics: reg}
}

// Process runs the bot and delivers its reply. The reply is kept on msg so
// a retry after a failed delivery does not handle the message twice.
func (p *InboundProcessor) Process(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[InboundPayload](msg)
	if err != nil {
		return resilience.Permanent(fmt.Errorf("decode inbound payload: %w", err))
	}
	ctx = context.WithValue(ctx, logger.RequestIDKey, msg.ID)

	if payload.Reply == nil {
		start := time.Now()
		reply, err := p.bot.Handle(ctx, payload.ToDomain())
		p.metrics.Since("bot.handle", start)
		if err != nil {
			p.metrics.Inc("bot.handle.errors")
			return fmt.Errorf("handle message: %w", err)
		}
		payload.Reply = &reply
		msg.Payload["reply"] = reply
	}

	start := time.Now()
	if err := p.messenger.Send(ctx, payload.From, *payload.Reply); err != nil {
		p.metrics.Inc("messenger.errors")
		return fmt.Errorf("send reply: %w", err)
	}
	p.metrics.Since("messenger.send", start)
	p.metrics.Inc("bot.replies")
	return nil
}

// Fail tells the sender their message could not be answered.
func (p *InboundProcessor) Fail(ctx context.Context, msg *Message) {
	payload, err := ParsePayload[InboundPayload](msg)
	if err != nil || payload.From == "" {
		return
	}
	if payload.Reply != nil {
		// the message was handled; only delivery failed
		return
	}
	if err := p.messenger.Send(ctx, payload.From, domain.TextReply(failureReply)); err != nil {
		logger.WithContext(ctx).WithError(err).Warn("failure notice to %s not delivered", payload.From)
	}
}
