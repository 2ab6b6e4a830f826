package out

import (
	"context"

	"caderneta_server/core/domain"
)

// Messenger delivers a reply to a chat identity.
type Messenger interface {
	Send(ctx context.Context, to string, reply domain.Reply) error
}

// CodeSender delivers an onboarding confirmation code out of band.
type CodeSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// ChartRenderer produces a link to a rendered cash-flow chart.
type ChartRenderer interface {
	RenderCashFlow(ctx context.Context, user *domain.User, interval domain.Interval, txs []*domain.Transaction) (string, error)
}

// Exporter produces a link to a spreadsheet export.
type Exporter interface {
	Export(ctx context.Context, user *domain.User, interval domain.Interval, txs []*domain.Transaction) (string, error)
}
