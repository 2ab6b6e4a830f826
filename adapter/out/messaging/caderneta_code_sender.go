package messaging

import (
	"context"
	"fmt"

	"caderneta_server/core/domain"
	"caderneta_server/core/port/out"
)

const codeMessage = "Seu código de confirmação do Caderneta é *%s*.\nSe você não pediu este código, ignore esta mensagem."

// CodeSender delivers account-linking codes through a Messenger.
type CodeSender struct {
	messenger out.Messenger
}

var _ out.CodeSender = (*CodeSender)(nil)

// NewCodeSender creates a new code sender
func NewCodeSender(m out.Messenger) *CodeSender {
	return &CodeSender{messenger: m}
}

// SendCode messages the confirmation code to phone.
func (s *CodeSender) SendCode(ctx context.Context, phone, code string) error {
	return s.messenger.Send(ctx, phone, domain.TextReply(fmt.Sprintf(codeMessage, code)))
}
