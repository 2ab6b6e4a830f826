package messaging

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"caderneta_server/core/domain"
	"caderneta_server/core/port/out"
)

// ConsoleSender implements out.Messenger by printing replies, for the chat
// console and local development.
type ConsoleSender struct {
	mu sync.Mutex
	w  io.Writer
}

var _ out.Messenger = (*ConsoleSender)(nil)

// NewConsoleSender creates a sender that writes to w.
func NewConsoleSender(w io.Writer) *ConsoleSender {
	return &ConsoleSender{w: w}
}

// Render formats reply the way the console shows it.
func Render(reply domain.Reply) string {
	var b strings.Builder
	b.WriteString(reply.Text)
	if reply.IsInteractive() {
		b.WriteString("\n")
		for _, btn := range reply.Buttons {
			fmt.Fprintf(&b, " [%s]", btn.Title)
		}
	}
	return b.String()
}

func (s *ConsoleSender) Send(_ context.Context, to string, reply domain.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "bot -> %s:\n%s\n\n", to, Render(reply))
	return err
}
