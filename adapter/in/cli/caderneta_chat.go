// Package cli drives the bot from a terminal.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"caderneta_server/core/domain"
	"caderneta_server/core/port/in"
	"caderneta_server/core/port/out"
)

const chatHelp = `Digite mensagens como no WhatsApp.
  #N           toca o botão N da última resposta
  /numero X    troca o telefone de quem está falando
  /sair        encerra`

// Chat is a line-oriented console conversation with the bot.
type Chat struct {
	bot       in.BotService
	messenger out.Messenger
	phone     string
	now       func() time.Time
	seq       int
	buttons   []domain.Button
}

// NewChat creates a console session that talks to bot as phone.
func NewChat(bot in.BotService, messenger out.Messenger, phone string) *Chat {
	return &Chat{bot: bot, messenger: messenger, phone: phone, now: time.Now}
}

// Run reads messages from r until EOF, /sair or ctx is done.
func (c *Chat) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	fmt.Fprintln(w, chatHelp)
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprintf(w, "%s> ", c.phone)
		if !scanner.Scan() {
			fmt.Fprintln(w)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/sair":
			return nil
		case strings.HasPrefix(line, "/numero"):
			if phone := strings.TrimSpace(strings.TrimPrefix(line, "/numero")); phone != "" {
				c.phone = phone
			}
			continue
		case strings.HasPrefix(line, "#"):
			text, ok := c.button(line)
			if !ok {
				fmt.Fprintln(w, "botão inexistente")
				continue
			}
			line = text
		}

		if err := c.send(ctx, line); err != nil {
			fmt.Fprintf(w, "erro: %v\n", err)
		}
	}
}

func (c *Chat) button(line string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(line, "#"))
	if err != nil || n < 1 || n > len(c.buttons) {
		return "", false
	}
	return c.buttons[n-1].ID, true
}

func (c *Chat) send(ctx context.Context, text string) error {
	c.seq++
	msg := domain.InboundMessage{
		From:       c.phone,
		Text:       text,
		ExternalID: fmt.Sprintf("%schat.%d.%d", domain.ExternalIDPrefix, c.now().Unix(), c.seq),
		ReceivedAt: c.now(),
	}
	reply, err := c.bot.Handle(ctx, msg)
	if err != nil {
		return err
	}
	c.buttons = reply.Buttons
	return c.messenger.Send(ctx, c.phone, reply)
}
