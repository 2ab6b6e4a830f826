// Package messaging delivers bot replies to chat channels.
package messaging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"caderneta_server/core/domain"
	"caderneta_server/core/port/out"
	"caderneta_server/pkg/apperr"
	"caderneta_server/pkg/logger"
	"caderneta_server/pkg/resilience"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
)

// Cloud API limits for reply-button messages.
const (
	maxButtons          = 3
	maxButtonTitle      = 20
	maxInteractiveBody  = 1024
	maxTextBody         = 4096
	messagingProduct    = "whatsapp"
	interactiveTypeBtn  = "button"
	buttonTypeReply     = "reply"
	recipientIndividual = "individual"
)

// WhatsAppConfig holds Cloud API credentials.
type WhatsAppConfig struct {
	BaseURL string // e.g. https://graph.facebook.com/v19.0
	PhoneID string
	Token   string
}

// WhatsAppSender implements out.Messenger over the WhatsApp Cloud API.
type WhatsAppSender struct {
	cfg    WhatsAppConfig
	client *http.Client
	cb     *gobreaker.CircuitBreaker
}

var _ out.Messenger = (*WhatsAppSender)(nil)

// NewWhatsAppSender creates a new WhatsApp sender
func NewWhatsAppSender(cfg WhatsAppConfig, client *http.Client) *WhatsAppSender {
	return &WhatsAppSender{
		cfg:    cfg,
		client: client,
		cb:     resilience.NewBreaker(resilience.DefaultBreakerConfig("whatsapp-api")),
	}
}

type textBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type replyButton struct {
	Type  string `json:"type"`
	Reply struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"reply"`
}

type interactive struct {
	Type string `json:"type"`
	Body struct {
		Text string `json:"text"`
	} `json:"body"`
	Action struct {
		Buttons []replyButton `json:"buttons"`
	} `json:"action"`
}

type outboundMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *textBody    `json:"text,omitempty"`
	Interactive      *interactive `json:"interactive,omitempty"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// buildMessage renders reply as a Cloud API message. Replies whose text is
// too long for an interactive body are sent as plain text.
func buildMessage(to string, reply domain.Reply) outboundMessage {
	msg := outboundMessage{
		MessagingProduct: messagingProduct,
		RecipientType:    recipientIndividual,
		To:               to,
	}
	if !reply.IsInteractive() || utf8.RuneCountInString(reply.Text) > maxInteractiveBody {
		msg.Type = "text"
		msg.Text = &textBody{Body: truncate(reply.Text, maxTextBody)}
		return msg
	}

	in := &interactive{Type: interactiveTypeBtn}
	in.Body.Text = reply.Text
	for i, b := range reply.Buttons {
		if i == maxButtons {
			break
		}
		var rb replyButton
		rb.Type = buttonTypeReply
		rb.Reply.ID = b.ID
		rb.Reply.Title = truncate(b.Title, maxButtonTitle)
		in.Action.Buttons = append(in.Action.Buttons, rb)
	}
	msg.Type = "interactive"
	msg.Interactive = in
	return msg
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// Send delivers reply as text or as a reply-button message.
func (s *WhatsAppSender) Send(ctx context.Context, to string, reply domain.Reply) error {
	payload, err := json.Marshal(buildMessage(to, reply))
	if err != nil {
		return apperr.Internal("encode whatsapp message").WithError(err)
	}
	url := fmt.Sprintf("%s/%s/messages", strings.TrimRight(s.cfg.BaseURL, "/"), s.cfg.PhoneID)

	err = resilience.Execute(s.cb, func() error {
		return s.post(ctx, url, payload)
	})
	if err != nil {
		logger.WithContext(ctx).WithError(err).Warn("whatsapp send to %s failed", to)
		return apperr.ExternalError("whatsapp", err)
	}
	return nil
}

func (s *WhatsAppSender) post(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return resilience.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var ae apiError
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &ae) == nil && ae.Error.Message != "" {
		msg = fmt.Sprintf("%s (code %d)", ae.Error.Message, ae.Error.Code)
	}
	err = fmt.Errorf("whatsapp api status %d: %s", resp.StatusCode, msg)
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return err
	}
	return resilience.Permanent(err)
}
