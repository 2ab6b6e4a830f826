package http

import (
	"strconv"
	"time"

	"caderneta_server/core/domain"

	"github.com/goccy/go-json"
)

type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				MessagingProduct string            `json:"messaging_product"`
				Messages         []whatsAppMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type whatsAppMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply,omitempty"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply,omitempty"`
	} `json:"interactive,omitempty"`
	Button *struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button,omitempty"`
}

// ParseWebhook extracts the chat messages of a WhatsApp Cloud API webhook.
// Status updates carry no messages and yield an empty slice. Media and
// other unsupported types become messages with empty text.
func ParseWebhook(body []byte, now time.Time) ([]domain.InboundMessage, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	var msgs []domain.InboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "" && change.Field != "messages" {
				continue
			}
			for _, m := range change.Value.Messages {
				if m.Type == "reaction" {
					continue
				}
				msgs = append(msgs, domain.InboundMessage{
					From:       m.From,
					Text:       m.text(),
					ExternalID: m.ID,
					ReceivedAt: m.receivedAt(now),
				})
			}
		}
	}
	return msgs, nil
}

// text returns what the user typed or the id of the button they tapped.
func (m whatsAppMessage) text() string {
	switch {
	case m.Text != nil:
		return m.Text.Body
	case m.Interactive != nil && m.Interactive.ButtonReply != nil:
		return m.Interactive.ButtonReply.ID
	case m.Interactive != nil && m.Interactive.ListReply != nil:
		return m.Interactive.ListReply.ID
	case m.Button != nil:
		if m.Button.Payload != "" {
			return m.Button.Payload
		}
		return m.Button.Text
	}
	return ""
}

func (m whatsAppMessage) receivedAt(now time.Time) time.Time {
	sec, err := strconv.ParseInt(m.Timestamp, 10, 64)
	if err != nil || sec <= 0 {
		return now
	}
	return time.Unix(sec, 0).UTC()
}
