package worker

import (
	"time"

	"caderneta_server/core/domain"

	"github.com/google/uuid"
)

// JobType represents the type of a job.
type JobType = string

const (
	JobInbound JobType = "bot.inbound"
	JobReload  JobType = "classifier.reload"
)

// Message is a unit of work for the pool.
type Message struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	Retries   int            `json:"retries"`
}

// NewMessage creates a job with a fresh id.
func NewMessage(jobType string, payload map[string]any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// Key routes messages with the same key to the same worker.
func (m *Message) Key() string {
	if from, ok := m.Payload["from"].(string); ok && from != "" {
		return from
	}
	return m.ID
}

// InboundPayload is a chat message waiting to be answered.
type InboundPayload struct {
	From       string        `json:"from"`
	Text       string        `json:"text"`
	ExternalID string        `json:"external_id,omitempty"`
	ReceivedAt time.Time     `json:"received_at"`
	Reply      *domain.Reply `json:"reply,omitempty"`
}

// ToDomain converts the payload back to an inbound message.
func (p InboundPayload) ToDomain() domain.InboundMessage {
	return domain.InboundMessage{
		From:       p.From,
		Text:       p.Text,
		ExternalID: p.ExternalID,
		ReceivedAt: p.ReceivedAt,
	}
}

// InboundPayloadFrom flattens msg into a job payload.
func InboundPayloadFrom(msg domain.InboundMessage) map[string]any {
	payload := map[string]any{
		"from":        msg.From,
		"text":        msg.Text,
		"received_at": msg.ReceivedAt,
	}
	if msg.ExternalID != "" {
		payload["external_id"] = msg.ExternalID
	}
	return payload
}
