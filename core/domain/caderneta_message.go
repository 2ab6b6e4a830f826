package domain

import (
	"strings"
	"time"
)

// InboundMessage is a channel-agnostic incoming chat message.
type InboundMessage struct {
	From       string
	Text       string
	ExternalID string
	ReceivedAt time.Time
}

// Button is a quick reply option.
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Reply is a plain or interactive outbound message.
type Reply struct {
	Text    string   `json:"text"`
	Buttons []Button `json:"buttons,omitempty"`
}

// TextReply builds a plain text reply.
func TextReply(text string) Reply {
	return Reply{Text: text}
}

func (r Reply) IsInteractive() bool {
	return len(r.Buttons) > 0
}

// ExternalIDPrefix marks channel-issued message ids.
const ExternalIDPrefix = "wamid."

// IsExternalMessageID reports whether s looks like a channel message id.
func IsExternalMessageID(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), ExternalIDPrefix)
}
