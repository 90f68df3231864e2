// Package chat keeps the history of sent messages and takes ownership of
// voice recordings handed off by the coordinator.
package chat

import (
	"time"

	"github.com/alkime/rapidvoice/internal/voice"
)

// Kind distinguishes text from voice messages.
type Kind string

const (
	KindText  Kind = "text"
	KindVoice Kind = "voice"
)

// Message is one entry in the chat history.
type Message struct {
	ID      string              `json:"id"`
	Kind    Kind                `json:"kind"`
	Content string              `json:"content,omitempty"`
	Voice   *voice.VoiceMessage `json:"voice,omitempty"`
	SentAt  time.Time           `json:"sentAt"`
}
