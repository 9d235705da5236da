package model

import (
	"time"

	"github.com/google/uuid"
)

// MessageType classifies entries in the shared conversation log.
type MessageType string

const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
	MessageInfo      MessageType = "info"
	MessageWarning   MessageType = "warning"
	MessageSuccess   MessageType = "success"
	MessageProgress  MessageType = "progress"
)

// Message is one entry in the append-only conversation log. RowIndex and
// SourceURL are set on progress messages tied to a specific row or source.
type Message struct {
	ID        string      `json:"id"`
	Text      string      `json:"text"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	RowIndex  *int        `json:"rowIndex,omitempty"`
	SourceURL string      `json:"sourceUrl,omitempty"`
}

// NewMessage builds a log entry with a fresh id and the current timestamp.
func NewMessage(typ MessageType, text string) Message {
	return Message{
		ID:        uuid.New().String(),
		Text:      text,
		Type:      typ,
		Timestamp: time.Now().UTC(),
	}
}
