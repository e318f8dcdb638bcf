// Package whatsapp delivers outbound campaign messages through a WhatsApp
// Business style HTTP API, or to the log in development.
package whatsapp

import "context"

// MessageType classifies an outbound message.
type MessageType string

const (
	TypeGeneral  MessageType = "general"
	TypeReminder MessageType = "reminder"
)

// Message is a single outbound notification.
type Message struct {
	To   string
	Body string
	Type MessageType
}

// Result reports the provider's acceptance of a message.
type Result struct {
	Success   bool
	MessageID string
}

// Sender is implemented by every delivery channel.
type Sender interface {
	Send(ctx context.Context, msg Message) (*Result, error)
}
