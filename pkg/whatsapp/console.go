package whatsapp

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConsoleSender logs messages instead of delivering them.
type ConsoleSender struct {
	logger *zap.Logger

	mu   sync.Mutex
	sent []Message
}

var _ Sender = (*ConsoleSender)(nil)

// NewConsoleSender constructs a ConsoleSender.
func NewConsoleSender(logger *zap.Logger) *ConsoleSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleSender{logger: logger}
}

// Send logs the message and records it in memory.
func (s *ConsoleSender) Send(ctx context.Context, msg Message) (*Result, error) {
	if msg.To == "" {
		return nil, errors.New("recipient phone is required")
	}
	id := "console-" + uuid.NewString()
	s.logger.Sugar().Infow("whatsapp message (console)", "to", msg.To, "type", msg.Type, "message_id", id, "body", msg.Body)

	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	return &Result{Success: true, MessageID: id}, nil
}

// Sent returns a copy of every message logged so far.
func (s *ConsoleSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
