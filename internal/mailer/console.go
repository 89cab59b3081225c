package mailer

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// ConsoleMailer logs messages instead of delivering them. It keeps every
// message it was given so tests can inspect them.
type ConsoleMailer struct {
	log zerolog.Logger

	mu   sync.Mutex
	sent []Message
}

// NewConsoleMailer creates a new ConsoleMailer.
func NewConsoleMailer(log zerolog.Logger) *ConsoleMailer {
	return &ConsoleMailer{log: log.With().Str("component", "console_mailer").Logger()}
}

// Send logs msg and records it.
func (m *ConsoleMailer) Send(_ context.Context, msg Message) error {
	m.log.Info().
		Str("to", msg.To.String()).
		Str("subject", msg.Subject).
		Msg(msg.Text)

	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *ConsoleMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
