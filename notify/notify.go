// Package notify delivers verification codes to subjects.
//
// The Engine depends only on [Sender]. [LogSender] writes messages to a zap
// logger and is meant for development; production deployments plug in a
// mail or SMS gateway.
package notify

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Kind identifies the template of a message.
type Kind string

const (
	KindEmailVerification Kind = "email_verification"
	KindPasswordReset     Kind = "password_reset"
)

// ErrNoRecipient is returned for a message without a recipient.
var ErrNoRecipient = errors.New("notify: message has no recipient")

// Message is one outbound notification.
type Message struct {
	Kind Kind
	To   string
	Name string
	Code string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to [Sender].
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// LogSender logs every message. When RevealCodes is false the code is
// redacted.
type LogSender struct {
	Logger      *zap.Logger
	RevealCodes bool
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	code := "[redacted]"
	if s.RevealCodes {
		code = msg.Code
	}
	logger.Info("notification",
		zap.String("kind", string(msg.Kind)),
		zap.String("to", msg.To),
		zap.String("code", code),
	)
	return nil
}

// Recorder keeps sent messages in memory. Useful in tests.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of everything sent so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Last returns the most recent message sent to addr.
func (r *Recorder) Last(addr string) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].To == addr {
			return r.messages[i], true
		}
	}
	return Message{}, false
}
