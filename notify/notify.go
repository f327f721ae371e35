package notify

import (
	"context"
	"errors"
	"log/slog"
)

// ErrDelivery is wrapped by every Sender failure.
var ErrDelivery = errors.New("notification delivery failed")

// Kind labels a message for logging and metrics.
type Kind string

const (
	KindVerificationCode Kind = "verification_code"
	KindPasswordReset    Kind = "password_reset"
)

// Message is one outbound notification.
type Message struct {
	Kind    Kind
	To      string
	Subject string
	Body    string
}

// Sender delivers a message to its address.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// LogSender writes the message metadata, and optionally the body, to a
// logger instead of delivering it. Intended for development servers.
type LogSender struct {
	Logger      *slog.Logger
	IncludeBody bool
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []slog.Attr{
		slog.String("kind", string(msg.Kind)),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	}
	if s.IncludeBody {
		attrs = append(attrs, slog.String("body", msg.Body))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "notification", attrs...)
	return nil
}
