package notification

import (
	"context"
	"log/slog"
)

const (
	// KindToastError is a user-facing failure toast.
	KindToastError = "toast_error"
	// KindToastInfo is a neutral user-facing toast.
	KindToastInfo = "toast_info"
	// KindToastSuccess confirms a completed action.
	KindToastSuccess = "toast_success"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to the user or downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger. Error toasts are logged at
// warn level so they surface with the CLI's default log level.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	level := slog.LevelInfo
	if message.Kind == KindToastError {
		level = slog.LevelWarn
	}
	n.logger.Log(ctx, level, "notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}

// Toast is shorthand for sending a toast message with no explicit destination.
func Toast(ctx context.Context, n Notifier, kind, body string) {
	if n == nil {
		return
	}
	_ = n.Send(ctx, Message{Kind: kind, Body: body})
}
