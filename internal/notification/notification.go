package notification

import (
	"context"
	"log/slog"
	"sync"
)

const (
	// KindOTP carries a one-time passcode to the user's email.
	KindOTP = "otp"
	// KindTransferReceived tells a receiver that funds arrived.
	KindTransferReceived = "transfer_received"
	// KindScheduledFailed tells a sender that a scheduled payment could not run.
	KindScheduledFailed = "scheduled_failed"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems (mail sender, push).
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.InfoContext(ctx, "notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}

// Recorder keeps every message in memory. Tests use it to read OTP codes.
type Recorder struct {
	mu       sync.Mutex
	Messages []Message
}

// Send records the message.
func (r *Recorder) Send(_ context.Context, message Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, message)
	return nil
}

// Last returns the most recent message of the given kind.
func (r *Recorder) Last(kind string) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Kind == kind {
			return r.Messages[i], true
		}
	}
	return Message{}, false
}
