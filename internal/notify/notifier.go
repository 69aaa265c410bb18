// Package notify abstracts the outbound notification sent when a contact
// message is accepted. Delivery mechanics live behind the Notifier
// interface; the pipeline only decides whether to invoke it.
package notify

import (
	"context"
	"log/slog"
)

// Message is the content handed to a Notifier for an accepted submission.
type Message struct {
	Name    string
	Email   string
	Subject string
	Body    string
	Score   float64
}

// Notifier is invoked for accepted, non-spam contact messages.
type Notifier interface {
	ContactReceived(ctx context.Context, msg Message) error
}

// LogNotifier writes notifications to the structured log. It stands in for
// a real delivery channel in development and tests.
type LogNotifier struct{}

// Ensure LogNotifier implements Notifier at compile time.
var _ Notifier = LogNotifier{}

func (LogNotifier) ContactReceived(_ context.Context, msg Message) error {
	slog.Info("contact message received",
		"name", msg.Name,
		"email", msg.Email,
		"subject", msg.Subject,
		"score", msg.Score,
	)
	return nil
}
