// Package natsnotify implements the Notification port over NATS, grounded
// on the teacher's pkg/events publisher: one subject per notify.Kind,
// carrying the userID and payload as a JSON envelope.
package natsnotify

import (
	"context"
	"fmt"

	"github.com/queueme/scheduling-core/internal/notify"
	"github.com/queueme/scheduling-core/pkg/events"
)

// subjectPrefix namespaces every notification subject this module publishes.
const subjectPrefix = "scheduling.notification."

// envelope is the wire shape published to NATS.
type envelope struct {
	UserID  string         `json:"user_id"`
	Kind    notify.Kind    `json:"kind"`
	Payload map[string]any `json:"payload"`
}

// Notifier publishes notifications over NATS via the shared events.Publisher.
type Notifier struct {
	publisher *events.Publisher
}

func New(publisher *events.Publisher) *Notifier {
	return &Notifier{publisher: publisher}
}

func subject(kind notify.Kind) string {
	return subjectPrefix + string(kind)
}

// Notify publishes the notification; delivery is fire-and-forget, matching
// the port's contract that a failure here must never fail the booking call.
func (n *Notifier) Notify(ctx context.Context, userID string, kind notify.Kind, payload map[string]any) error {
	if err := n.publisher.Publish(subject(kind), envelope{UserID: userID, Kind: kind, Payload: payload}); err != nil {
		return fmt.Errorf("natsnotify: publish %s: %w", kind, err)
	}
	return nil
}
