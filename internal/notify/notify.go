// Package notify defines the Notification port the core emits to. Delivery
// is best-effort and asynchronous; a failure here is logged and swallowed,
// never surfaced to the booking caller.
package notify

import "context"

// Kind enumerates the notification kinds the orchestrator emits.
type Kind string

const (
	KindBookingConfirmed    Kind = "booking_confirmed"
	KindBookingCancelled    Kind = "booking_cancelled"
	KindBookingRescheduled  Kind = "booking_rescheduled"
	KindPackageConfirmation Kind = "package_confirmation"
	KindPackageReschedule   Kind = "package_reschedule"
	KindPackageCancellation Kind = "package_cancellation"
)

// Notifier is the port; implementations must never block the caller for
// longer than it takes to enqueue the message, and must never return an
// error that the orchestrator would treat as a booking failure (the
// orchestrator logs Notify errors and continues regardless).
type Notifier interface {
	Notify(ctx context.Context, userID string, kind Kind, payload map[string]any) error
}

// Null discards every notification; useful for tests and for environments
// without a message bus configured.
type Null struct{}

func (Null) Notify(ctx context.Context, userID string, kind Kind, payload map[string]any) error {
	return nil
}
