package identity

import "context"

// Notification is the payload handed to the external email collaborator.
// ResetSecret carries the plaintext reset secret when applicable; it is never
// persisted and must not be logged.
type Notification struct {
	Kind        NotificationKind
	Email       string
	AccountID   string
	Reason      string
	ResetSecret string
}

// NotificationKind enumerates the messages this package emits.
type NotificationKind string

const (
	NotificationRegistrationApproved NotificationKind = "registration.approved"
	NotificationRegistrationRejected NotificationKind = "registration.rejected"
	NotificationPasswordReset        NotificationKind = "password.reset"
)

// Notifier is the fire-and-forget email collaborator. Callers dispatch after
// the owning state change commits; a Notify error is logged and never rolls
// the change back.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, n)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notification) error {
	return nil
}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}
