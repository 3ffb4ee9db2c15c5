package auth

import (
	"context"
	"time"
)

// NotificationKind enumerates the mail-triggering events.
type NotificationKind string

const (
	// NotificationActivationRequested carries a fresh activation token
	NotificationActivationRequested NotificationKind = "account.activation.requested"
	// NotificationPasswordResetRequested carries a fresh reset token
	NotificationPasswordResetRequested NotificationKind = "account.password_reset.requested"
	// NotificationPasswordChanged confirms a completed reset
	NotificationPasswordChanged NotificationKind = "account.password.changed"
	// NotificationWelcome greets a freshly activated account
	NotificationWelcome NotificationKind = "account.welcome"
	// NotificationAgendaConfirmation carries an attendance-confirmation link
	NotificationAgendaConfirmation NotificationKind = "agenda.confirmation.requested"
)

// Notification is emitted by the auth flows after the owning transaction
// commits. Token is the single-use or confirmation token to embed in the
// mail link; it is empty for kinds that carry none.
type Notification struct {
	Kind       NotificationKind
	Recipient  string
	UserID     string
	Token      string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Notifier consumes post-commit notification events. Implementations must
// be fire-and-forget from the caller's perspective: a delivery failure is
// the implementation's problem, never the auth flow's.
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

// notify fires a notification best effort, stamping the occurrence time.
func notify(ctx context.Context, sink Notifier, logger Logger, n Notification) {
	if n.OccurredAt.IsZero() {
		n.OccurredAt = time.Now()
	}

	if err := normalizeNotifier(sink).Notify(ctx, n); err != nil {
		if logger == nil {
			logger = defLogger{}
		}
		logger.Warn("notifier error: %v", err)
	}
}
