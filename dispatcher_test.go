package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/civicms/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMailDispatcher(t *testing.T) {
	t.Run("requires a sender", func(t *testing.T) {
		dispatcher, err := auth.NewMailDispatcher(nil, auth.SimpleConfig{})

		assert.Error(t, err)
		assert.Nil(t, dispatcher)
	})

	t.Run("loads the bundled templates", func(t *testing.T) {
		dispatcher, err := auth.NewMailDispatcher(&capturingSender{}, auth.SimpleConfig{})

		require.NoError(t, err)
		assert.NotNil(t, dispatcher)
	})
}

func drain(t *testing.T, d *auth.MailDispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
}

func TestMailDispatcherDelivery(t *testing.T) {
	cfg := auth.SimpleConfig{FrontendBaseURL: "https://portal.example.org/"}

	t.Run("activation mail carries the activation link", func(t *testing.T) {
		sender := &capturingSender{}
		dispatcher, err := auth.NewMailDispatcher(sender, cfg)
		require.NoError(t, err)

		ctx := context.Background()
		dispatcher.Start(ctx)

		err = dispatcher.Notify(ctx, auth.Notification{
			Kind:      auth.NotificationActivationRequested,
			Recipient: "member@example.com",
			Token:     "the-activation-token",
		})
		require.NoError(t, err)

		drain(t, dispatcher)

		mails := sender.Mails()
		require.Len(t, mails, 1)
		assert.Equal(t, "member@example.com", mails[0].To)
		assert.Equal(t, "Activate your account", mails[0].Subject)
		assert.Contains(t, mails[0].HTML,
			"https://portal.example.org/account/activate?token=the-activation-token")
	})

	t.Run("reset mail carries the reset link", func(t *testing.T) {
		sender := &capturingSender{}
		dispatcher, err := auth.NewMailDispatcher(sender, cfg)
		require.NoError(t, err)

		ctx := context.Background()
		dispatcher.Start(ctx)

		err = dispatcher.Notify(ctx, auth.Notification{
			Kind:      auth.NotificationPasswordResetRequested,
			Recipient: "member@example.com",
			Token:     "the-reset-token",
		})
		require.NoError(t, err)

		drain(t, dispatcher)

		mails := sender.Mails()
		require.Len(t, mails, 1)
		assert.Equal(t, "Reset your password", mails[0].Subject)
		assert.Contains(t, mails[0].HTML,
			"https://portal.example.org/account/reset-password?token=the-reset-token")
	})

	t.Run("agenda confirmation mail carries both response links", func(t *testing.T) {
		sender := &capturingSender{}
		dispatcher, err := auth.NewMailDispatcher(sender, cfg)
		require.NoError(t, err)

		ctx := context.Background()
		dispatcher.Start(ctx)

		err = dispatcher.Notify(ctx, auth.Notification{
			Kind:      auth.NotificationAgendaConfirmation,
			Recipient: "councillor@example.com",
			Token:     "the-confirmation-token",
			Metadata: map[string]any{
				"agenda_title": "Ordinary session",
				"session_at":   "Tue, 03 Mar 2026 10:00:00 UTC",
			},
		})
		require.NoError(t, err)

		drain(t, dispatcher)

		mails := sender.Mails()
		require.Len(t, mails, 1)
		assert.Equal(t, "councillor@example.com", mails[0].To)
		assert.Equal(t, "Please confirm your attendance", mails[0].Subject)
		assert.Contains(t, mails[0].HTML,
			"https://portal.example.org/agenda/confirm/the-confirmation-token?response=CONFIRMED")
		assert.Contains(t, mails[0].HTML,
			"https://portal.example.org/agenda/confirm/the-confirmation-token?response=DECLINED")
		assert.Contains(t, mails[0].HTML, "Ordinary session")
		assert.Contains(t, mails[0].HTML, "Tue, 03 Mar 2026 10:00:00 UTC")
	})

	t.Run("tokens are query-escaped in links", func(t *testing.T) {
		sender := &capturingSender{}
		dispatcher, err := auth.NewMailDispatcher(sender, cfg)
		require.NoError(t, err)

		ctx := context.Background()
		dispatcher.Start(ctx)

		err = dispatcher.Notify(ctx, auth.Notification{
			Kind:      auth.NotificationActivationRequested,
			Recipient: "member@example.com",
			Token:     "a+b/c",
		})
		require.NoError(t, err)

		drain(t, dispatcher)

		mails := sender.Mails()
		require.Len(t, mails, 1)
		assert.Contains(t, mails[0].HTML, "token=a%2Bb%2Fc")
	})

	t.Run("unknown kinds are dropped without a mail", func(t *testing.T) {
		sender := &capturingSender{}
		dispatcher, err := auth.NewMailDispatcher(sender, cfg)
		require.NoError(t, err)

		ctx := context.Background()
		dispatcher.Start(ctx)

		err = dispatcher.Notify(ctx, auth.Notification{
			Kind:      auth.NotificationKind("sms"),
			Recipient: "member@example.com",
		})
		require.NoError(t, err)

		drain(t, dispatcher)

		assert.Empty(t, sender.Mails())
	})

	t.Run("sender failures never surface to the caller", func(t *testing.T) {
		sender := &capturingSender{fail: assert.AnError}
		dispatcher, err := auth.NewMailDispatcher(sender, cfg)
		require.NoError(t, err)

		ctx := context.Background()
		dispatcher.Start(ctx)

		err = dispatcher.Notify(ctx, auth.Notification{
			Kind:      auth.NotificationWelcome,
			Recipient: "member@example.com",
		})
		require.NoError(t, err)

		drain(t, dispatcher)

		assert.Empty(t, sender.Mails())
	})
}

func TestMailDispatcherQueueFull(t *testing.T) {
	sender := &capturingSender{}
	dispatcher, err := auth.NewMailDispatcher(sender, auth.SimpleConfig{},
		auth.WithMailQueueSize(1))
	require.NoError(t, err)

	ctx := context.Background()

	// workers not started yet, so the second notification finds the
	// queue full and is dropped
	first := dispatcher.Notify(ctx, auth.Notification{
		Kind:      auth.NotificationWelcome,
		Recipient: "first@example.com",
	})
	second := dispatcher.Notify(ctx, auth.Notification{
		Kind:      auth.NotificationWelcome,
		Recipient: "second@example.com",
	})

	assert.NoError(t, first)
	assert.NoError(t, second)

	dispatcher.Start(ctx)
	drain(t, dispatcher)

	mails := sender.Mails()
	require.Len(t, mails, 1)
	assert.Equal(t, "first@example.com", mails[0].To)
}

func TestMailDispatcherStopWithoutStart(t *testing.T) {
	dispatcher, err := auth.NewMailDispatcher(&capturingSender{}, auth.SimpleConfig{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NoError(t, dispatcher.Stop(ctx))
}
