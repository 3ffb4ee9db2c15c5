package auth

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultMailQueueSize bounds the dispatch queue; a full queue drops the
// notification rather than blocking the request path.
const DefaultMailQueueSize = 256

// DefaultMailWorkers is the number of concurrent senders.
const DefaultMailWorkers = 4

// MailDispatcher consumes auth notifications and turns them into
// templated emails. It implements Notifier, so it plugs into the
// authenticator and token services directly. Delivery is fire and
// forget: failures are logged, never surfaced to the caller.
type MailDispatcher struct {
	sender  Sender
	engine  *django.Engine
	opts    Config
	logger  Logger
	queue   chan Notification
	workers int

	wg       sync.WaitGroup
	startsMu sync.Mutex
	started  bool
	stopOnce sync.Once
}

var _ Notifier = (*MailDispatcher)(nil)

type MailDispatcherOption func(*MailDispatcher)

func WithMailWorkers(n int) MailDispatcherOption {
	return func(d *MailDispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithMailQueueSize(n int) MailDispatcherOption {
	return func(d *MailDispatcher) {
		if n > 0 {
			d.queue = make(chan Notification, n)
		}
	}
}

func WithMailLogger(logger Logger) MailDispatcherOption {
	return func(d *MailDispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func NewMailDispatcher(sender Sender, opts Config, options ...MailDispatcherOption) (*MailDispatcher, error) {
	if sender == nil {
		return nil, goerrors.New("mail dispatcher requires a sender", goerrors.CategoryValidation)
	}

	engine := django.NewPathForwardingFileSystem(
		http.FS(templatesFS),
		"/data/templates",
		".html",
	)

	if err := engine.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load mail templates")
	}

	d := &MailDispatcher{
		sender:  sender,
		engine:  engine,
		opts:    opts,
		logger:  defLogger{},
		queue:   make(chan Notification, DefaultMailQueueSize),
		workers: DefaultMailWorkers,
	}

	for _, opt := range options {
		opt(d)
	}

	return d, nil
}

// Start launches the worker pool. Workers drain the queue until Stop
// closes it.
func (d *MailDispatcher) Start(ctx context.Context) {
	d.startsMu.Lock()
	defer d.startsMu.Unlock()

	if d.started {
		return
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for notification := range d.queue {
				d.deliver(ctx, notification)
			}
		}()
	}
}

// Stop closes the queue and waits for in-flight deliveries, up to the
// context deadline.
func (d *MailDispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		close(d.queue)
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify enqueues a notification without blocking. When the queue is
// full the notification is dropped and logged.
func (d *MailDispatcher) Notify(ctx context.Context, notification Notification) error {
	select {
	case d.queue <- notification:
		return nil
	default:
		d.logger.Warn("mail queue full, dropping %s notification for %s",
			notification.Kind, notification.Recipient)
		return nil
	}
}

func (d *MailDispatcher) deliver(ctx context.Context, notification Notification) {
	mail, err := d.compose(notification)
	if err != nil {
		d.logger.Error("failed to compose %s mail for %s: %v",
			notification.Kind, notification.Recipient, err)
		return
	}

	if err := d.sender.Send(ctx, mail); err != nil {
		d.logger.Error("failed to deliver %s mail via %s: %v",
			notification.Kind, d.sender.Name(), err)
		return
	}

	d.logger.Info("delivered %s mail to %s", notification.Kind, notification.Recipient)
}

func (d *MailDispatcher) compose(notification Notification) (Mail, error) {
	var template, subject string

	bind := map[string]any{
		"recipient": notification.Recipient,
	}
	for k, v := range notification.Metadata {
		bind[k] = v
	}

	switch notification.Kind {
	case NotificationActivationRequested:
		template = "activation"
		subject = "Activate your account"
		bind["link"] = d.buildLink(d.opts.GetActivationPath(), notification.Token)
	case NotificationPasswordResetRequested:
		template = "password_reset"
		subject = "Reset your password"
		bind["link"] = d.buildLink(d.opts.GetPasswordResetPath(), notification.Token)
	case NotificationPasswordChanged:
		template = "password_changed"
		subject = "Your password was changed"
	case NotificationWelcome:
		template = "welcome"
		subject = "Welcome"
	case NotificationAgendaConfirmation:
		template = "agenda_confirmation"
		subject = "Please confirm your attendance"
		bind["confirm_link"] = d.buildAgendaLink(notification.Token, AgendaStatusConfirmed)
		bind["decline_link"] = d.buildAgendaLink(notification.Token, AgendaStatusDeclined)
	default:
		return Mail{}, goerrors.New(
			fmt.Sprintf("no template for notification kind %q", notification.Kind),
			goerrors.CategoryBadInput,
		)
	}

	var buf bytes.Buffer
	if err := d.engine.Render(&buf, template, bind); err != nil {
		return Mail{}, goerrors.Wrap(err, goerrors.CategoryInternal, "template render failed").
			WithMetadata(map[string]any{"template": template})
	}

	return Mail{
		To:      notification.Recipient,
		Subject: subject,
		Text:    subject,
		HTML:    buf.String(),
	}, nil
}

func (d *MailDispatcher) buildLink(path, token string) string {
	base := strings.TrimRight(d.opts.GetFrontendBaseURL(), "/")
	return fmt.Sprintf("%s%s?token=%s", base, path, url.QueryEscape(token))
}

// buildAgendaLink carries the token in the path, mirroring the confirm
// route's :token segment, with the response preselected in the query.
func (d *MailDispatcher) buildAgendaLink(token string, response AgendaStatus) string {
	base := strings.TrimRight(d.opts.GetFrontendBaseURL(), "/")
	return fmt.Sprintf("%s%s/%s?response=%s", base, d.opts.GetAgendaConfirmPath(), url.PathEscape(token), response)
}
