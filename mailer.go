package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/mailgun/mailgun-go/v4"
)

// Mail is a rendered message ready for delivery.
type Mail struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers rendered messages. Implementations should be safe for
// concurrent use; the dispatcher calls Send from multiple workers.
type Sender interface {
	Name() string
	Send(ctx context.Context, mail Mail) error
}

// MailgunConfig holds the credentials for the Mailgun sender.
type MailgunConfig struct {
	Domain string
	APIKey string
	From   string
}

func (c MailgunConfig) Validate() error {
	if c.Domain == "" || c.APIKey == "" || c.From == "" {
		return goerrors.New("mailgun config requires domain, api key, and from address", goerrors.CategoryValidation)
	}
	return nil
}

// MailgunSender delivers mail through the Mailgun HTTP API.
type MailgunSender struct {
	client *mailgun.MailgunImpl
	from   string
	logger Logger
}

func NewMailgunSender(cfg MailgunConfig, logger Logger) (*MailgunSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = defLogger{}
	}

	return &MailgunSender{
		client: mailgun.NewMailgun(cfg.Domain, cfg.APIKey),
		from:   cfg.From,
		logger: logger,
	}, nil
}

func (s *MailgunSender) Name() string { return "mailgun" }

func (s *MailgunSender) Send(ctx context.Context, mail Mail) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	message := s.client.NewMessage(s.from, mail.Subject, mail.Text, mail.To)
	if mail.HTML != "" {
		message.SetHtml(mail.HTML)
	}

	_, id, err := s.client.Send(ctx, message)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "mailgun send failed").
			WithMetadata(map[string]any{
				"to":      mail.To,
				"subject": mail.Subject,
			})
	}

	s.logger.Debug("mail queued: %s", id)

	return nil
}
