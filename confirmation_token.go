package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConfirmationClaims are carried by agenda attendance links. They use a
// signing key distinct from the session token key so a leaked mail link
// can never be replayed as an API credential.
type ConfirmationClaims struct {
	jwt.RegisteredClaims
	NotificationID string `json:"ntf"`
	UserID         string `json:"uid,omitempty"`
}

// ConfirmationResult describes what a redeemed confirmation link did.
type ConfirmationResult struct {
	Notification *AgendaNotification
	Response     AgendaStatus
	// Cascaded is true when the responder presides the session and the
	// response was copied onto the agenda itself.
	Cascaded bool
}

// ConfirmationTokenService issues and redeems agenda attendance links.
type ConfirmationTokenService struct {
	signingKey []byte
	issuer     string
	repo       RepositoryManager
	activity   ActivitySink
	notifier   Notifier
	logger     Logger
	now        func() time.Time
}

type ConfirmationTokenOption func(*ConfirmationTokenService)

// WithConfirmationClock overrides the time source, mostly for tests.
func WithConfirmationClock(now func() time.Time) ConfirmationTokenOption {
	return func(s *ConfirmationTokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithConfirmationActivitySink sets the sink for confirmation events.
func WithConfirmationActivitySink(sink ActivitySink) ConfirmationTokenOption {
	return func(s *ConfirmationTokenService) {
		s.activity = normalizeActivitySink(sink)
	}
}

// WithConfirmationNotifier sets the sink that receives the invitation
// mail events emitted by Invite.
func WithConfirmationNotifier(notifier Notifier) ConfirmationTokenOption {
	return func(s *ConfirmationTokenService) {
		s.notifier = normalizeNotifier(notifier)
	}
}

// WithConfirmationLogger overrides the default logger.
func WithConfirmationLogger(logger Logger) ConfirmationTokenOption {
	return func(s *ConfirmationTokenService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewConfirmationTokenService(signingKey []byte, issuer string, repo RepositoryManager, opts ...ConfirmationTokenOption) *ConfirmationTokenService {
	svc := &ConfirmationTokenService{
		signingKey: signingKey,
		issuer:     issuer,
		repo:       repo,
		activity:   noopActivitySink{},
		notifier:   noopNotifier{},
		logger:     defLogger{},
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc
}

// Issue signs an attendance link token for one notification. The token
// stops verifying 12 hours before the session starts, which is the
// cutoff for counting attendance.
func (s *ConfirmationTokenService) Issue(notification *AgendaNotification, sessionAt time.Time) (string, error) {
	if notification == nil {
		return "", goerrors.New("notification is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	claims := ConfirmationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   notification.Email,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(sessionAt.Add(-ConfirmationLeadWindow)),
		},
		NotificationID: notification.ID.String(),
	}

	if notification.UserID != nil {
		claims.UserID = notification.UserID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign confirmation token").
			WithCode(goerrors.CodeInternal)
	}

	return signed, nil
}

// Invite issues the attendance token for one recipient and hands the
// mail event to the notifier, which is how the confirmation link reaches
// the recipient's inbox.
func (s *ConfirmationTokenService) Invite(ctx context.Context, notification *AgendaNotification, agenda *Agenda) (string, error) {
	if agenda == nil {
		return "", goerrors.New("agenda is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	token, err := s.Issue(notification, agenda.SessionAt)
	if err != nil {
		return "", err
	}

	event := Notification{
		Kind:      NotificationAgendaConfirmation,
		Recipient: notification.Email,
		Token:     token,
		Metadata: map[string]any{
			"agenda_id":    agenda.ID.String(),
			"agenda_title": agenda.Title,
			"session_at":   agenda.SessionAt.Format(time.RFC1123),
		},
	}
	if notification.UserID != nil {
		event.UserID = notification.UserID.String()
	}

	notify(ctx, s.notifier, s.logger, event)

	return token, nil
}

// Parse verifies a confirmation token and returns its claims.
func (s *ConfirmationTokenService) Parse(tokenString string) (*ConfirmationClaims, error) {
	claims := &ConfirmationClaims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, goerrors.New("unexpected signing method", goerrors.CategoryAuth).
				WithTextCode(TextCodeTokenMalformed).
				WithMetadata(map[string]any{"alg": t.Header["alg"]})
		}
		return s.signingKey, nil
	},
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer(s.issuer),
	)
	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode).
			WithCode(goerrors.CodeUnauthorized)
	}

	return claims, nil
}

// Confirm redeems an attendance link: it records the response on the
// notification and, when the responder presides the session, copies the
// response onto the agenda's status. Re-confirming overwrites the prior
// response, so repeat visits are harmless.
func (s *ConfirmationTokenService) Confirm(ctx context.Context, tokenString string, response AgendaStatus) (*ConfirmationResult, error) {
	claims, err := s.Parse(tokenString)
	if err != nil {
		return nil, err
	}

	notificationID, err := uuid.Parse(claims.NotificationID)
	if err != nil {
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, "confirmation token carries no valid notification id").
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	result := &ConfirmationResult{Response: response}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		notification, err := s.repo.AgendaNotifications().GetNotificationTx(ctx, tx, notificationID)
		if err != nil {
			return err
		}

		respondedAt := s.now()
		notification.Response = &response
		notification.RespondedAt = &respondedAt

		if err := s.repo.AgendaNotifications().RecordResponseTx(ctx, tx, notification); err != nil {
			return err
		}

		result.Notification = notification

		if notification.UserID == nil {
			return nil
		}

		agenda, err := s.repo.Agendas().GetAgendaTx(ctx, tx, notification.AgendaID)
		if err != nil {
			return err
		}

		if !agenda.IsPresidedBy(*notification.UserID) {
			return nil
		}

		agenda.Status = response
		if err := s.repo.Agendas().UpdateStatusTx(ctx, tx, agenda); err != nil {
			return err
		}

		result.Cascaded = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := ActivityEvent{
		EventType:  ActivityEventAgendaConfirmation,
		Actor:      ActorRef{ID: claims.UserID, Type: "user"},
		OccurredAt: s.now(),
		Metadata: map[string]any{
			"email":           claims.Subject,
			"notification_id": claims.NotificationID,
			"response":        string(response),
			"cascaded":        result.Cascaded,
		},
	}
	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink error during agenda confirmation: %v", err)
	}

	return result, nil
}
