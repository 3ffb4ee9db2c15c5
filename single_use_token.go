package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// singleUseTokenBytes is the entropy drawn for every persisted token.
const singleUseTokenBytes = 32

// SingleUseTokenService generates, persists, and redeems the one-shot
// activation and password-reset tokens stored on the user row.
//
// Generation overwrites any prior token of the same purpose, so at most one
// is valid per purpose at any time. Redemption is a compare-and-clear
// conditional update: two concurrent redeemers of the same token cannot
// both succeed. Expired tokens are left in place until overwritten; lookup
// finds them but redemption reports failure.
type SingleUseTokenService struct {
	repo          RepositoryManager
	notifier      Notifier
	logger        Logger
	now           func() time.Time
	activationTTL time.Duration
	resetTTL      time.Duration
}

// NewSingleUseTokenService creates a service with the default TTLs:
// 24h for activation, 1h for password reset.
func NewSingleUseTokenService(repo RepositoryManager) *SingleUseTokenService {
	return &SingleUseTokenService{
		repo:          repo,
		notifier:      noopNotifier{},
		logger:        defLogger{},
		now:           time.Now,
		activationTTL: ActivationTokenTTL,
		resetTTL:      ResetPasswordTokenTTL,
	}
}

// WithNotifier sets the sink that receives post-commit notification events.
func (s *SingleUseTokenService) WithNotifier(notifier Notifier) *SingleUseTokenService {
	s.notifier = normalizeNotifier(notifier)
	return s
}

// WithLogger overrides the logger used by the service.
func (s *SingleUseTokenService) WithLogger(logger Logger) *SingleUseTokenService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock injects a custom clock (useful for tests).
func (s *SingleUseTokenService) WithClock(clock func() time.Time) *SingleUseTokenService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// WithTTLs overrides the activation and reset token lifetimes.
func (s *SingleUseTokenService) WithTTLs(activation, reset time.Duration) *SingleUseTokenService {
	if activation > 0 {
		s.activationTTL = activation
	}
	if reset > 0 {
		s.resetTTL = reset
	}
	return s
}

// GenerateActivationToken stores a fresh activation token on the user,
// overwriting any prior value, and emits an activation-requested event
// once the transaction commits.
func (s *SingleUseTokenService) GenerateActivationToken(ctx context.Context, user *User) (string, error) {
	var token string

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		token, err = s.GenerateActivationTokenTx(ctx, tx, user)
		return err
	})

	if err != nil {
		return "", err
	}

	notify(ctx, s.notifier, s.logger, Notification{
		Kind:      NotificationActivationRequested,
		Recipient: user.Email,
		UserID:    user.ID.String(),
		Token:     token,
	})

	return token, nil
}

// GenerateActivationTokenTx is the transactional variant; the caller owns
// the transaction and the post-commit notification.
func (s *SingleUseTokenService) GenerateActivationTokenTx(ctx context.Context, tx bun.IDB, user *User) (string, error) {
	token, err := newSingleUseToken()
	if err != nil {
		return "", err
	}

	expiresAt := s.now().Add(s.activationTTL)
	if err := s.repo.Users().StoreActivationTokenTx(ctx, tx, user.ID, token, expiresAt); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store activation token")
	}

	user.ActivationToken = &token
	user.ActivationTokenExpiresAt = &expiresAt

	return token, nil
}

// Activate redeems an activation token: it flips enabled on, clears the
// token columns, and emits a welcome event. The result is false for
// absent, expired, and already-redeemed tokens alike.
func (s *SingleUseTokenService) Activate(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	var user *User

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = s.repo.Users().RedeemActivationTokenTx(ctx, tx, token, s.now())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				user = nil
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to redeem activation token")
		}
		return nil
	})

	if err != nil {
		return false, err
	}

	if user == nil {
		return false, nil
	}

	notify(ctx, s.notifier, s.logger, Notification{
		Kind:      NotificationWelcome,
		Recipient: user.Email,
		UserID:    user.ID.String(),
	})

	return true, nil
}

// GenerateResetPasswordToken stores a fresh reset token on the user,
// overwriting any prior value, and emits a reset-requested event once the
// transaction commits.
func (s *SingleUseTokenService) GenerateResetPasswordToken(ctx context.Context, user *User) (string, error) {
	var token string

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		token, err = s.GenerateResetPasswordTokenTx(ctx, tx, user)
		return err
	})

	if err != nil {
		return "", err
	}

	notify(ctx, s.notifier, s.logger, Notification{
		Kind:      NotificationPasswordResetRequested,
		Recipient: user.Email,
		UserID:    user.ID.String(),
		Token:     token,
	})

	return token, nil
}

// GenerateResetPasswordTokenTx is the transactional variant.
func (s *SingleUseTokenService) GenerateResetPasswordTokenTx(ctx context.Context, tx bun.IDB, user *User) (string, error) {
	token, err := newSingleUseToken()
	if err != nil {
		return "", err
	}

	expiresAt := s.now().Add(s.resetTTL)
	if err := s.repo.Users().StoreResetPasswordTokenTx(ctx, tx, user.ID, token, expiresAt); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store reset token")
	}

	user.ResetPasswordToken = &token
	user.ResetPasswordTokenExpiresAt = &expiresAt

	return token, nil
}

// ResetPassword redeems a reset token: it replaces the password hash,
// stamps the change, clears the token columns, and emits a
// password-changed event. False for absent, expired, and already-redeemed
// tokens alike.
func (s *SingleUseTokenService) ResetPassword(ctx context.Context, token, newPassword string) (bool, error) {
	if token == "" {
		return false, nil
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	var user *User

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = s.repo.Users().RedeemResetPasswordTokenTx(ctx, tx, token, passwordHash, s.now())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				user = nil
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to redeem reset token")
		}
		return nil
	})

	if err != nil {
		return false, err
	}

	if user == nil {
		return false, nil
	}

	notify(ctx, s.notifier, s.logger, Notification{
		Kind:      NotificationPasswordChanged,
		Recipient: user.Email,
		UserID:    user.ID.String(),
	})

	return true, nil
}

// newSingleUseToken draws 32 bytes from the CSPRNG and URL-safe base64
// encodes them, the same opaque shape every mail link embeds.
func newSingleUseToken() (string, error) {
	buf := make([]byte, singleUseTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to draw token entropy")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
