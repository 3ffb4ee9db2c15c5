package auth

import (
	"context"
	"reflect"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Auther coordinates credential verification, account-status checks, and
// token issuance. Each call is a fresh evaluation; the orchestrator keeps
// no per-session state.
type Auther struct {
	provider       IdentityProvider
	repo           RepositoryManager
	signingKey     []byte
	accessTTL      time.Duration
	refreshTTL     time.Duration
	issuer         string
	audience       []string
	logger         Logger
	tokenService   TokenService
	tokenValidator TokenValidator
	activitySink   ActivitySink
	notifier       Notifier
	singleUse      *SingleUseTokenService
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, repo RepositoryManager, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	a := &Auther{
		provider:     provider,
		repo:         repo,
		signingKey:   []byte(opts.GetSigningKey()),
		accessTTL:    opts.GetAccessTokenTTL(),
		refreshTTL:   opts.GetRefreshTokenTTL(),
		audience:     opts.GetAudience(),
		issuer:       opts.GetIssuer(),
		logger:       defLogger{},
		tokenService: tokenService,
		activitySink: noopActivitySink{},
		notifier:     noopNotifier{},
	}

	a.singleUse = NewSingleUseTokenService(repo).WithNotifier(a.notifier)

	return a
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	s.tokenService = NewTokenService(
		s.signingKey,
		s.issuer,
		s.audience,
		logger,
	)
	s.singleUse = s.singleUse.WithLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithNotifier configures the sink that receives post-commit notification
// events (activation links, reset links, confirmations).
func (s *Auther) WithNotifier(notifier Notifier) *Auther {
	s.notifier = normalizeNotifier(notifier)
	s.singleUse = s.singleUse.WithNotifier(s.notifier)
	return s
}

// WithTokenValidator sets a custom token validator for externally issued tokens.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.tokenValidator = validator
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// SingleUseTokens returns the single-use token service bound to this
// authenticator's repositories and notifier.
func (s *Auther) SingleUseTokens() *SingleUseTokenService {
	return s.singleUse
}

// Login verifies credentials, enforces the enabled and locked flags, and
// returns an access/refresh pair bound to the principal's opaque id.
func (s *Auther) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	identity, err := s.provider.VerifyIdentity(ctx, email, password)
	if err != nil {
		s.logger.Error("Login verify identity error: %v", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": email,
			"error":      err.Error(),
		})
		return nil, loginError(err)
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": email,
			"error":      ErrAuthenticationFailed.Error(),
		})
		return nil, ErrAuthenticationFailed
	}

	if err := ensureAccountUsable(identity); err != nil {
		s.logger.Warn("Login blocked due to account state: %v", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromIdentity(identity), identity.ID(), map[string]any{
			"identifier": email,
			"error":      err.Error(),
		})
		return nil, err
	}

	pair, err := s.issuePair(identity)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromIdentity(identity), identity.ID(), map[string]any{
			"identifier": email,
			"error":      err.Error(),
		})
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, s.actorFromIdentity(identity), identity.ID(), map[string]any{
		"identifier": email,
	})

	return pair, nil
}

// Register creates a disabled principal with the default role, kicks off
// the activation flow, and returns a token pair for the new account.
//
// The returned pair authenticates API calls for the still-disabled account;
// only the interactive Login path checks the enabled flag. Treat it as
// "pre-authenticated pending activation".
func (s *Auther) Register(ctx context.Context, msg RegisterUserMessage) (*TokenPair, error) {
	var created *User

	handler := NewRegisterUserHandler(s.repo, s.singleUse).
		WithLogger(s.logger).
		WithNotifier(s.notifier)

	msg.OnResponse = func(u *User) {
		created = u
	}

	if err := handler.Execute(ctx, msg); err != nil {
		return nil, err
	}

	if created == nil {
		return nil, goerrors.New("registration produced no user", goerrors.CategoryInternal)
	}

	identity := identityFromUser(created)

	pair, err := s.issuePair(identity)
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventRegistration, s.actorFromIdentity(identity), identity.ID(), map[string]any{
		"identifier": created.Email,
	})

	return pair, nil
}

// Refresh exchanges a valid refresh token for a fresh pair. The old refresh
// token is not invalidated; it stays valid until its own expiry.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	validator := s.tokenValidator
	if validator == nil {
		validator = s.tokenService
	}

	claims, err := validator.Validate(refreshToken)
	if err != nil {
		s.logger.Error("Refresh token validation failed: %v", err)
		return nil, err
	}

	identity, err := s.provider.FindIdentityByIdentifier(ctx, claims.Subject())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve refresh token subject")
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		return nil, ErrIdentityNotFound
	}

	pair, err := s.issuePair(identity)
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventTokenRefresh, s.actorFromIdentity(identity), identity.ID(), nil)

	return pair, nil
}

func (s *Auther) IdentityFromSession(ctx context.Context, session Session) (Identity, error) {
	identity, err := s.provider.FindIdentityByIdentifier(ctx, session.GetUserID())
	if err != nil {
		s.logger.Error("IdentityFromSession find identity by identifier: %s", err)
		return nil, err
	}

	return identity, nil
}

func (s Auther) SessionFromToken(raw string) (Session, error) {
	validator := s.tokenValidator
	if validator == nil {
		validator = s.tokenService
	}

	claims, err := validator.Validate(raw)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed: %v", err)
		return nil, err
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		s.logger.Error("SessionFromToken failed to create session from claims: %v", err)
		return nil, err
	}

	return session, nil
}

func (s *Auther) issuePair(identity Identity) (*TokenPair, error) {
	access, err := s.tokenService.Issue(identity.ID(), s.accessTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := s.tokenService.Issue(identity.ID(), s.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:            access,
		RefreshToken:           refresh,
		PasswordChangeRequired: passwordChangeRequired(identity),
	}, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func (s *Auther) actorFromIdentity(identity Identity) ActorRef {
	if identity == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   identity.ID(),
		Type: "user",
	}
}

// accountStateAware is implemented by identities that expose account flags.
type accountStateAware interface {
	Enabled() bool
	Locked() bool
	PasswordChangeRequired() bool
}

func ensureAccountUsable(identity Identity) error {
	sa, ok := identity.(accountStateAware)
	if !ok {
		return nil
	}

	if !sa.Enabled() || sa.Locked() {
		return ErrAccountDisabled
	}

	return nil
}

func passwordChangeRequired(identity Identity) bool {
	if sa, ok := identity.(accountStateAware); ok {
		return sa.PasswordChangeRequired()
	}
	return false
}

// loginError collapses credential failures into the uniform sentinel while
// letting account-state and infrastructure errors through unchanged.
func loginError(err error) error {
	if goerrors.Is(err, ErrMismatchedHashAndPassword) || goerrors.IsNotFound(err) {
		return ErrAuthenticationFailed
	}
	return err
}
