package auth_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/civicms/go-auth"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockRepositoryManager implements auth.RepositoryManager
type MockRepositoryManager struct {
	mock.Mock
}

func (m *MockRepositoryManager) Users() auth.Users {
	args := m.Called()
	return args.Get(0).(auth.Users)
}

func (m *MockRepositoryManager) Roles() auth.Roles {
	args := m.Called()
	return args.Get(0).(auth.Roles)
}

func (m *MockRepositoryManager) Agendas() auth.Agendas {
	args := m.Called()
	return args.Get(0).(auth.Agendas)
}

func (m *MockRepositoryManager) AgendaNotifications() auth.AgendaNotifications {
	args := m.Called()
	return args.Get(0).(auth.AgendaNotifications)
}

func (m *MockRepositoryManager) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepositoryManager) MustValidate() {
	m.Called()
}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	args := m.Called(ctx, opts, f)
	return args.Error(0)
}

// expectRunInTx wires the transaction runner to execute the closure with a
// zero-value transaction, which is enough for the mocked repositories.
func expectRunInTx(repo *MockRepositoryManager) *mock.Call {
	return repo.On("RunInTx", mock.Anything, (*sql.TxOptions)(nil), mock.Anything).
		Return(nil).
		Run(func(args mock.Arguments) {
			fn := args.Get(2).(func(context.Context, bun.Tx) error)
			var tx bun.Tx
			_ = fn(args.Get(0).(context.Context), tx)
		})
}

// MockUsers mocks the methods the flows exercise; the embedded interface
// covers the rest of the repository surface.
type MockUsers struct {
	mock.Mock
	auth.Users
}

func (m *MockUsers) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*auth.User, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

func (m *MockUsers) TrackAttemptedLogin(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUsers) TrackSucccessfulLogin(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *auth.User, criteria ...repository.InsertCriteria) (*auth.User, error) {
	args := m.Called(ctx, tx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

func (m *MockUsers) AssignRoleTx(ctx context.Context, tx bun.IDB, userID, roleID uuid.UUID) error {
	args := m.Called(ctx, tx, userID, roleID)
	return args.Error(0)
}

func (m *MockUsers) StoreActivationTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiresAt time.Time) error {
	args := m.Called(ctx, tx, id, token, expiresAt)
	return args.Error(0)
}

func (m *MockUsers) RedeemActivationTokenTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*auth.User, error) {
	args := m.Called(ctx, tx, token, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

func (m *MockUsers) StoreResetPasswordTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiresAt time.Time) error {
	args := m.Called(ctx, tx, id, token, expiresAt)
	return args.Error(0)
}

func (m *MockUsers) RedeemResetPasswordTokenTx(ctx context.Context, tx bun.IDB, token, passwordHash string, now time.Time) (*auth.User, error) {
	args := m.Called(ctx, tx, token, passwordHash, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

// MockRoles implements auth.Roles
type MockRoles struct {
	mock.Mock
	auth.Roles
}

func (m *MockRoles) GetByName(ctx context.Context, name string) (*auth.Role, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Role), args.Error(1)
}

func (m *MockRoles) GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*auth.Role, error) {
	args := m.Called(ctx, tx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Role), args.Error(1)
}

func (m *MockRoles) EnsureDefaults(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockAgendas implements auth.Agendas
type MockAgendas struct {
	mock.Mock
	auth.Agendas
}

func (m *MockAgendas) GetAgendaTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*auth.Agenda, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Agenda), args.Error(1)
}

func (m *MockAgendas) UpdateStatusTx(ctx context.Context, tx bun.IDB, agenda *auth.Agenda) error {
	args := m.Called(ctx, tx, agenda)
	return args.Error(0)
}

// MockAgendaNotifications implements auth.AgendaNotifications
type MockAgendaNotifications struct {
	mock.Mock
	auth.AgendaNotifications
}

func (m *MockAgendaNotifications) GetNotificationTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*auth.AgendaNotification, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.AgendaNotification), args.Error(1)
}

func (m *MockAgendaNotifications) RecordResponseTx(ctx context.Context, tx bun.IDB, notification *auth.AgendaNotification) error {
	args := m.Called(ctx, tx, notification)
	return args.Error(0)
}

// MockUserTracker implements auth.UserTracker
type MockUserTracker struct {
	mock.Mock
}

func (m *MockUserTracker) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*auth.User, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

func (m *MockUserTracker) TrackAttemptedLogin(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserTracker) TrackSucccessfulLogin(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockIdentityProvider implements auth.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, identifier, password string) (auth.Identity, error) {
	args := m.Called(ctx, identifier, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(auth.Identity), args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (auth.Identity, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(auth.Identity), args.Error(1)
}

// MockAuthenticator implements auth.Authenticator
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, email, password string) (*auth.TokenPair, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.TokenPair), args.Error(1)
}

func (m *MockAuthenticator) Register(ctx context.Context, msg auth.RegisterUserMessage) (*auth.TokenPair, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.TokenPair), args.Error(1)
}

func (m *MockAuthenticator) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.TokenPair), args.Error(1)
}

func (m *MockAuthenticator) SessionFromToken(token string) (auth.Session, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(auth.Session), args.Error(1)
}

func (m *MockAuthenticator) IdentityFromSession(ctx context.Context, session auth.Session) (auth.Identity, error) {
	args := m.Called(ctx, session)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(auth.Identity), args.Error(1)
}

// MockActivitySink implements auth.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// recordingNotifier captures emitted notifications for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []auth.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n auth.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n)
	return nil
}

func (r *recordingNotifier) Events() []auth.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.Notification, len(r.events))
	copy(out, r.events)
	return out
}

// capturingSender records the mails a dispatcher delivers.
type capturingSender struct {
	mu    sync.Mutex
	fail  error
	mails []auth.Mail
}

func (s *capturingSender) Name() string { return "capture" }

func (s *capturingSender) Send(ctx context.Context, mail auth.Mail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.mails = append(s.mails, mail)
	return nil
}

func (s *capturingSender) Mails() []auth.Mail {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.Mail, len(s.mails))
	copy(out, s.mails)
	return out
}

// testIdentity implements auth.Identity plus the account-state methods the
// orchestrator checks during login.
type testIdentity struct {
	id                     string
	email                  string
	role                   string
	enabled                bool
	locked                 bool
	passwordChangeRequired bool
}

func (t testIdentity) ID() string                   { return t.id }
func (t testIdentity) Email() string                { return t.email }
func (t testIdentity) Role() string                 { return t.role }
func (t testIdentity) Enabled() bool                { return t.enabled }
func (t testIdentity) Locked() bool                 { return t.locked }
func (t testIdentity) PasswordChangeRequired() bool { return t.passwordChangeRequired }
