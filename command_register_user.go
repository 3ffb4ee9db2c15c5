package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// DefaultPhoneRegion is the region used to normalize national phone
// numbers supplied without a country prefix.
var DefaultPhoneRegion = "ES"

type RegisterUserMessage struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	UseHashid bool
	OnResponse func(u *User)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// RegisterUserHandler creates a disabled principal with the default role
// and a fresh activation token, all in one transaction. The activation
// notification is emitted only after the transaction commits.
type RegisterUserHandler struct {
	repo      RepositoryManager
	singleUse *SingleUseTokenService
	notifier  Notifier
	logger    Logger
}

// NewRegisterUserHandler creates a handler with sane defaults.
func NewRegisterUserHandler(repo RepositoryManager, singleUse *SingleUseTokenService) *RegisterUserHandler {
	if singleUse == nil {
		singleUse = NewSingleUseTokenService(repo)
	}
	return &RegisterUserHandler{
		repo:      repo,
		singleUse: singleUse,
		notifier:  noopNotifier{},
		logger:    defLogger{},
	}
}

// WithNotifier sets the sink used to emit the activation event.
func (h *RegisterUserHandler) WithNotifier(notifier Notifier) *RegisterUserHandler {
	h.notifier = normalizeNotifier(notifier)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	user := &User{}
	var activationToken string

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		// the default role must exist before anyone can register
		role, err := h.repo.Roles().GetByNameTx(ctx, tx, DefaultRoleName)
		if err != nil {
			return goerrors.Wrap(err, ErrRoleNotFound.Category, "default role is missing from the credential store").
				WithMetadata(map[string]any{"role": DefaultRoleName})
		}

		user.PasswordHash = hash
		user.Email = event.Email
		user.Phone = normalizePhone(event.Phone)
		user.FirstName = event.FirstName
		user.LastName = event.LastName
		user.Enabled = false
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		if err := h.repo.Users().AssignRoleTx(ctx, tx, user.ID, role.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not assign default role")
		}
		user.Roles = append(user.Roles, role)

		if activationToken, err = h.singleUse.GenerateActivationTokenTx(ctx, tx, user); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	notify(ctx, h.notifier, h.logger, Notification{
		Kind:      NotificationActivationRequested,
		Recipient: user.Email,
		UserID:    user.ID.String(),
		Token:     activationToken,
	})

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

// normalizePhone formats the optional phone field as E.164 when it parses;
// unparseable input is stored as supplied.
func normalizePhone(phone string) string {
	if phone == "" {
		return ""
	}

	parsed, err := phonenumbers.Parse(phone, DefaultPhoneRegion)
	if err != nil {
		return phone
	}

	return phonenumbers.Format(parsed, phonenumbers.E164)
}
