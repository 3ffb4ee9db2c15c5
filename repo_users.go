package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// StoreActivationTokenSQL overwrites any prior activation token; at most
// one activation token is live per account.
var StoreActivationTokenSQL = `UPDATE "users" AS "usr"
SET
	"activation_token" = ?,
	"activation_token_expires_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var StoreResetPasswordTokenSQL = `UPDATE "users" AS "usr"
SET
	"reset_password_token" = ?,
	"reset_password_token_expires_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

// RedeemActivationTokenSQL is a compare-and-clear update: the token match
// and the expiry check happen in the same statement, so a concurrent
// double submission redeems at most once. Zero rows back means the token
// was absent, expired, or already redeemed; callers get no distinction.
var RedeemActivationTokenSQL = `UPDATE "users" AS "usr"
SET
	"enabled" = TRUE,
	"activation_token" = NULL,
	"activation_token_expires_at" = NULL
WHERE
	"usr"."deleted_at" IS NULL
AND "usr"."activation_token" = ?
AND "usr"."activation_token_expires_at" > ?
RETURNING *;`

var RedeemResetPasswordTokenSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"password_change_required" = FALSE,
	"last_password_change_at" = ?,
	"reset_password_token" = NULL,
	"reset_password_token_expires_at" = NULL
WHERE
	"usr"."deleted_at" IS NULL
AND "usr"."reset_password_token" = ?
AND "usr"."reset_password_token_expires_at" > ?
RETURNING *;`

type Users interface {
	repository.Repository[*User]

	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) error
	TrackSucccessfulLogin(ctx context.Context, user *User) error
	TrackSucccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error

	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)

	AssignRole(ctx context.Context, userID, roleID uuid.UUID) error
	AssignRoleTx(ctx context.Context, tx bun.IDB, userID, roleID uuid.UUID) error

	StoreActivationToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error
	StoreActivationTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiresAt time.Time) error
	RedeemActivationToken(ctx context.Context, token string, now time.Time) (*User, error)
	RedeemActivationTokenTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*User, error)

	StoreResetPasswordToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error
	StoreResetPasswordTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiresAt time.Time) error
	RedeemResetPasswordToken(ctx context.Context, token, passwordHash string, now time.Time) (*User, error)
	RedeemResetPasswordTokenTx(ctx context.Context, tx bun.IDB, token, passwordHash string, now time.Time) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
	_ UserTracker                  = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *users) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	options := resolveUserIdentifier(identifier)
	if len(options) == 0 {
		options = []identifierOption{
			{
				column: "id",
				value:  strings.TrimSpace(identifier),
			},
		}
	}

	for _, opt := range options {
		record := &User{}
		q := tx.NewSelect().Model(record).
			Relation("Roles")

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) AssignRole(ctx context.Context, userID, roleID uuid.UUID) error {
	return a.AssignRoleTx(ctx, a.db, userID, roleID)
}

func (a *users) AssignRoleTx(ctx context.Context, tx bun.IDB, userID, roleID uuid.UUID) error {
	link := &UserRoleLink{
		UserID: userID,
		RoleID: roleID,
	}

	_, err := tx.NewInsert().
		Model(link).
		On("CONFLICT DO NOTHING").
		Exec(ctx)

	return err
}

func (a *users) StoreActivationToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	return a.StoreActivationTokenTx(ctx, a.db, id, token, expiresAt)
}

func (a *users) StoreActivationTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiresAt time.Time) error {
	res, err := a.Repository.RawTx(ctx, tx, StoreActivationTokenSQL, token, expiresAt, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *users) StoreResetPasswordToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	return a.StoreResetPasswordTokenTx(ctx, a.db, id, token, expiresAt)
}

func (a *users) StoreResetPasswordTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiresAt time.Time) error {
	res, err := a.Repository.RawTx(ctx, tx, StoreResetPasswordTokenSQL, token, expiresAt, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *users) RedeemActivationToken(ctx context.Context, token string, now time.Time) (*User, error) {
	return a.RedeemActivationTokenTx(ctx, a.db, token, now)
}

func (a *users) RedeemActivationTokenTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*User, error) {
	res, err := a.Repository.RawTx(ctx, tx, RedeemActivationTokenSQL, token, now)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound()
	}

	return res[0], nil
}

func (a *users) RedeemResetPasswordToken(ctx context.Context, token, passwordHash string, now time.Time) (*User, error) {
	return a.RedeemResetPasswordTokenTx(ctx, a.db, token, passwordHash, now)
}

func (a *users) RedeemResetPasswordTokenTx(ctx context.Context, tx bun.IDB, token, passwordHash string, now time.Time) (*User, error) {
	res, err := a.Repository.RawTx(ctx, tx, RedeemResetPasswordTokenSQL, passwordHash, now, token, now)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound()
	}

	return res[0], nil
}

func (a *users) TrackSucccessfulLogin(ctx context.Context, user *User) error {
	return a.TrackSucccessfulLoginTx(ctx, a.db, user)
}

func (a *users) TrackSucccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	// NOTE: Updating using the ORM fails due to a bug, it wont reset
	// login_attempt_at, login_attempts fields.
	loggedInAt := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, loggedInAt, user.ID).Exec(ctx)

	return err
}

func (a *users) TrackAttemptedLogin(ctx context.Context, user *User) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, user)
}

func (a *users) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	criteria := []repository.UpdateCriteria{
		repository.UpdateByID(user.ID.String()),
	}

	record := &User{}
	record.ID = user.ID
	record.LoginAttempts = user.LoginAttempts + 1
	now := time.Now()
	record.LoginAttemptAt = &now

	_, err := a.Repository.UpdateTx(ctx, tx, record, criteria...)

	return err
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

type identifierOption struct {
	column string
	value  string
}

func resolveUserIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 2)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  trimmed,
		})
	}

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}
