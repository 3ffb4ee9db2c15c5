package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the principal model. Activation and reset tokens live as columns
// on this row; at most one of each is valid at a time because every
// generate call overwrites the previous value.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FirstName    string    `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName     string    `bun:"last_name,notnull" json:"last_name,omitempty"`
	Email        string    `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone        string    `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash string    `bun:"password_hash" json:"-"`

	Enabled                bool `bun:"enabled" json:"enabled"`
	Locked                 bool `bun:"locked" json:"locked"`
	PasswordChangeRequired bool `bun:"password_change_required" json:"password_change_required"`

	Roles []*Role `bun:"m2m:users_roles,join:User=Role" json:"roles,omitempty"`

	LoginAttempts  int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`

	LastPasswordChangeAt *time.Time `bun:"last_password_change_at,nullzero" json:"last_password_change_at,omitempty"`

	ActivationToken          *string    `bun:"activation_token,nullzero" json:"-"`
	ActivationTokenExpiresAt *time.Time `bun:"activation_token_expires_at,nullzero" json:"-"`

	ResetPasswordToken          *string    `bun:"reset_password_token,nullzero" json:"-"`
	ResetPasswordTokenExpiresAt *time.Time `bun:"reset_password_token_expires_at,nullzero" json:"-"`

	Metadata  map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// AddMetadata will append information to a metadata attribute
func (u *User) AddMetadata(key string, val any) *User {
	if u.Metadata == nil {
		u.Metadata = make(map[string]any)
	}
	u.Metadata[key] = val
	return u
}

// RoleNames returns the names of every role assigned to the user.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		if r != nil {
			names = append(names, r.Name)
		}
	}
	return names
}

// PrimaryRole returns the highest-ranked assigned role, falling back to the
// default role when none is assigned.
func (u *User) PrimaryRole() string {
	primary := ""
	for _, name := range u.RoleNames() {
		if primary == "" || RoleRank(name) > RoleRank(primary) {
			primary = name
		}
	}
	if primary == "" {
		return RoleUser
	}
	return primary
}

// HasRole reports whether the user carries the named role.
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r != nil && r.Name == name {
			return true
		}
	}
	return false
}

// HasValidActivationToken reports whether the stored activation token
// matches and has not expired at the given instant.
func (u *User) HasValidActivationToken(token string, now time.Time) bool {
	if u.ActivationToken == nil || u.ActivationTokenExpiresAt == nil {
		return false
	}
	return *u.ActivationToken == token && u.ActivationTokenExpiresAt.After(now)
}

// HasValidResetToken reports whether the stored reset token matches and has
// not expired at the given instant.
func (u *User) HasValidResetToken(token string, now time.Time) bool {
	if u.ResetPasswordToken == nil || u.ResetPasswordTokenExpiresAt == nil {
		return false
	}
	return *u.ResetPasswordToken == token && u.ResetPasswordTokenExpiresAt.After(now)
}

// Role is a named grant; assignments live in the users_roles join table.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`

	ID          uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name        string     `bun:"name,notnull,unique" json:"name,omitempty"`
	Description string     `bun:"description" json:"description,omitempty"`
	CreatedAt   *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt   *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// UserRoleLink is the m2m join model between users and roles.
type UserRoleLink struct {
	bun.BaseModel `bun:"table:users_roles,alias:usrrol"`

	UserID uuid.UUID `bun:"user_id,pk,type:uuid" json:"user_id"`
	User   *User     `bun:"rel:belongs-to,join:user_id=id" json:"-"`
	RoleID uuid.UUID `bun:"role_id,pk,type:uuid" json:"role_id"`
	Role   *Role     `bun:"rel:belongs-to,join:role_id=id" json:"-"`
}
