package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeAuthenticationFailed labels bad-credential failures
	TextCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	// TextCodeAccountDisabled labels logins blocked by account state
	TextCodeAccountDisabled = "ACCOUNT_DISABLED"
	// TextCodeTokenExpired labels expired JWTs
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenMalformed labels unparseable or unverifiable JWTs
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
	// TextCodeEmptyPassword labels empty password input
	TextCodeEmptyPassword = "EMPTY_PASSWORD"
)

// ErrAuthenticationFailed is returned for absent users and wrong passwords
// alike; callers must not be able to tell which factor failed.
var ErrAuthenticationFailed = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeAuthenticationFailed).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountDisabled is returned when credentials are correct but the
// account is disabled or locked.
var ErrAccountDisabled = goerrors.New("account is not enabled", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountDisabled).
	WithCode(goerrors.CodeForbidden)

// ErrTokenExpired is returned when a JWT verifies but its expiry has passed.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for unparseable, unsigned, or unverifiable
// tokens.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryBadInput).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeBadRequest)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrRoleNotFound signals a missing role record; for the default role this
// is a deployment misconfiguration, not a user error.
var ErrRoleNotFound = goerrors.New("role not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrTooManyLoginAttempts blocks verification during the cool-down window.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryAuth).
	WithTextCode("TOO_MANY_LOGIN_ATTEMPTS").
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before hashing
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword)

// ErrMismatchedHashAndPassword is the generic bcrypt comparison failure
var ErrMismatchedHashAndPassword = goerrors.New("credentials do not match", goerrors.CategoryAuth).
	WithTextCode(TextCodeAuthenticationFailed).
	WithCode(goerrors.CodeUnauthorized)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
