package auth

import "time"

// Default TTLs for the persisted single-use tokens. Access and refresh TTLs
// are always caller supplied.
const (
	ActivationTokenTTL    = 24 * time.Hour
	ResetPasswordTokenTTL = time.Hour
)

// ConfirmationLeadWindow is how long before a session starts that the
// attendance-confirmation link stops working.
const ConfirmationLeadWindow = 12 * time.Hour

// SimpleConfig is an immutable Config implementation. Construct one per
// deployment; tests can build independent instances with different secrets
// and TTLs so signers never share ambient state.
type SimpleConfig struct {
	SigningKey             string
	SigningMethod          string
	ContextKey             string
	AccessTokenTTL         time.Duration
	RefreshTokenTTL        time.Duration
	TokenLookup            string
	AuthScheme             string
	Issuer                 string
	Audience               []string
	ConfirmationSigningKey string
	FrontendBaseURL        string
	ActivationPath         string
	PasswordResetPath      string
	AgendaConfirmPath      string
}

var _ Config = SimpleConfig{}

// NewConfig returns a SimpleConfig with the package defaults applied. TTLs
// are taken in milliseconds, which is how deployments configure them.
func NewConfig(signingKey, issuer string, accessTTLMillis, refreshTTLMillis int64) SimpleConfig {
	return SimpleConfig{
		SigningKey:      signingKey,
		SigningMethod:   "HS256",
		ContextKey:      "user",
		AccessTokenTTL:  time.Duration(accessTTLMillis) * time.Millisecond,
		RefreshTokenTTL: time.Duration(refreshTTLMillis) * time.Millisecond,
		TokenLookup:     "header:Authorization",
		AuthScheme:      "Bearer",
		Issuer:          issuer,
	}
}

func (c SimpleConfig) GetSigningKey() string    { return c.SigningKey }
func (c SimpleConfig) GetContextKey() string    { return c.ContextKey }
func (c SimpleConfig) GetTokenLookup() string   { return c.TokenLookup }
func (c SimpleConfig) GetIssuer() string        { return c.Issuer }
func (c SimpleConfig) GetAudience() []string    { return c.Audience }
func (c SimpleConfig) GetFrontendBaseURL() string { return c.FrontendBaseURL }

func (c SimpleConfig) GetSigningMethod() string {
	if c.SigningMethod == "" {
		return "HS256"
	}
	return c.SigningMethod
}

func (c SimpleConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return "Bearer"
	}
	return c.AuthScheme
}

func (c SimpleConfig) GetAccessTokenTTL() time.Duration {
	if c.AccessTokenTTL <= 0 {
		return 15 * time.Minute
	}
	return c.AccessTokenTTL
}

func (c SimpleConfig) GetRefreshTokenTTL() time.Duration {
	if c.RefreshTokenTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return c.RefreshTokenTTL
}

// GetConfirmationSigningKey falls back to the main signing key when no
// dedicated confirmation secret is configured.
func (c SimpleConfig) GetConfirmationSigningKey() string {
	if c.ConfirmationSigningKey == "" {
		return c.SigningKey
	}
	return c.ConfirmationSigningKey
}

func (c SimpleConfig) GetActivationPath() string {
	if c.ActivationPath == "" {
		return "/account/activate"
	}
	return c.ActivationPath
}

func (c SimpleConfig) GetPasswordResetPath() string {
	if c.PasswordResetPath == "" {
		return "/account/reset-password"
	}
	return c.PasswordResetPath
}

func (c SimpleConfig) GetAgendaConfirmPath() string {
	if c.AgendaConfirmPath == "" {
		return "/agenda/confirm"
	}
	return c.AgendaConfirmPath
}
