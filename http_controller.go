package auth

import (
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RegisterAuthRoutes mounts the JSON auth API on the given router.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("auth.login")

	app.Post(controller.Routes.Register, controller.RegisterPost).
		SetName("auth.register")

	app.Post(controller.Routes.RefreshToken, controller.RefreshPost).
		SetName("auth.refresh")

	app.Get(controller.Routes.Validate, controller.ValidateGet).
		SetName("auth.validate")

	app.Post(controller.Routes.Activate, controller.ActivatePost).
		SetName("account.activate")

	app.Post(controller.Routes.RequestActivation, controller.RequestActivationPost).
		SetName("account.request-activation")

	app.Post(controller.Routes.ForgotPassword, controller.ForgotPasswordPost).
		SetName("account.forgot-password")

	app.Post(controller.Routes.ResetPassword, controller.ResetPasswordPost).
		SetName("account.reset-password")

	app.Get(controller.Routes.AgendaConfirm+"/:token", controller.AgendaConfirmGet).
		SetName("agenda.confirm")
}

type AuthControllerRoutes struct {
	Login             string
	Register          string
	RefreshToken      string
	Validate          string
	Activate          string
	RequestActivation string
	ForgotPassword    string
	ResetPassword     string
	AgendaConfirm     string
}

type AuthController struct {
	Debug         bool
	Logger        Logger
	Repo          RepositoryManager
	Routes        *AuthControllerRoutes
	Auther        Authenticator
	SingleUse     *SingleUseTokenService
	Confirmations *ConfirmationTokenService
	Notifier      Notifier
	ErrorHandler  router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &AuthControllerRoutes{
			Login:             "/auth/login",
			Register:          "/auth/register",
			RefreshToken:      "/auth/refresh-token",
			Validate:          "/auth/validate",
			Activate:          "/account/activate",
			RequestActivation: "/account/request-activation",
			ForgotPassword:    "/account/forgot-password",
			ResetPassword:     "/account/reset-password",
			AgendaConfirm:     "/agenda/confirm",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.SingleUse == nil {
		panic("Missing SingleUseTokenService in auth controller...")
	}

	return c
}

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuthenticator(auther Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerSingleUse(svc *SingleUseTokenService) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.SingleUse = svc
		return c
	}
}

func WithControllerConfirmations(svc *ConfirmationTokenService) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Confirmations = svc
		return c
	}
}

func WithControllerNotifier(notifier Notifier) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Notifier = normalizeNotifier(notifier)
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	if a.Debug {
		a.Logger.Debug("login payload: %s", print.MaybePrettyJSON(payload))
	}

	pair, err := a.Auther.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		a.Logger.Error("login error: %v", err)
		return a.richError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, pair)
}

// RegisterRequest is the registration payload
type RegisterRequest struct {
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Email           string `form:"email" json:"email"`
	Phone           string `form:"phone_number" json:"phone_number"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.Length(9, 15)),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) RegisterPost(ctx router.Context) error {
	payload := new(RegisterRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	pair, err := a.Auther.Register(ctx.Context(), RegisterUserMessage{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Phone:     payload.Phone,
		Password:  payload.Password,
	})
	if err != nil {
		a.Logger.Error("register error: %v", err)
		return a.richError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, pair)
}

// RefreshRequest carries the refresh token
type RefreshRequest struct {
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

// Validate will validate the payload
func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

func (a *AuthController) RefreshPost(ctx router.Context) error {
	payload := new(RefreshRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	pair, err := a.Auther.Refresh(ctx.Context(), payload.RefreshToken)
	if err != nil {
		a.Logger.Error("refresh error: %v", err)
		return a.richError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, pair)
}

func (a *AuthController) ValidateGet(ctx router.Context) error {
	raw := bearerToken(ctx.Header("Authorization"))
	if raw == "" {
		return a.richError(ctx, ErrTokenMalformed)
	}

	session, err := a.Auther.SessionFromToken(raw)
	if err != nil {
		return a.richError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"valid":   true,
		"user_id": session.GetUserID(),
	})
}

// ActivateRequest carries an activation token
type ActivateRequest struct {
	Token string `form:"token" json:"token"`
}

// Validate will validate the payload
func (r ActivateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

func (a *AuthController) ActivatePost(ctx router.Context) error {
	payload := new(ActivateRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	var activated bool
	handler := NewActivateAccountHandler(a.SingleUse).WithLogger(a.Logger)

	err := handler.Execute(ctx.Context(), ActivateAccountMessage{
		Token: payload.Token,
		OnResponse: func(ok bool) {
			activated = ok
		},
	})
	if err != nil {
		a.Logger.Error("activate error: %v", err)
		return a.richError(ctx, err)
	}

	if !activated {
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error": "invalid or expired activation token",
		})
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"message": "account activated",
	})
}

// EmailRequest is shared by the anti-enumeration endpoints: the response
// is 200 regardless of whether the account exists.
type EmailRequest struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r EmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AuthController) RequestActivationPost(ctx router.Context) error {
	payload := new(EmailRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	handler := NewRequestActivationHandler(a.Repo, a.SingleUse).WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), RequestActivationMessage{
		Email: payload.Email,
	}); err != nil {
		a.Logger.Error("request activation error: %v", err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"message": "if the account exists, an activation email was sent",
	})
}

func (a *AuthController) ForgotPasswordPost(ctx router.Context) error {
	payload := new(EmailRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	handler := NewInitializePasswordResetHandler(a.Repo, a.SingleUse).WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), InitializePasswordResetMessage{
		Email: payload.Email,
	}); err != nil {
		a.Logger.Error("forgot password error: %v", err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"message": "if the account exists, a reset email was sent",
	})
}

// ResetPasswordRequest carries the reset token and new password
type ResetPasswordRequest struct {
	Token           string `form:"token" json:"token"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) ResetPasswordPost(ctx router.Context) error {
	payload := new(ResetPasswordRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	var changed bool
	handler := NewFinalizePasswordResetHandler(a.SingleUse).WithLogger(a.Logger)

	err := handler.Execute(ctx.Context(), FinalizePasswordResetMessage{
		Token:    payload.Token,
		Password: payload.Password,
		OnResponse: func(ok bool) {
			changed = ok
		},
	})
	if err != nil {
		a.Logger.Error("reset password error: %v", err)
		return a.richError(ctx, err)
	}

	if !changed {
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error": "invalid or expired reset token",
		})
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"message": "password changed",
	})
}

func (a *AuthController) AgendaConfirmGet(ctx router.Context) error {
	if a.Confirmations == nil {
		return ctx.JSON(http.StatusNotFound, map[string]any{
			"error": "agenda confirmation is not enabled",
		})
	}

	token := ctx.Param("token", "")

	response, ok := ParseAgendaStatus(strings.ToUpper(ctx.Query("response", "CONFIRMED")))
	if !ok {
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error": "response must be CONFIRMED or DECLINED",
		})
	}

	result, err := a.Confirmations.Confirm(ctx.Context(), token, response)
	if err != nil {
		a.Logger.Error("agenda confirm error: %v", err)
		return a.richError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"message":  "attendance recorded",
		"response": result.Response,
	})
}

func (a *AuthController) badRequest(ctx router.Context, message string) error {
	return ctx.JSON(http.StatusBadRequest, map[string]any{
		"error": message,
	})
}

func (a *AuthController) validationFailed(ctx router.Context, err error) error {
	return ctx.JSON(http.StatusBadRequest, map[string]any{
		"error":      "validation failed",
		"validation": FormatValidationErrorToMap(err),
	})
}

func (a *AuthController) richError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	return ctx.JSON(statusFromError(richErr), errorBody(richErr))
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return validation.NewError("validation_match", "values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field-to-message map for JSON responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	if err == nil {
		return out
	}

	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}

	out["error"] = err.Error()
	return out
}

func bearerToken(header string) string {
	const scheme = "Bearer "
	if len(header) > len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
		return strings.TrimSpace(header[len(scheme):])
	}
	return ""
}

func defaultErrHandler(c router.Context, err error) error {
	return c.JSON(http.StatusInternalServerError, map[string]any{
		"error": err.Error(),
	})
}
