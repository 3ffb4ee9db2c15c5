package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetResponse struct {
	// Sent is true only when a reset token was actually generated. The
	// HTTP layer must not expose this distinction to the caller.
	Sent    bool
	Success bool
}

// InitializePasswordResetHandler issues a reset token for a known account.
// Unknown emails complete without error so the endpoint response shape is
// identical either way.
type InitializePasswordResetHandler struct {
	repo      RepositoryManager
	singleUse *SingleUseTokenService
	logger    Logger
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(repo RepositoryManager, singleUse *SingleUseTokenService) *InitializePasswordResetHandler {
	if singleUse == nil {
		singleUse = NewSingleUseTokenService(repo)
	}
	return &InitializePasswordResetHandler{
		repo:      repo,
		singleUse: singleUse,
		logger:    defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByIdentifier(ctx, event.Email)
	if err != nil {
		if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
		}
	} else {
		if _, err := h.singleUse.GenerateResetPasswordToken(ctx, user); err != nil {
			return err
		}
		resp.Sent = true
	}

	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
