package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type FinalizePasswordResetMessage struct {
	Token      string `json:"token" doc:"Reset password token"`
	Password   string `json:"password" example:"some_secret_word" doc:"New password"`
	OnResponse func(changed bool)
}

func (p FinalizePasswordResetMessage) Type() string { return "user.password_reset.finalize" }

// FinalizePasswordResetHandler redeems a reset token and replaces the
// account password. Absent, expired, and already-redeemed tokens all
// produce changed=false with no distinction.
type FinalizePasswordResetHandler struct {
	singleUse *SingleUseTokenService
	activity  ActivitySink
	logger    Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(singleUse *SingleUseTokenService) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		singleUse: singleUse,
		activity:  noopActivitySink{},
		logger:    defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	changed, err := h.singleUse.ResetPassword(ctx, event.Token, event.Password)
	if err != nil {
		return err
	}

	if changed {
		if err := normalizeActivitySink(h.activity).Record(ctx, ActivityEvent{
			EventType:  ActivityEventPasswordResetSuccess,
			Actor:      ActorRef{Type: "user"},
			OccurredAt: time.Now(),
		}); err != nil {
			h.logger.Warn("activity sink error during password reset: %v", err)
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(changed)
	}

	return nil
}
