package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type ActivateAccountMessage struct {
	Token      string `json:"token"`
	OnResponse func(activated bool)
}

func (e ActivateAccountMessage) Type() string { return "account.activate" }

// ActivateAccountHandler redeems an activation token. Absent, expired, and
// already-redeemed tokens all produce activated=false with no distinction.
type ActivateAccountHandler struct {
	singleUse *SingleUseTokenService
	activity  ActivitySink
	logger    Logger
}

// NewActivateAccountHandler creates a handler with sane defaults.
func NewActivateAccountHandler(singleUse *SingleUseTokenService) *ActivateAccountHandler {
	return &ActivateAccountHandler{
		singleUse: singleUse,
		activity:  noopActivitySink{},
		logger:    defLogger{},
	}
}

// WithActivitySink sets the sink used to emit activation events.
func (h *ActivateAccountHandler) WithActivitySink(sink ActivitySink) *ActivateAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ActivateAccountHandler) WithLogger(logger Logger) *ActivateAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ActivateAccountHandler) Execute(ctx context.Context, event ActivateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account activation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateAccountHandler) execute(ctx context.Context, event ActivateAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	activated, err := h.singleUse.Activate(ctx, event.Token)
	if err != nil {
		return err
	}

	if activated {
		if err := normalizeActivitySink(h.activity).Record(ctx, ActivityEvent{
			EventType:  ActivityEventAccountActivated,
			Actor:      ActorRef{Type: "user"},
			OccurredAt: time.Now(),
		}); err != nil {
			h.logger.Warn("activity sink error during activation: %v", err)
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(activated)
	}

	return nil
}

type RequestActivationMessage struct {
	Email      string `json:"email"`
	OnResponse func(sent bool)
}

func (e RequestActivationMessage) Type() string { return "account.activation_request" }

// RequestActivationHandler re-issues an activation token for a registered,
// still-disabled account. Unknown emails and already-enabled accounts are
// silently ignored so the endpoint never leaks account existence.
type RequestActivationHandler struct {
	repo      RepositoryManager
	singleUse *SingleUseTokenService
	logger    Logger
}

// NewRequestActivationHandler creates a handler with sane defaults.
func NewRequestActivationHandler(repo RepositoryManager, singleUse *SingleUseTokenService) *RequestActivationHandler {
	if singleUse == nil {
		singleUse = NewSingleUseTokenService(repo)
	}
	return &RequestActivationHandler{
		repo:      repo,
		singleUse: singleUse,
		logger:    defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *RequestActivationHandler) WithLogger(logger Logger) *RequestActivationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RequestActivationHandler) Execute(ctx context.Context, event RequestActivationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during activation request")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestActivationHandler) execute(ctx context.Context, event RequestActivationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	sent := false

	user, err := h.repo.Users().GetByIdentifier(ctx, event.Email)
	if err != nil {
		if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for activation request")
		}
	} else if !user.Enabled {
		if _, err := h.singleUse.GenerateActivationToken(ctx, user); err != nil {
			return err
		}
		sent = true
	}

	if event.OnResponse != nil {
		event.OnResponse(sent)
	}

	return nil
}
