package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Secret   string `json:"token"`
	Password string `json:"password"`
}

func (p FinalizePasswordResetMessage) Type() string { return "account.password_reset_finalize" }

// FinalizePasswordResetHandler consumes a reset secret: it installs the new
// credential and clears the secret and any lockout state in one statement.
//
// Access tokens minted before the reset stay valid until they expire; their
// short lifetime bounds the exposure and keeps token validation stateless.
type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
	nowFn    func() time.Time
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
		nowFn:    time.Now,
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

// WithClock overrides the time source, mostly for tests.
func (h *FinalizePasswordResetHandler) WithClock(now func() time.Time) *FinalizePasswordResetHandler {
	if now != nil {
		h.nowFn = now
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
	var account *Account

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := ValidatePasswordStrength(event.Password); err != nil {
		return err
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = findAccountByResetSecret(ctx, h.repo, event.Secret, h.nowFn())
		if err != nil {
			return err
		}

		passwordHash, err := HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
		}

		if err := h.repo.Accounts().ResetCredentialTx(ctx, tx, account.ID, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account password in database")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	h.recordActivity(ctx, account)

	return nil
}

func (h *FinalizePasswordResetHandler) recordActivity(ctx context.Context, account *Account) {
	if account == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		Actor: ActorRef{
			ID:   account.ID.String(),
			Type: "user",
		},
		AccountID:  account.ID.String(),
		OccurredAt: h.nowFn(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.getLogger().Warn("activity sink error during password reset: %v", err)
	}
}

func (h *FinalizePasswordResetHandler) getLogger() Logger {
	if h.logger != nil {
		return h.logger
	}
	return defLogger{}
}
