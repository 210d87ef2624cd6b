package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type VerifyPasswordResetMessage struct {
	Secret     string `json:"token"`
	OnResponse func(account *Account)
}

func (p VerifyPasswordResetMessage) Type() string { return "account.password_reset_verify" }

// VerifyPasswordResetHandler checks a reset secret without consuming it, so
// a UI can validate the link before asking for the new password.
type VerifyPasswordResetHandler struct {
	repo  RepositoryManager
	nowFn func() time.Time
}

func NewVerifyPasswordResetHandler(repo RepositoryManager) *VerifyPasswordResetHandler {
	return &VerifyPasswordResetHandler{
		repo:  repo,
		nowFn: time.Now,
	}
}

// WithClock overrides the time source, mostly for tests.
func (h *VerifyPasswordResetHandler) WithClock(now func() time.Time) *VerifyPasswordResetHandler {
	if now != nil {
		h.nowFn = now
	}
	return h
}

func (h *VerifyPasswordResetHandler) Execute(ctx context.Context, event VerifyPasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyPasswordResetHandler) execute(ctx context.Context, event VerifyPasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := findAccountByResetSecret(ctx, h.repo, event.Secret, h.nowFn())
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}

// findAccountByResetSecret resolves a plaintext reset secret to its account,
// folding unknown and expired secrets into the same error so callers cannot
// distinguish the two.
func findAccountByResetSecret(ctx context.Context, repo RepositoryManager, secret string, now time.Time) (*Account, error) {
	if secret == "" {
		return nil, ErrInvalidResetToken
	}

	account, err := repo.Accounts().GetByResetSecret(ctx, hashResetSecret(secret))
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrInvalidResetToken
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up reset secret")
	}

	if account.PasswordResetExpiry == nil || !account.PasswordResetExpiry.After(now) {
		return nil, ErrInvalidResetToken
	}

	// An account deactivated or rejected after requesting the reset can no
	// longer consume it.
	if !account.CanResetPassword() {
		return nil, ErrInvalidResetToken
	}

	return account, nil
}
