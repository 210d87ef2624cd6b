package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// ResetSecretBytes is the entropy of the plaintext reset secret.
const ResetSecretBytes = 32

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "account.password_reset" }

// InitializePasswordResetResponse reports the same shape whether or not the
// email matched an account, so callers cannot probe which addresses exist.
type InitializePasswordResetResponse struct {
	Success bool
}

type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	notifier Notifier
	activity ActivitySink
	logger   Logger
	ttl      time.Duration
	nowFn    func() time.Time
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(repo RepositoryManager, cfg Config) *InitializePasswordResetHandler {
	ttl := DefaultResetSecretTTL
	if cfg != nil {
		if v := cfg.GetResetSecretTTL(); v > 0 {
			ttl = v
		}
	}

	return &InitializePasswordResetHandler{
		repo:     repo,
		notifier: noopNotifier{},
		activity: noopActivitySink{},
		logger:   defLogger{},
		ttl:      ttl,
		nowFn:    time.Now,
	}
}

// WithNotifier sets the collaborator that delivers the reset secret.
func (h *InitializePasswordResetHandler) WithNotifier(n Notifier) *InitializePasswordResetHandler {
	h.notifier = normalizeNotifier(n)
	return h
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock overrides the time source, mostly for tests.
func (h *InitializePasswordResetHandler) WithClock(now func() time.Time) *InitializePasswordResetHandler {
	if now != nil {
		h.nowFn = now
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

	var account *Account
	var secret string

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				// Unknown address: report success and store nothing.
				account = nil
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
		}

		// Deactivated and rejected accounts are treated like unknown
		// addresses: same success shape, no secret issued.
		if !account.CanResetPassword() {
			account = nil
			return nil
		}

		secret, err = generateResetSecret()
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset secret")
		}

		expiry := h.nowFn().Add(h.ttl)
		if err := h.repo.Accounts().SetPasswordResetTx(ctx, tx, account.ID, hashResetSecret(secret), expiry); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store password reset secret")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if account != nil {
		h.dispatch(Notification{
			Kind:        NotificationPasswordReset,
			Email:       account.Email,
			AccountID:   account.ID.String(),
			ResetSecret: secret,
		})
		h.recordActivity(ctx, account)
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *InitializePasswordResetHandler) dispatch(n Notification) {
	notifier := normalizeNotifier(h.notifier)
	logger := h.getLogger()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := notifier.Notify(ctx, n); err != nil {
			logger.Warn("reset notification dispatch failed account=%s: %v", n.AccountID, err)
		}
	}()
}

func (h *InitializePasswordResetHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType: ActivityEventPasswordResetRequest,
		Actor: ActorRef{
			ID:   account.ID.String(),
			Type: "user",
		},
		AccountID:  account.ID.String(),
		OccurredAt: h.nowFn(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.getLogger().Warn("activity sink error during password reset request: %v", err)
	}
}

func (h *InitializePasswordResetHandler) getLogger() Logger {
	if h.logger != nil {
		return h.logger
	}
	return defLogger{}
}

// generateResetSecret returns a URL safe random secret. Only its hash is
// ever persisted.
func generateResetSecret() (string, error) {
	buf := make([]byte, ResetSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashResetSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
