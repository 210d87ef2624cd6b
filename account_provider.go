package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
)

// AccountTracker is a store we can use to retrieve accounts and record
// login outcomes
type AccountTracker interface {
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Account, error)
	TrackFailedLogin(ctx context.Context, account *Account, threshold int, lockUntil time.Time) (*Account, error)
	TrackSuccessfulLogin(ctx context.Context, account *Account, at time.Time) error
	ClearExpiredLock(ctx context.Context, account *Account, now time.Time) (*Account, error)
}

// AccountProvider verifies credentials against the accounts store while
// enforcing the lifecycle and lockout gates.
type AccountProvider struct {
	store        AccountTracker
	Validator    func(*Account) error
	logger       Logger
	maxAttempts  int
	lockDuration time.Duration
	nowFn        func() time.Time
}

// NewAccountProvider will create a new AccountProvider
func NewAccountProvider(store AccountTracker, cfg Config) *AccountProvider {
	maxAttempts := DefaultMaxFailedAttempts
	lockDuration := DefaultLockDuration
	if cfg != nil {
		if v := cfg.GetMaxFailedAttempts(); v > 0 {
			maxAttempts = v
		}
		if v := cfg.GetLockDuration(); v > 0 {
			lockDuration = v
		}
	}

	return &AccountProvider{
		store:        store,
		logger:       defLogger{},
		Validator:    defaultAccountValidator,
		maxAttempts:  maxAttempts,
		lockDuration: lockDuration,
		nowFn:        time.Now,
	}
}

func (p *AccountProvider) WithLogger(l Logger) *AccountProvider {
	if l != nil {
		p.logger = l
	}
	return p
}

// WithClock overrides the time source, mostly for tests.
func (p *AccountProvider) WithClock(now func() time.Time) *AccountProvider {
	if now != nil {
		p.nowFn = now
	}
	return p
}

func (p *AccountProvider) validate(account *Account) error {
	if p.Validator != nil {
		return p.Validator(account)
	}
	return defaultAccountValidator(account)
}

// VerifyIdentity will find the account, enforce the lifecycle and lockout
// gates, compare the password, and return the identity.
//
// Order matters: a pending or rejected registration is reported before the
// lock is consulted, and a locked account is reported before the password
// is ever compared, so a locked caller learns nothing about their
// credential.
func (p *AccountProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	account, err := p.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account during verification")
	}

	if err := ensureAuthenticatableAccount(account); err != nil {
		return nil, err
	}

	now := p.nowFn()

	if account.IsLocked(now) {
		return nil, ErrAccountLocked.WithMetadata(map[string]any{
			"locked_until": account.LockedUntil,
		})
	}

	// Lapsed lock: clear the counter before this attempt is judged so a
	// stale streak does not carry into the new window.
	if account.LockedUntil != nil {
		cleared, err := p.store.ClearExpiredLock(ctx, account, now)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to clear expired lock")
		}
		account = cleared
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		updated, terr := p.store.TrackFailedLogin(ctx, account, p.maxAttempts, now.Add(p.lockDuration))
		if terr != nil {
			return nil, errors.Wrap(terr, errors.CategoryInternal, "failed to track login attempt")
		}

		if updated.IsLocked(now) {
			return nil, ErrAccountLocked.WithMetadata(map[string]any{
				"locked_until": updated.LockedUntil,
			})
		}

		return nil, ErrMismatchedHashAndPassword
	}

	if err := p.store.TrackSuccessfulLogin(ctx, account, now); err != nil {
		p.logger.Error("failed to track successful login: %v", err)
	}

	if err := p.validate(account); err != nil {
		return nil, err
	}

	return NewIdentityFromAccount(account), nil
}

func (p *AccountProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	account, err := p.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if err := ensureAuthenticatableAccount(account); err != nil {
		return nil, err
	}

	if err := p.validate(account); err != nil {
		return nil, err
	}

	return NewIdentityFromAccount(account), nil
}

var _ IdentityProvider = (*AccountProvider)(nil)

func defaultAccountValidator(a *Account) error {
	switch a.Role {
	case RoleStudent, RoleFaculty, RoleAdmin:
		return nil
	default:
		return errors.New("account has an unknown or invalid role", errors.CategoryAuth).
			WithTextCode("INVALID_ROLE").
			WithMetadata(map[string]any{"role": a.Role, "account_id": a.ID.String()})
	}
}

func ensureAuthenticatableAccount(account *Account) error {
	if account == nil {
		return ErrIdentityNotFound
	}

	account.EnsureStatus()

	if err := statusAuthError(account.Status); err != nil {
		return err
	}

	if !account.IsActive {
		return ErrAccountInactive
	}

	return nil
}
