package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the identity and security record for any user regardless of
// role. Role-specific profile data (roll numbers, departments, designations)
// lives in the Attributes map and is opaque to this package; the owning CRUD
// layer validates it.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID           uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email        string        `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash string        `bun:"password_hash,notnull" json:"-"`
	Role         AccountRole   `bun:"account_role,notnull" json:"role,omitempty"`
	Status       AccountStatus `bun:"status,notnull" json:"status,omitempty"`
	IsActive     bool          `bun:"is_active" json:"is_active"`

	FirstName  string         `bun:"first_name" json:"first_name,omitempty"`
	LastName   string         `bun:"last_name" json:"last_name,omitempty"`
	Phone      string         `bun:"phone_number" json:"phone_number,omitempty"`
	Attributes map[string]any `bun:"attributes" json:"attributes,omitempty"`

	FailedAttempts int        `bun:"failed_attempts" json:"-"`
	LockedUntil    *time.Time `bun:"locked_until,nullzero" json:"-"`

	PasswordResetHash   string     `bun:"password_reset_hash" json:"-"`
	PasswordResetExpiry *time.Time `bun:"password_reset_expiry,nullzero" json:"-"`

	ApprovedBy      *uuid.UUID `bun:"approved_by,nullzero,type:uuid" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `bun:"approved_at,nullzero" json:"approved_at,omitempty"`
	RejectedBy      *uuid.UUID `bun:"rejected_by,nullzero,type:uuid" json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `bun:"rejected_at,nullzero" json:"rejected_at,omitempty"`
	RejectionReason string     `bun:"rejection_reason" json:"rejection_reason,omitempty"`

	LastLoginAt *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	CreatedAt   *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt   *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt   *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// AddAttribute will append information to the opaque profile attributes
func (a *Account) AddAttribute(key string, val any) *Account {
	if a.Attributes == nil {
		a.Attributes = make(map[string]any)
	}
	a.Attributes[key] = val
	return a
}

// IsLocked reports whether the account has a lock that is still in effect at
// the given instant. Expired locks are cleared lazily by the next login
// attempt, not here.
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// IsPending reports whether the account is awaiting approval.
func (a *Account) IsPending() bool {
	a.EnsureStatus()
	return a.Status == StatusPending
}

// IsApproved reports whether the account has been approved.
func (a *Account) IsApproved() bool {
	a.EnsureStatus()
	return a.Status == StatusApproved
}

// IsRejected reports whether the account registration was rejected.
func (a *Account) IsRejected() bool {
	a.EnsureStatus()
	return a.Status == StatusRejected
}

// CanAuthenticate reports whether the lifecycle gates allow a login to even
// reach the credential check.
func (a *Account) CanAuthenticate() bool {
	return a.IsApproved() && a.IsActive
}

// CanResetPassword reports whether the account may request or consume a
// password reset. Deactivated and rejected accounts are shut out of the
// whole flow.
func (a *Account) CanResetPassword() bool {
	return a.IsActive && !a.IsRejected()
}

// HasOutstandingReset reports whether a password reset secret is currently
// stored for the account.
func (a *Account) HasOutstandingReset() bool {
	return a.PasswordResetHash != "" && a.PasswordResetExpiry != nil
}
