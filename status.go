package identity

// AccountStatus is the registration lifecycle state of an account.
type AccountStatus string

const (
	// StatusPending is the initial state, set at creation. Pending accounts
	// cannot authenticate.
	StatusPending AccountStatus = "pending"
	// StatusApproved is the terminal success state. Only approved accounts
	// may authenticate (subject to IsActive).
	StatusApproved AccountStatus = "approved"
	// StatusRejected is the terminal failure state. Rejected accounts can
	// only re-enter the workflow through an explicit reactivation.
	StatusRejected AccountStatus = "rejected"
)

// IsValid checks if the status is part of the lifecycle set
func (s AccountStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// EnsureStatus backfills the zero value so records predating the lifecycle
// columns behave as pending.
func (a *Account) EnsureStatus() {
	if a.Status == "" {
		a.Status = StatusPending
	}
}

// statusAuthError maps a lifecycle status to the auth error a login attempt
// should surface, or nil when the status itself does not block login.
func statusAuthError(status AccountStatus) error {
	switch status {
	case StatusPending:
		return ErrRegistrationPending
	case StatusRejected:
		return ErrRegistrationRejected
	case StatusApproved:
		return nil
	default:
		return ErrRegistrationPending
	}
}
