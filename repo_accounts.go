package identity

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TrackFailedLoginSQL increments the counter and arms the lock in one
// statement so two concurrent failures cannot both read the same count.
// The lock threshold and the lock expiry are bound as parameters.
var TrackFailedLoginSQL = `UPDATE "accounts" AS "acc"
SET
	"failed_attempts" = "acc"."failed_attempts" + 1,
	"locked_until" = CASE
		WHEN "acc"."failed_attempts" + 1 >= ? THEN ?
		ELSE "acc"."locked_until"
	END
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

var TrackSuccessfulLoginSQL = `UPDATE "accounts" AS "acc"
SET
	"last_login_at" = ?,
	"failed_attempts" = 0,
	"locked_until" = NULL
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

// ClearExpiredLockSQL only fires when the stored lock has already lapsed,
// so an in-force lock is never shortened.
var ClearExpiredLockSQL = `UPDATE "accounts" AS "acc"
SET
	"failed_attempts" = 0,
	"locked_until" = NULL
WHERE
	"acc"."deleted_at" IS NULL
AND "acc"."locked_until" IS NOT NULL
AND "acc"."locked_until" <= ?
AND (
	"acc"."id" = ?
) RETURNING *;`

var SetPasswordResetSQL = `UPDATE "accounts" AS "acc"
SET
	"password_reset_hash" = ?,
	"password_reset_expiry" = ?
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

// ResetCredentialSQL installs the new hash and retires the reset secret and
// any lockout state in the same statement.
var ResetCredentialSQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?,
	"password_reset_hash" = '',
	"password_reset_expiry" = NULL,
	"failed_attempts" = 0,
	"locked_until" = NULL
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

type Accounts interface {
	repository.Repository[*Account]

	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	GetByResetSecret(ctx context.Context, secretHash string) (*Account, error)
	GetByResetSecretTx(ctx context.Context, tx bun.IDB, secretHash string) (*Account, error)

	TrackFailedLogin(ctx context.Context, account *Account, threshold int, lockUntil time.Time) (*Account, error)
	TrackFailedLoginTx(ctx context.Context, tx bun.IDB, account *Account, threshold int, lockUntil time.Time) (*Account, error)
	TrackSuccessfulLogin(ctx context.Context, account *Account, at time.Time) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, account *Account, at time.Time) error
	ClearExpiredLock(ctx context.Context, account *Account, now time.Time) (*Account, error)
	ClearExpiredLockTx(ctx context.Context, tx bun.IDB, account *Account, now time.Time) (*Account, error)

	ChangeStatus(ctx context.Context, id uuid.UUID, from, to AccountStatus, opts ...StatusUpdateOption) (*Account, error)
	ChangeStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, from, to AccountStatus, opts ...StatusUpdateOption) (*Account, error)

	SetPasswordReset(ctx context.Context, id uuid.UUID, secretHash string, expiry time.Time) error
	SetPasswordResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID, secretHash string, expiry time.Time) error
	ResetCredential(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetCredentialTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

func (a *accounts) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	record, err := a.CreateTx(ctx, tx, account)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail.WithMetadata(map[string]any{
				"email": account.Email,
			})
		}
		return nil, err
	}
	return record, nil
}

func (a *accounts) Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	prepareAccountDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *accounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", normalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": email,
				})
		}
		return nil, err
	}
	return record, nil
}

func (a *accounts) GetByResetSecret(ctx context.Context, secretHash string) (*Account, error) {
	return a.GetByResetSecretTx(ctx, a.db, secretHash)
}

func (a *accounts) GetByResetSecretTx(ctx context.Context, tx bun.IDB, secretHash string) (*Account, error) {
	if strings.TrimSpace(secretHash) == "" {
		return nil, repository.NewRecordNotFound()
	}

	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.password_reset_hash = ?", secretHash).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}
	return record, nil
}

func (a *accounts) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Account, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *accounts) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*Account, error) {
	options := resolveAccountIdentifier(identifier)
	if len(options) == 0 {
		options = []identifierOption{
			{
				column: "id",
				value:  strings.TrimSpace(identifier),
			},
		}
	}

	for _, opt := range options {
		record := &Account{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *accounts) TrackFailedLogin(ctx context.Context, account *Account, threshold int, lockUntil time.Time) (*Account, error) {
	return a.TrackFailedLoginTx(ctx, a.db, account, threshold, lockUntil)
}

func (a *accounts) TrackFailedLoginTx(ctx context.Context, tx bun.IDB, account *Account, threshold int, lockUntil time.Time) (*Account, error) {
	res, err := a.Repository.RawTx(ctx, tx, TrackFailedLoginSQL, threshold, lockUntil, account.ID.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": account.ID.String(),
			})
	}

	return res[0], nil
}

func (a *accounts) TrackSuccessfulLogin(ctx context.Context, account *Account, at time.Time) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, account, at)
}

func (a *accounts) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, account *Account, at time.Time) error {
	res, err := a.Repository.RawTx(ctx, tx, TrackSuccessfulLoginSQL, at, account.ID.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": account.ID.String(),
			})
	}

	return nil
}

func (a *accounts) ClearExpiredLock(ctx context.Context, account *Account, now time.Time) (*Account, error) {
	return a.ClearExpiredLockTx(ctx, a.db, account, now)
}

func (a *accounts) ClearExpiredLockTx(ctx context.Context, tx bun.IDB, account *Account, now time.Time) (*Account, error) {
	res, err := a.Repository.RawTx(ctx, tx, ClearExpiredLockSQL, now, account.ID.String())
	if err != nil {
		return nil, err
	}

	// No rows means another request already cleared it or the lock is
	// still in force; either way the caller re-reads the record.
	if len(res) == 0 {
		return account, nil
	}

	return res[0], nil
}

func (a *accounts) ChangeStatus(ctx context.Context, id uuid.UUID, from, to AccountStatus, opts ...StatusUpdateOption) (*Account, error) {
	return a.ChangeStatusTx(ctx, a.db, id, from, to, opts...)
}

// ChangeStatusTx performs a compare-and-swap on the lifecycle status: the
// UPDATE only applies while the row still holds the expected source status,
// so two admins racing on the same registration cannot both win.
func (a *accounts) ChangeStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, from, to AccountStatus, opts ...StatusUpdateOption) (*Account, error) {
	update := &statusUpdate{
		record:  &Account{ID: id, Status: to},
		columns: []string{"status", "updated_at"},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(update)
		}
	}

	now := time.Now()
	update.record.UpdatedAt = &now

	res, err := tx.NewUpdate().
		Model(update.record).
		Column(update.columns...).
		Where("?TableAlias.id = ?", id.String()).
		Where("?TableAlias.status = ?", from).
		Where("?TableAlias.deleted_at IS NULL").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rows == 0 {
		current, gerr := a.GetByIdentifierTx(ctx, tx, id.String())
		if gerr != nil {
			return nil, gerr
		}
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"id":     id.String(),
			"from":   string(current.Status),
			"wanted": string(from),
			"to":     string(to),
		})
	}

	return update.record, nil
}

func (a *accounts) SetPasswordReset(ctx context.Context, id uuid.UUID, secretHash string, expiry time.Time) error {
	return a.SetPasswordResetTx(ctx, a.db, id, secretHash, expiry)
}

func (a *accounts) SetPasswordResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID, secretHash string, expiry time.Time) error {
	res, err := a.Repository.RawTx(ctx, tx, SetPasswordResetSQL, secretHash, expiry, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *accounts) ResetCredential(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ResetCredentialTx(ctx, a.db, id, passwordHash)
}

func (a *accounts) ResetCredentialTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, ResetCredentialSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

type statusUpdate struct {
	record  *Account
	columns []string
}

// StatusUpdateOption stamps audit fields on the record persisted by a
// status transition.
type StatusUpdateOption func(*statusUpdate)

// WithApprovalStamp records who approved the registration and when. An
// approved account is usable, so the stamp also switches it active.
func WithApprovalStamp(by uuid.UUID, at time.Time) StatusUpdateOption {
	return func(s *statusUpdate) {
		s.record.ApprovedBy = &by
		s.record.ApprovedAt = &at
		s.record.IsActive = true
		s.columns = append(s.columns, "approved_by", "approved_at", "is_active")
	}
}

// WithRejectionStamp records who rejected the registration, when, and why,
// and deactivates the account alongside the status change.
func WithRejectionStamp(by uuid.UUID, at time.Time, reason string) StatusUpdateOption {
	return func(s *statusUpdate) {
		s.record.RejectedBy = &by
		s.record.RejectedAt = &at
		s.record.RejectionReason = reason
		s.record.IsActive = false
		s.columns = append(s.columns, "rejected_by", "rejected_at", "rejection_reason", "is_active")
	}
}

// WithRejectionCleared removes the rejection audit trail when a rejected
// registration re-enters the queue, restoring the fresh-registration
// active flag.
func WithRejectionCleared() StatusUpdateOption {
	return func(s *statusUpdate) {
		s.record.RejectedBy = nil
		s.record.RejectedAt = nil
		s.record.RejectionReason = ""
		s.record.IsActive = true
		s.columns = append(s.columns, "rejected_by", "rejected_at", "rejection_reason", "is_active")
	}
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleStudent
	}

	record.EnsureStatus()
	record.Email = normalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type identifierOption struct {
	column string
	value  string
}

func resolveAccountIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 2)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  normalizeEmail(trimmed),
		})
	}

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
