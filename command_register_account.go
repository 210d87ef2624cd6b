package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

type RegisterAccountMessage struct {
	FirstName  string         `json:"first_name"`
	LastName   string         `json:"last_name"`
	Email      string         `json:"email"`
	Phone      string         `json:"phone"`
	Role       string         `json:"role"`
	Password   string         `json:"password"`
	Attributes map[string]any `json:"attributes"`
	UseHashid  bool
	OnResponse func(account *Account)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

type RegisterAccountHandler struct {
	repo RepositoryManager
}

func NewRegisterAccountHandler(repo RepositoryManager) *RegisterAccountHandler {
	return &RegisterAccountHandler{repo: repo}
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	account := &Account{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	role, ok := ParseRole(event.Role)
	if !ok {
		return goerrors.New("unknown or invalid role", goerrors.CategoryValidation).
			WithTextCode("INVALID_ROLE").
			WithMetadata(map[string]any{"role": event.Role})
	}

	if err := ValidatePasswordStrength(event.Password); err != nil {
		return err
	}

	if event.Phone != "" {
		if err := validatePhone(event.Phone); err != nil {
			return err
		}
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		account.PasswordHash = hash
		account.Email = event.Email
		account.Phone = event.Phone
		account.FirstName = event.FirstName
		account.LastName = event.LastName
		account.Role = role
		account.Status = StatusPending
		account.IsActive = true
		account.Attributes = event.Attributes
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				account.ID = id
			}
		}

		if account, err = h.repo.Accounts().RegisterTx(ctx, tx, account); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}

// validatePhone expects E.164 formatted numbers so no region guessing is
// needed.
func validatePhone(phone string) error {
	num, err := phonenumbers.Parse(phone, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return goerrors.New("phone number is not valid", goerrors.CategoryValidation).
			WithTextCode("INVALID_PHONE").
			WithMetadata(map[string]any{"phone": phone})
	}
	return nil
}
