package identity_test

import (
	"context"
	"database/sql"
	"testing"

	identity "github.com/campuskit/go-identity"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

func TestRegisterAccountHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("Successful registration", func(t *testing.T) {
		repo := &MockRepositoryManager{}
		accounts := &MockAccounts{}

		saved := &identity.Account{
			ID:       uuid.New(),
			Email:    "newton@university.edu",
			Role:     identity.RoleStudent,
			Status:   identity.StatusPending,
			IsActive: true,
			Attributes: map[string]any{
				"department": "physics",
			},
		}

		var stored *identity.Account
		accounts.On("RegisterTx", mock.Anything, mock.Anything, mock.MatchedBy(func(a *identity.Account) bool {
			stored = a
			return a.Email == "newton@university.edu" &&
				a.Role == identity.RoleStudent &&
				a.Status == identity.StatusPending &&
				a.IsActive
		})).Return(saved, nil).Once()

		repo.On("Accounts").Return(accounts).Once()
		repo.On("RunInTx", mock.Anything, (*sql.TxOptions)(nil), mock.Anything).
			Return(nil).
			Run(func(args mock.Arguments) {
				fn := args.Get(2).(func(context.Context, bun.Tx) error)
				var tx bun.Tx
				require.NoError(t, fn(args.Get(0).(context.Context), tx))
			}).Once()

		var created *identity.Account
		handler := identity.NewRegisterAccountHandler(repo)
		err := handler.Execute(ctx, identity.RegisterAccountMessage{
			FirstName: "Isaac",
			LastName:  "Newton",
			Email:     "newton@university.edu",
			Phone:     "+14155552671",
			Role:      "student",
			Password:  "Gravity1687",
			Attributes: map[string]any{
				"department": "physics",
			},
			OnResponse: func(account *identity.Account) {
				created = account
			},
		})

		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, "newton@university.edu", created.Email)
		assert.Equal(t, identity.StatusPending, created.Status)
		assert.Equal(t, "physics", created.Attributes["department"])

		require.NotNil(t, stored)
		assert.NotEqual(t, "Gravity1687", stored.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("Gravity1687")))

		repo.AssertExpectations(t)
		accounts.AssertExpectations(t)
	})

	t.Run("Unknown role is rejected", func(t *testing.T) {
		repo := &MockRepositoryManager{}
		handler := identity.NewRegisterAccountHandler(repo)

		err := handler.Execute(ctx, identity.RegisterAccountMessage{
			Email:    "newton@university.edu",
			Role:     "superuser",
			Password: "Gravity1687",
		})

		require.Error(t, err)
		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, "INVALID_ROLE", richErr.TextCode)
		repo.AssertNotCalled(t, "RunInTx", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Weak password is rejected before the transaction", func(t *testing.T) {
		repo := &MockRepositoryManager{}
		handler := identity.NewRegisterAccountHandler(repo)

		err := handler.Execute(ctx, identity.RegisterAccountMessage{
			Email:    "newton@university.edu",
			Role:     "student",
			Password: "weak",
		})

		require.Error(t, err)
		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, "WEAK_PASSWORD", richErr.TextCode)
		repo.AssertNotCalled(t, "RunInTx", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Invalid phone number is rejected", func(t *testing.T) {
		repo := &MockRepositoryManager{}
		handler := identity.NewRegisterAccountHandler(repo)

		err := handler.Execute(ctx, identity.RegisterAccountMessage{
			Email:    "newton@university.edu",
			Phone:    "not-a-phone",
			Role:     "student",
			Password: "Gravity1687",
		})

		require.Error(t, err)
		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, "INVALID_PHONE", richErr.TextCode)
		repo.AssertNotCalled(t, "RunInTx", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Duplicate email surfaces a conflict", func(t *testing.T) {
		repo := &MockRepositoryManager{}
		accounts := &MockAccounts{}

		accounts.On("RegisterTx", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, identity.ErrDuplicateEmail).Once()

		repo.On("Accounts").Return(accounts).Once()
		repo.On("RunInTx", mock.Anything, (*sql.TxOptions)(nil), mock.Anything).
			Return(identity.ErrDuplicateEmail).
			Run(func(args mock.Arguments) {
				fn := args.Get(2).(func(context.Context, bun.Tx) error)
				var tx bun.Tx
				assert.ErrorIs(t, fn(args.Get(0).(context.Context), tx), identity.ErrDuplicateEmail)
			}).Once()

		handler := identity.NewRegisterAccountHandler(repo)
		err := handler.Execute(ctx, identity.RegisterAccountMessage{
			Email:    "taken@university.edu",
			Role:     "student",
			Password: "Gravity1687",
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, identity.ErrDuplicateEmail)

		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, identity.TextCodeDuplicateEmail, richErr.TextCode)

		repo.AssertExpectations(t)
		accounts.AssertExpectations(t)
	})

	t.Run("Cancelled context short-circuits", func(t *testing.T) {
		repo := &MockRepositoryManager{}
		handler := identity.NewRegisterAccountHandler(repo)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := handler.Execute(cancelled, identity.RegisterAccountMessage{
			Email:    "newton@university.edu",
			Role:     "student",
			Password: "Gravity1687",
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "context cancelled")
		repo.AssertNotCalled(t, "RunInTx", mock.Anything, mock.Anything, mock.Anything)
	})
}
