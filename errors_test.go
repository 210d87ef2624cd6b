package identity_test

import (
	"errors"
	"testing"

	identity "github.com/campuskit/go-identity"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestIsTokenExpiredError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "Structured token expired error",
			err:      identity.ErrTokenExpired,
			expected: true,
		},
		{
			name:     "Legacy token expired error (string match)",
			err:      errors.New("some wrapper: token is expired"),
			expected: true,
		},
		{
			name:     "Different structured error",
			err:      identity.ErrIdentityNotFound,
			expected: false,
		},
		{
			name:     "Different legacy error",
			err:      errors.New("invalid token"),
			expected: false,
		},
		{
			name:     "Nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := identity.IsTokenExpiredError(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestIsMalformedError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "Structured malformed error",
			err:      identity.ErrTokenMalformed,
			expected: true,
		},
		{
			name:     "Legacy missing JWT error (string match)",
			err:      errors.New("missing or malformed JWT"),
			expected: true,
		},
		{
			name:     "Different structured error",
			err:      identity.ErrTokenExpired,
			expected: false,
		},
		{
			name:     "Different legacy error",
			err:      errors.New("invalid token"),
			expected: false,
		},
		{
			name:     "Nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := identity.IsMalformedError(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestIsAccountLockedError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "Structured locked error",
			err:      identity.ErrAccountLocked,
			expected: true,
		},
		{
			name:     "Locked error with metadata",
			err:      identity.ErrAccountLocked.WithMetadata(map[string]any{"locked_until": "soon"}),
			expected: true,
		},
		{
			name:     "Different structured error",
			err:      identity.ErrMismatchedHashAndPassword,
			expected: false,
		},
		{
			name:     "Plain error",
			err:      errors.New("account locked"),
			expected: false,
		},
		{
			name:     "Nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := identity.IsAccountLockedError(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestStructuredErrorProperties(t *testing.T) {
	t.Run("ErrMismatchedHashAndPassword", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, identity.ErrMismatchedHashAndPassword.Category)
		assert.Equal(t, identity.TextCodeInvalidCredentials, identity.ErrMismatchedHashAndPassword.TextCode)
	})

	t.Run("ErrAccountLocked", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, identity.ErrAccountLocked.Category)
		assert.Equal(t, identity.TextCodeAccountLocked, identity.ErrAccountLocked.TextCode)
	})

	t.Run("ErrRegistrationPending", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, identity.ErrRegistrationPending.Category)
		assert.Equal(t, identity.TextCodeRegistrationPending, identity.ErrRegistrationPending.TextCode)
	})

	t.Run("ErrRegistrationRejected", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, identity.ErrRegistrationRejected.Category)
		assert.Equal(t, identity.TextCodeRegistrationRejected, identity.ErrRegistrationRejected.TextCode)
	})

	t.Run("ErrDuplicateEmail", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryConflict, identity.ErrDuplicateEmail.Category)
		assert.Equal(t, identity.TextCodeDuplicateEmail, identity.ErrDuplicateEmail.TextCode)
	})

	t.Run("ErrInvalidResetToken", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryValidation, identity.ErrInvalidResetToken.Category)
		assert.Equal(t, identity.TextCodeInvalidResetToken, identity.ErrInvalidResetToken.TextCode)
	})

	t.Run("ErrInvalidTransition", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryConflict, identity.ErrInvalidTransition.Category)
		assert.Equal(t, identity.TextCodeInvalidTransition, identity.ErrInvalidTransition.TextCode)
	})

	t.Run("ErrApproverNotAdmin", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuthz, identity.ErrApproverNotAdmin.Category)
		assert.Equal(t, identity.TextCodeApproverNotAdmin, identity.ErrApproverNotAdmin.TextCode)
	})
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    identity.AccountRole
		wantOK  bool
	}{
		{name: "student", input: "student", want: identity.RoleStudent, wantOK: true},
		{name: "faculty", input: "faculty", want: identity.RoleFaculty, wantOK: true},
		{name: "admin", input: "admin", want: identity.RoleAdmin, wantOK: true},
		{name: "unknown role", input: "superuser", wantOK: false},
		{name: "empty string", input: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, ok := identity.ParseRole(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, role)
			}
		})
	}
}

func TestRoleIsAtLeast(t *testing.T) {
	assert.True(t, identity.RoleAdmin.IsAtLeast(identity.RoleStudent))
	assert.True(t, identity.RoleAdmin.IsAtLeast(identity.RoleAdmin))
	assert.True(t, identity.RoleFaculty.IsAtLeast(identity.RoleStudent))
	assert.False(t, identity.RoleStudent.IsAtLeast(identity.RoleFaculty))
	assert.False(t, identity.AccountRole("ghost").IsAtLeast(identity.RoleStudent))
}

func TestGetAllRoles(t *testing.T) {
	roles := identity.GetAllRoles()
	assert.Equal(t, []identity.AccountRole{
		identity.RoleStudent,
		identity.RoleFaculty,
		identity.RoleAdmin,
	}, roles)
}
