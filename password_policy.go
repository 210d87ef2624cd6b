package identity

import (
	"unicode"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// MinPasswordLength is the minimum accepted secret length
	MinPasswordLength = 8
	// DefaultPasswordHashCost is the bcrypt work factor used outside race builds
	DefaultPasswordHashCost = 12
)

// ValidatePasswordStrength enforces the minimum-strength policy before a
// secret is ever hashed: length plus upper/lower/digit character classes.
// Rejection is a validation error, not a verifier failure.
func ValidatePasswordStrength(password string) error {
	issues := passwordPolicyIssues(password)
	if len(issues) == 0 {
		return nil
	}

	return goerrors.New("password does not meet the strength policy", goerrors.CategoryValidation).
		WithTextCode("WEAK_PASSWORD").
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{
			"field":  "password",
			"issues": issues,
		})
}

// IsStrongPassword reports whether the secret satisfies the policy.
func IsStrongPassword(password string) bool {
	return len(passwordPolicyIssues(password)) == 0
}

func passwordPolicyIssues(password string) []string {
	var issues []string

	if len(password) < MinPasswordLength {
		issues = append(issues, "must be at least 8 characters long")
	}

	var hasUpper, hasLower, hasDigit bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDigit = true
		}
	}

	if !hasUpper {
		issues = append(issues, "must contain at least one uppercase letter")
	}

	if !hasLower {
		issues = append(issues, "must contain at least one lowercase letter")
	}

	if !hasDigit {
		issues = append(issues, "must contain at least one number")
	}

	return issues
}
