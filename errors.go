package identity

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeInvalidCredentials is shared by unknown-email and wrong-password
	// failures so clients cannot enumerate accounts.
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	// TextCodeAccountLocked signals a lockout window is in effect.
	TextCodeAccountLocked = "ACCOUNT_LOCKED"
	// TextCodeRegistrationPending signals the account awaits approval.
	TextCodeRegistrationPending = "REGISTRATION_PENDING"
	// TextCodeRegistrationRejected signals the registration was rejected.
	TextCodeRegistrationRejected = "REGISTRATION_REJECTED"
	// TextCodeAccountInactive signals an approved but deactivated account.
	TextCodeAccountInactive = "ACCOUNT_INACTIVE"
	// TextCodeDuplicateEmail signals a registration conflict.
	TextCodeDuplicateEmail = "DUPLICATE_EMAIL"
	// TextCodeTokenExpired signals a token past its expiry.
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenMalformed signals an unparseable or tampered token.
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
	// TextCodeInvalidTokenType signals a token presented to the wrong flow.
	TextCodeInvalidTokenType = "INVALID_TOKEN_TYPE"
	// TextCodeInvalidResetToken covers consumed, expired, and unknown reset secrets.
	TextCodeInvalidResetToken = "INVALID_RESET_TOKEN"
	// TextCodeInvalidTransition signals a lifecycle transition from the wrong state.
	TextCodeInvalidTransition = "INVALID_STATE_TRANSITION"
	// TextCodeApproverNotAdmin signals the transition actor lacks the admin role.
	TextCodeApproverNotAdmin = "APPROVER_NOT_ADMIN"
)

// ErrMismatchedHashAndPassword is the generic invalid-credentials error.
// Unknown email and wrong password deliberately look identical.
var ErrMismatchedHashAndPassword = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountLocked is returned while a lockout window is in effect. The
// credential is not checked in this state.
var ErrAccountLocked = goerrors.New("account temporarily locked after repeated failed attempts", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountLocked).
	WithCode(http.StatusLocked)

// ErrRegistrationPending is returned when a pending account attempts to log in.
var ErrRegistrationPending = goerrors.New("registration is pending approval", goerrors.CategoryAuth).
	WithTextCode(TextCodeRegistrationPending).
	WithCode(goerrors.CodeUnauthorized)

// ErrRegistrationRejected is returned when a rejected account attempts to log in.
var ErrRegistrationRejected = goerrors.New("registration was rejected", goerrors.CategoryAuth).
	WithTextCode(TextCodeRegistrationRejected).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountInactive is returned when an approved account has been deactivated.
var ErrAccountInactive = goerrors.New("account is inactive", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountInactive).
	WithCode(goerrors.CodeUnauthorized)

// ErrDuplicateEmail is a conflict, distinct from validation errors, so
// clients can tell "bad input" from "already exists".
var ErrDuplicateEmail = goerrors.New("an account with this email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrTokenExpired is returned for tokens past their expiry.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that fail parsing or signature
// checks. Parsing internals are never exposed to clients.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidTokenType is returned when a refresh token is presented where an
// access token is expected, or vice versa.
var ErrInvalidTokenType = goerrors.New("token type not valid for this operation", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidTokenType).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidResetToken covers unknown, consumed, and expired reset secrets.
var ErrInvalidResetToken = goerrors.New("invalid or expired password reset token", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidResetToken).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidTransition is returned when a requested status change is not
// allowed from the account's current state.
var ErrInvalidTransition = goerrors.New("invalid account state transition", goerrors.CategoryConflict).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrApproverNotAdmin is returned when a non-admin actor attempts a
// registration transition.
var ErrApproverNotAdmin = goerrors.New("registration transitions require an admin actor", goerrors.CategoryAuthz).
	WithTextCode(TextCodeApproverNotAdmin).
	WithCode(http.StatusForbidden)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found")

// ErrUnableToFindSession is the error when our request carries no token
var ErrUnableToFindSession = errors.New("unable to find session")

// ErrUnableToDecodeSession unable to decode JWT from the request
var ErrUnableToDecodeSession = errors.New("unable to decode session")

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = errors.New("unable to map claims")

// ErrUnableToParseData parse error
var ErrUnableToParseData = errors.New("unable to parse data")

// ErrNoEmptyString is returned when hashing an empty secret
var ErrNoEmptyString = errors.New("password must not be empty")

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsAccountLockedError will check for lockout rejections
func IsAccountLockedError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == TextCodeAccountLocked
	}
	return false
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
