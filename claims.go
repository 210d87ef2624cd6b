package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind discriminates access from refresh tokens via the typ claim.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// AuthClaims represents structured JWT claims with role checking
type AuthClaims interface {
	Subject() string
	AccountID() string
	Role() string
	Email() string
	Kind() TokenKind
	HasRole(role string) bool
	IsAtLeast(minRole string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims. Access tokens
// carry uid, role, and email; refresh tokens carry uid and typ only.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID          string    `json:"uid,omitempty"`
	AccountRole  string    `json:"role,omitempty"`
	AccountEmail string    `json:"email,omitempty"`
	TokenType    TokenKind `json:"typ,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// AccountID returns the account ID
func (c *JWTClaims) AccountID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the account role
func (c *JWTClaims) Role() string {
	return c.AccountRole
}

// Email returns the account email
func (c *JWTClaims) Email() string {
	return c.AccountEmail
}

// Kind returns the token kind, defaulting to access for legacy tokens
// minted before the typ claim existed.
func (c *JWTClaims) Kind() TokenKind {
	if c.TokenType == "" {
		return TokenKindAccess
	}
	return c.TokenType
}

// HasRole checks if the account has a specific role
func (c *JWTClaims) HasRole(role string) bool {
	return c.AccountRole == role
}

// IsAtLeast checks if the account's role is at least the minimum required role
func (c *JWTClaims) IsAtLeast(minRole string) bool {
	return AccountRole(c.AccountRole).IsAtLeast(AccountRole(minRole))
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
