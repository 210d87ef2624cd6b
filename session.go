package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var _ Session = &SessionObject{}

// SessionObject is the request-time view of an authenticated identity,
// derived from validated access-token claims.
type SessionObject struct {
	AccountID      string         `json:"account_id,omitempty"`
	Audience       []string       `json:"audience,omitempty"`
	Issuer         string         `json:"issuer,omitempty"`
	IssuedAt       *time.Time     `json:"issued_at,omitempty"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

func (s *SessionObject) GetAccountID() string {
	return s.AccountID
}

func (s *SessionObject) GetAccountUUID() (uuid.UUID, error) {
	return uuid.Parse(s.AccountID)
}

func (s *SessionObject) GetAudience() []string {
	return s.Audience
}

func (s *SessionObject) GetIssuer() string {
	return s.Issuer
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetData() map[string]any {
	return s.Data
}

// HasRole checks if the session's account has a specific role
func (s *SessionObject) HasRole(role string) bool {
	return string(s.getGlobalRole()) == role
}

// IsAtLeast checks if the session's role is at least the minimum required role
func (s *SessionObject) IsAtLeast(minRole AccountRole) bool {
	return s.getGlobalRole().IsAtLeast(minRole)
}

// getGlobalRole retrieves the role from session data with fallback to student
func (s *SessionObject) getGlobalRole() AccountRole {
	if s.Data != nil {
		if roleData, exists := s.Data["role"]; exists {
			if roleStr, ok := roleData.(string); ok {
				if role, valid := ParseRole(roleStr); valid {
					return role
				}
			}
		}
	}
	return RoleStudent
}

// TODO: enable only in development!
func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"account=%s aud=%v iss=%s iat=%s data=%v",
		s.AccountID,
		s.Audience,
		s.Issuer,
		issuedAt,
		s.Data,
	)
}

// sessionFromAuthClaims creates a SessionObject from validated claims
func sessionFromAuthClaims(claims AuthClaims) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrUnableToParseData
	}

	data := make(map[string]any)
	data["role"] = claims.Role()
	if claims.Email() != "" {
		data["email"] = claims.Email()
	}

	var audience []string
	if jwtClaims, ok := claims.(*JWTClaims); ok {
		audience = append(audience, jwtClaims.RegisteredClaims.Audience...)
	}

	issuedAt := claims.IssuedAt()
	expiresAt := claims.Expires()

	return &SessionObject{
		AccountID:      claims.AccountID(),
		Audience:       audience,
		Issuer:         getIssuerFromClaims(claims),
		Data:           data,
		IssuedAt:       &issuedAt,
		ExpirationDate: &expiresAt,
	}, nil
}

// sessionFromClaims creates a SessionObject from raw JWT map claims, as
// stored in the request locals by the auth gate.
func sessionFromClaims(claims jwt.MapClaims) (*SessionObject, error) {
	session := &SessionObject{
		Data: make(map[string]any),
	}

	if sub, err := claims.GetSubject(); err == nil {
		session.AccountID = sub
	}

	if uid, ok := claims["uid"].(string); ok && uid != "" {
		session.AccountID = uid
	}

	if session.AccountID == "" {
		return nil, ErrUnableToMapClaims
	}

	if iss, err := claims.GetIssuer(); err == nil {
		session.Issuer = iss
	}

	if aud, err := claims.GetAudience(); err == nil {
		session.Audience = append(session.Audience, aud...)
	}

	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		session.IssuedAt = &iat.Time
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		session.ExpirationDate = &exp.Time
	}

	if role, ok := claims["role"].(string); ok && role != "" {
		session.Data["role"] = role
	}

	if email, ok := claims["email"].(string); ok && email != "" {
		session.Data["email"] = email
	}

	return session, nil
}

// getIssuerFromClaims extracts the issuer from AuthClaims
func getIssuerFromClaims(claims AuthClaims) string {
	if jwtClaims, ok := claims.(*JWTClaims); ok {
		if jwtClaims.RegisteredClaims.Issuer != "" {
			return jwtClaims.RegisteredClaims.Issuer
		}
	}
	return claims.Subject()
}
