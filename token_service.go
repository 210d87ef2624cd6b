package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenPair is the result of a successful login: a short-lived access token
// and a longer-lived refresh token signed with distinct secrets.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TokenService mints and validates the two token kinds. Issuance and
// validation are pure computations; no server-side token state is kept.
type TokenService interface {
	TokenValidator
	IssuePair(identity Identity) (*TokenPair, error)
	IssueAccess(identity Identity) (string, error)
	ValidateRefresh(tokenString string) (AuthClaims, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
}

// NewTokenService creates a new TokenService instance from config. The
// access and refresh secrets must differ so leaking one does not compromise
// the other.
func NewTokenService(cfg Config, logger Logger) TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		accessKey:  []byte(cfg.GetAccessSigningKey()),
		refreshKey: []byte(cfg.GetRefreshSigningKey()),
		accessTTL:  cfg.GetAccessTokenTTL(),
		refreshTTL: cfg.GetRefreshTokenTTL(),
		issuer:     cfg.GetIssuer(),
		audience:   cfg.GetAudience(),
		logger:     logger,
	}
}

// IssuePair mints both tokens for the identity. Called exactly once per
// successful login.
func (ts *TokenServiceImpl) IssuePair(identity Identity) (*TokenPair, error) {
	access, err := ts.IssueAccess(identity)
	if err != nil {
		return nil, err
	}

	refresh, err := ts.issueRefresh(identity)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(ts.accessTTL.Seconds()),
	}, nil
}

// IssueAccess mints an access token carrying {accountId, role, email}.
func (ts *TokenServiceImpl) IssueAccess(identity Identity) (string, error) {
	now := time.Now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  ts.cloneAudience(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.accessTTL)),
		},
		UID:          identity.ID(),
		AccountRole:  identity.Role(),
		AccountEmail: identity.Email(),
		TokenType:    TokenKindAccess,
	}

	ensureTokenID(&claims.RegisteredClaims)

	return ts.signClaims(claims, ts.accessKey)
}

func (ts *TokenServiceImpl) issueRefresh(identity Identity) (string, error) {
	now := time.Now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  ts.cloneAudience(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.refreshTTL)),
		},
		UID:       identity.ID(),
		TokenType: TokenKindRefresh,
	}

	ensureTokenID(&claims.RegisteredClaims)

	return ts.signClaims(claims, ts.refreshKey)
}

func (ts *TokenServiceImpl) signClaims(claims *JWTClaims, key []byte) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates an access token, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	return ts.validate(tokenString, ts.accessKey, TokenKindAccess)
}

// ValidateRefresh parses and validates a refresh token, returning structured claims
func (ts *TokenServiceImpl) ValidateRefresh(tokenString string) (AuthClaims, error) {
	return ts.validate(tokenString, ts.refreshKey, TokenKindRefresh)
}

func (ts *TokenServiceImpl) validate(tokenString string, key []byte, kind TokenKind) (AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService validate could not decode or validate claims")
		return nil, ErrUnableToDecodeSession
	}

	if claims.Kind() != kind {
		return nil, ErrInvalidTokenType
	}

	return claims, nil
}

func (ts *TokenServiceImpl) cloneAudience() jwt.ClaimStrings {
	if len(ts.audience) == 0 {
		return nil
	}
	aud := make(jwt.ClaimStrings, len(ts.audience))
	copy(aud, ts.audience)
	return aud
}

// ensureTokenID stamps a unique jti so individual tokens are identifiable in
// audit trails.
func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
