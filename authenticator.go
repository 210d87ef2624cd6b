package identity

import (
	"context"
	"reflect"
	"time"
)

// Auther implements Authenticator backed by an IdentityProvider and a
// TokenService issuing access/refresh pairs.
type Auther struct {
	provider       IdentityProvider
	logger         Logger
	tokenService   TokenService
	tokenValidator TokenValidator
	activitySink   ActivitySink
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, opts Config) *Auther {
	return &Auther{
		provider:     provider,
		logger:       defLogger{},
		tokenService: NewTokenService(opts, defLogger{}),
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTokenValidator sets a custom token validator for externally issued tokens.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.tokenValidator = validator
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the credential and returns a fresh access/refresh pair
// along with the verified identity.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*TokenPair, Identity, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Error("Login verify identity error: %v", err)
		s.emitAuthEvent(ctx, loginFailureEvent(err), ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, nil, err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      ErrIdentityNotFound.Error(),
		})
		return nil, nil, ErrIdentityNotFound
	}

	pair, err := s.tokenService.IssuePair(identity)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromIdentity(identity), identity.ID(), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, s.actorFromIdentity(identity), identity.ID(), map[string]any{
		"identifier": identifier,
	})

	return pair, identity, nil
}

// Refresh validates a refresh token, re-checks the account against the
// store, and mints a new access token. The refresh token is returned to the
// caller untouched; it stays valid until its own expiry.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokenService.ValidateRefresh(refreshToken)
	if err != nil {
		s.logger.Error("Refresh token validation failed: %v", err)
		return "", err
	}

	// The account may have been rejected, deactivated, or locked since the
	// refresh token was minted; the store gets the final say.
	identity, err := s.provider.FindIdentityByIdentifier(ctx, claims.Subject())
	if err != nil {
		s.logger.Warn("Refresh blocked by account state: %v", err)
		return "", err
	}

	access, err := s.tokenService.IssueAccess(identity)
	if err != nil {
		return "", err
	}

	s.emitAuthEvent(ctx, ActivityEventTokenRefreshed, s.actorFromIdentity(identity), identity.ID(), nil)

	return access, nil
}

func (s *Auther) IdentityFromSession(ctx context.Context, session Session) (Identity, error) {
	identity, err := s.provider.FindIdentityByIdentifier(ctx, session.GetAccountID())
	if err != nil {
		s.logger.Error("IdentityFromSession find identity by identifier: %v", err)
		return nil, err
	}

	return identity, nil
}

func (s Auther) SessionFromToken(raw string) (Session, error) {
	validator := s.tokenValidator
	if validator == nil {
		validator = s.tokenService
	}

	claims, err := validator.Validate(raw)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed: %v", err)
		return nil, err
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		s.logger.Error("SessionFromToken failed to create session from claims: %v", err)
		return nil, err
	}

	return session, nil
}

var _ Authenticator = (*Auther)(nil)

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, accountID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		AccountID: accountID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func (s *Auther) actorFromIdentity(identity Identity) ActorRef {
	if identity == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   identity.ID(),
		Type: "user",
		Role: AccountRole(identity.Role()),
	}
}

// loginFailureEvent distinguishes lockout rejections from plain credential
// failures in the audit trail.
func loginFailureEvent(err error) ActivityEventType {
	if IsAccountLockedError(err) {
		return ActivityEventLoginLocked
	}
	return ActivityEventLoginFailure
}
