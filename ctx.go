package identity

import (
	"context"

	"github.com/goliatone/go-router"
)

var accountCtxKey = &contextKey{"account"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithContext sets the Account in the given context
func WithContext(r context.Context, account *Account) context.Context {
	return context.WithValue(r, accountCtxKey, account)
}

// FromContext finds the account from the context.
func FromContext(ctx context.Context) (*Account, bool) {
	raw, ok := ctx.Value(accountCtxKey).(*Account)
	return raw, ok
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}

// GetRouterClaims extracts the AuthClaims from the router context
func GetRouterClaims(ctx router.Context, key string) (AuthClaims, bool) {
	if key == "" {
		key = "user" // Default key used by JWT middleware
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(AuthClaims)
	return claims, ok
}

// actorClaims is the minimal shape shared by this package's claims and the
// claims the auth gate stores in request locals.
type actorClaims interface {
	AccountID() string
	Role() string
}

// ActorFromRouterClaims builds the ActorRef for lifecycle transitions from
// the claims the auth gate stored in the request.
func ActorFromRouterClaims(ctx router.Context, key string) (ActorRef, bool) {
	if key == "" {
		key = "user"
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return ActorRef{Type: "unknown"}, false
	}
	claims, ok := raw.(actorClaims)
	if !ok {
		return ActorRef{Type: "unknown"}, false
	}
	return ActorRef{
		ID:   claims.AccountID(),
		Type: "user",
		Role: AccountRole(claims.Role()),
	}, true
}
