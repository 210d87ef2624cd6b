package identity_test

import (
	"context"
	"testing"
	"time"

	identity "github.com/campuskit/go-identity"
	"github.com/campuskit/go-identity/middleware/jwtware"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPAuthenticator(t *testing.T) {
	mockAuth := new(MockAuthenticator)
	mockConfig := new(MockConfig)

	httpAuth, err := identity.NewHTTPAuthenticator(mockAuth, mockConfig)

	require.NoError(t, err)
	assert.NotNil(t, httpAuth)
}

func TestRouteAuthenticator_Login(t *testing.T) {
	mockAuth := new(MockAuthenticator)
	mockConfig := new(MockConfig)
	mockCtx := new(MockContext)

	mockConfig.On("GetRefreshTokenTTL").Return(7 * 24 * time.Hour)

	pair := &identity.TokenPair{
		AccessToken:  "valid.access.token",
		RefreshToken: "valid.refresh.token",
		ExpiresIn:    900,
	}
	ident := TestIdentity{id: "account-1", email: "user@university.edu", role: "student"}

	mockAuth.On("Login", mock.Anything, "user@university.edu", "password123").
		Return(pair, ident, nil)

	mockCtx.On("Context").Return(context.Background())
	mockCtx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == identity.RefreshCookieName &&
			c.Value == "valid.refresh.token" &&
			c.HTTPOnly &&
			c.Expires.After(time.Now())
	})).Return()

	httpAuth, err := identity.NewHTTPAuthenticator(mockAuth, mockConfig)
	require.NoError(t, err)

	payload := MockLoginPayload{
		Identifier: "user@university.edu",
		Password:   "password123",
	}

	gotPair, gotIdent, err := httpAuth.Login(mockCtx, payload)
	require.NoError(t, err)
	assert.Equal(t, pair, gotPair)
	assert.Equal(t, "account-1", gotIdent.ID())

	mockAuth.AssertExpectations(t)
	mockCtx.AssertExpectations(t)
}

func TestRouteAuthenticator_LoginError(t *testing.T) {
	mockAuth := new(MockAuthenticator)
	mockConfig := new(MockConfig)
	mockCtx := new(MockContext)

	mockAuth.On("Login", mock.Anything, "user@university.edu", "wrongpass").
		Return(nil, nil, identity.ErrMismatchedHashAndPassword)

	mockCtx.On("Context").Return(context.Background())

	httpAuth, err := identity.NewHTTPAuthenticator(mockAuth, mockConfig)
	require.NoError(t, err)

	payload := MockLoginPayload{
		Identifier: "user@university.edu",
		Password:   "wrongpass",
	}

	pair, ident, err := httpAuth.Login(mockCtx, payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, identity.ErrMismatchedHashAndPassword)
	assert.Nil(t, pair)
	assert.Nil(t, ident)

	// A failed login must never set the refresh cookie.
	mockCtx.AssertNotCalled(t, "Cookie", mock.Anything)
	mockAuth.AssertExpectations(t)
}

func TestRouteAuthenticator_Refresh(t *testing.T) {
	t.Run("Refresh token from cookie", func(t *testing.T) {
		mockAuth := new(MockAuthenticator)
		mockConfig := new(MockConfig)
		mockCtx := new(MockContext)

		mockAuth.On("Refresh", mock.Anything, "stored.refresh.token").
			Return("new.access.token", nil)

		mockCtx.On("Context").Return(context.Background())
		mockCtx.On("Cookies", identity.RefreshCookieName, "").Return("stored.refresh.token")

		httpAuth, err := identity.NewHTTPAuthenticator(mockAuth, mockConfig)
		require.NoError(t, err)

		token, err := httpAuth.Refresh(mockCtx, "")
		require.NoError(t, err)
		assert.Equal(t, "new.access.token", token)

		mockAuth.AssertExpectations(t)
		mockCtx.AssertExpectations(t)
	})

	t.Run("Fallback value when the cookie is absent", func(t *testing.T) {
		mockAuth := new(MockAuthenticator)
		mockConfig := new(MockConfig)
		mockCtx := new(MockContext)

		mockAuth.On("Refresh", mock.Anything, "body.refresh.token").
			Return("new.access.token", nil)

		mockCtx.On("Context").Return(context.Background())
		mockCtx.On("Cookies", identity.RefreshCookieName, "body.refresh.token").
			Return("body.refresh.token")

		httpAuth, err := identity.NewHTTPAuthenticator(mockAuth, mockConfig)
		require.NoError(t, err)

		token, err := httpAuth.Refresh(mockCtx, "body.refresh.token")
		require.NoError(t, err)
		assert.Equal(t, "new.access.token", token)
	})

	t.Run("No refresh token anywhere", func(t *testing.T) {
		mockAuth := new(MockAuthenticator)
		mockConfig := new(MockConfig)
		mockCtx := new(MockContext)

		mockCtx.On("Cookies", identity.RefreshCookieName, "").Return("")

		httpAuth, err := identity.NewHTTPAuthenticator(mockAuth, mockConfig)
		require.NoError(t, err)

		_, err = httpAuth.Refresh(mockCtx, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, identity.ErrInvalidTokenType)
		mockAuth.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
	})
}

func TestRouteAuthenticator_Logout(t *testing.T) {
	mockAuth := new(MockAuthenticator)
	mockConfig := new(MockConfig)
	mockCtx := new(MockContext)

	mockCtx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == identity.RefreshCookieName &&
			c.Value == "" &&
			c.HTTPOnly &&
			c.Expires.Before(time.Now())
	})).Return()

	httpAuth, err := identity.NewHTTPAuthenticator(mockAuth, mockConfig)
	require.NoError(t, err)

	httpAuth.Logout(mockCtx)

	mockCtx.AssertExpectations(t)
}

func TestRouteAuthenticator_ProtectedRoute(t *testing.T) {
	mockAuth := new(MockAuthenticator)
	mockConfig := newMockConfig()

	httpAuth, err := identity.NewHTTPAuthenticator(mockAuth, mockConfig)
	require.NoError(t, err)

	errorHandler := func(ctx router.Context, err error) error {
		return ctx.Status(router.StatusUnauthorized).SendString("Unauthorized")
	}

	middleware := httpAuth.ProtectedRoute(mockConfig, errorHandler)

	middlewareFunc := router.ToMiddleware(func(c router.Context) error { return nil })
	assert.IsType(t, middlewareFunc, middleware)
}

func TestRouteAuthenticator_MakeClientRouteAuthErrorHandler(t *testing.T) {
	mockAuth := new(MockAuthenticator)
	mockConfig := new(MockConfig)

	httpAuth, err := identity.NewHTTPAuthenticator(mockAuth, mockConfig)
	require.NoError(t, err)

	t.Run("Optional auth proceeds on malformed token", func(t *testing.T) {
		mockCtx := new(MockContext)

		handler := httpAuth.MakeClientRouteAuthErrorHandler(true)

		err := handler(mockCtx, jwtware.ErrJWTMissingOrMalformed)
		require.NoError(t, err)
		assert.True(t, mockCtx.NextCalled, "next handler should run for optional routes")
	})

	t.Run("Required auth surfaces expired tokens", func(t *testing.T) {
		mockCtx := new(MockContext)

		var handled error
		httpAuth.ErrorHandler = func(c router.Context, err error) error {
			handled = err
			return nil
		}

		handler := httpAuth.MakeClientRouteAuthErrorHandler(false)

		err := handler(mockCtx, identity.ErrTokenExpired)
		require.NoError(t, err)
		assert.ErrorIs(t, handled, identity.ErrTokenExpired)
		assert.False(t, mockCtx.NextCalled)
	})

	t.Run("Required auth surfaces malformed tokens", func(t *testing.T) {
		mockCtx := new(MockContext)

		var handled error
		httpAuth.ErrorHandler = func(c router.Context, err error) error {
			handled = err
			return nil
		}

		handler := httpAuth.MakeClientRouteAuthErrorHandler(false)

		err := handler(mockCtx, jwtware.ErrJWTMissingOrMalformed)
		require.NoError(t, err)
		assert.ErrorIs(t, handled, identity.ErrTokenMalformed)
	})
}
