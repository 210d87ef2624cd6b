package identity

import (
	"time"

	"github.com/campuskit/go-identity/middleware/jwtware"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RefreshCookieName is the cookie carrying the refresh token. The access
// token travels in the Authorization header and is never stored in a cookie.
const RefreshCookieName = "refresh_token"

type RouteAuthenticator struct {
	auth             Authenticator
	cfg              Config
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	a := &RouteAuthenticator{
		cfg:    cfg,
		auth:   auther,
		Logger: defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

// ProtectedRoute gates a route behind a valid access token.
func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return jwtware.New(jwtware.Config{
			SuccessHandler: hf,
			ErrorHandler:   errorHandler,
			SigningKey: jwtware.SigningKey{
				Key:    []byte(cfg.GetAccessSigningKey()),
				JWTAlg: cfg.GetSigningMethod(),
			},
			AuthScheme:  cfg.GetAuthScheme(),
			ContextKey:  cfg.GetContextKey(),
			TokenLookup: cfg.GetTokenLookup(),
		})
	}
}

// AdminRoute gates a route behind a valid access token carrying the admin
// role.
func (a *RouteAuthenticator) AdminRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return jwtware.New(jwtware.Config{
			SuccessHandler: hf,
			ErrorHandler:   errorHandler,
			SigningKey: jwtware.SigningKey{
				Key:    []byte(cfg.GetAccessSigningKey()),
				JWTAlg: cfg.GetSigningMethod(),
			},
			AuthScheme:   cfg.GetAuthScheme(),
			ContextKey:   cfg.GetContextKey(),
			TokenLookup:  cfg.GetTokenLookup(),
			RequiredRole: string(RoleAdmin),
		})
	}
}

// Login verifies the payload, stores the refresh token in an HTTP only
// cookie, and returns the pair for the JSON response body.
func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) (*TokenPair, Identity, error) {
	pair, identity, err := a.auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error: %v", err)
		return nil, nil, err
	}

	a.setRefreshCookie(ctx, pair.RefreshToken)
	return pair, identity, nil
}

// Refresh mints a new access token from the refresh token found in the
// request cookie or the given fallback value.
func (a *RouteAuthenticator) Refresh(ctx router.Context, fallback string) (string, error) {
	raw := ctx.Cookies(RefreshCookieName, fallback)
	if raw == "" {
		return "", ErrInvalidTokenType.WithMetadata(map[string]any{
			"reason": "no refresh token in request",
		})
	}

	return a.auth.Refresh(ctx.Context(), raw)
}

func (a *RouteAuthenticator) Logout(ctx router.Context) {
	a.cookieDel(ctx, RefreshCookieName)
}

// MakeClientRouteAuthErrorHandler normalizes gate failures into rich errors.
// With optional set, the request proceeds unauthenticated instead.
func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding: %s", richErr.Message)
			return ctx.Next()
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) setRefreshCookie(c router.Context, val string) {
	duration := a.cfg.GetRefreshTokenTTL()
	if duration <= 0 {
		duration = DefaultRefreshTokenTTL
	}

	c.Cookie(&router.Cookie{
		Name:     RefreshCookieName,
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	a.Logger.Info(
		"Authentication error text_code=%s path=%s: %s",
		richErr.TextCode,
		c.OriginalURL(),
		richErr.Message,
	)

	return respondWithError(c, richErr)
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Middleware error handler category=%s details=%s: %s",
		richErr.Category,
		print.MaybePrettyJSON(richErr.Metadata),
		richErr.Message,
	)

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return a.AuthErrorHandler(c, richErr)
	default:
		return respondWithError(c, richErr)
	}
}

// respondWithError renders a rich error as the JSON error envelope, using
// its embedded HTTP code when present.
func respondWithError(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	code := richErr.Code
	if code == 0 {
		code = errors.CodeInternal
	}

	body := map[string]any{
		"error": map[string]any{
			"message":   richErr.Message,
			"text_code": richErr.TextCode,
		},
	}

	if len(richErr.Metadata) > 0 {
		body["error"].(map[string]any)["metadata"] = richErr.Metadata
	}

	return c.JSON(code, body)
}
