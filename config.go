package identity

import "time"

// Lockout and reset defaults. These are the configuration constants the
// guard and reset flows consult; call sites never hard-code them.
const (
	DefaultMaxFailedAttempts = 5
	DefaultLockDuration      = 2 * time.Hour
	DefaultAccessTokenTTL    = 15 * time.Minute
	DefaultRefreshTokenTTL   = 7 * 24 * time.Hour
	DefaultResetSecretTTL    = time.Hour
)

// SimpleConfig is a literal Config implementation with sane defaults for
// every zero field. Host applications that already carry a configuration
// layer can implement Config directly instead.
type SimpleConfig struct {
	AccessSigningKey  string
	RefreshSigningKey string
	SigningMethod     string
	ContextKey        string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	TokenLookup       string
	AuthScheme        string
	Issuer            string
	Audience          []string
	MaxFailedAttempts int
	LockDuration      time.Duration
	ResetSecretTTL    time.Duration
}

var _ Config = (*SimpleConfig)(nil)

func (c *SimpleConfig) GetAccessSigningKey() string {
	return c.AccessSigningKey
}

func (c *SimpleConfig) GetRefreshSigningKey() string {
	return c.RefreshSigningKey
}

func (c *SimpleConfig) GetSigningMethod() string {
	if c.SigningMethod == "" {
		return "HS256"
	}
	return c.SigningMethod
}

func (c *SimpleConfig) GetContextKey() string {
	if c.ContextKey == "" {
		return "user"
	}
	return c.ContextKey
}

func (c *SimpleConfig) GetAccessTokenTTL() time.Duration {
	if c.AccessTokenTTL <= 0 {
		return DefaultAccessTokenTTL
	}
	return c.AccessTokenTTL
}

func (c *SimpleConfig) GetRefreshTokenTTL() time.Duration {
	if c.RefreshTokenTTL <= 0 {
		return DefaultRefreshTokenTTL
	}
	return c.RefreshTokenTTL
}

func (c *SimpleConfig) GetTokenLookup() string {
	if c.TokenLookup == "" {
		return "header:Authorization"
	}
	return c.TokenLookup
}

func (c *SimpleConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return "Bearer"
	}
	return c.AuthScheme
}

func (c *SimpleConfig) GetIssuer() string {
	return c.Issuer
}

func (c *SimpleConfig) GetAudience() []string {
	return c.Audience
}

func (c *SimpleConfig) GetMaxFailedAttempts() int {
	if c.MaxFailedAttempts <= 0 {
		return DefaultMaxFailedAttempts
	}
	return c.MaxFailedAttempts
}

func (c *SimpleConfig) GetLockDuration() time.Duration {
	if c.LockDuration <= 0 {
		return DefaultLockDuration
	}
	return c.LockDuration
}

func (c *SimpleConfig) GetResetSecretTTL() time.Duration {
	if c.ResetSecretTTL <= 0 {
		return DefaultResetSecretTTL
	}
	return c.ResetSecretTTL
}
