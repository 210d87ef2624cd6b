package identity

// TokenValidator turns a raw token string into claims without committing
// callers to a particular signing scheme.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, ErrUnableToDecodeSession
	}
	return f(tokenString)
}

// MultiTokenValidator runs each validator in turn until one accepts the
// token. A malformed-token failure moves on to the next validator; any
// other failure is terminal, since the token was understood and rejected.
type MultiTokenValidator struct {
	validators []TokenValidator
}

// NewMultiTokenValidator builds a composite validator, skipping nil entries.
func NewMultiTokenValidator(validators ...TokenValidator) *MultiTokenValidator {
	filtered := make([]TokenValidator, 0, len(validators))
	for _, v := range validators {
		if v != nil {
			filtered = append(filtered, v)
		}
	}
	return &MultiTokenValidator{validators: filtered}
}

func (m *MultiTokenValidator) Validate(tokenString string) (AuthClaims, error) {
	if m == nil || len(m.validators) == 0 {
		return nil, ErrTokenMalformed
	}

	var lastMalformed error
	for _, v := range m.validators {
		claims, err := v.Validate(tokenString)
		if err == nil {
			return claims, nil
		}
		if !IsMalformedError(err) {
			return nil, err
		}
		lastMalformed = err
	}

	if lastMalformed != nil {
		return nil, lastMalformed
	}
	return nil, ErrTokenMalformed
}
