package library

import (
	"context"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenValidator decides whether the client should trust a token locally.
// The backend validates every call regardless; validators only let the
// client notice a dead session early.
type TokenValidator interface {
	Validate(token string, claims Claims) error
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(token string, claims Claims) error

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(token string, claims Claims) error {
	if f == nil {
		return nil
	}
	return f(token, claims)
}

// DecodeOnly accepts any token that decodes to non empty claims. This is the
// default and leaves expiry and signature checks to the backend.
var DecodeOnly TokenValidator = TokenValidatorFunc(func(_ string, claims Claims) error {
	if claims.Empty() {
		return ErrDecodeFailure
	}
	return nil
})

// ExpiryValidator rejects tokens whose exp claim is in the past
type ExpiryValidator struct {
	Now    func() time.Time
	Leeway time.Duration
}

// Validate satisfies the TokenValidator interface.
func (v ExpiryValidator) Validate(_ string, claims Claims) error {
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	if claims.ExpiredAt(now().Add(-v.Leeway)) {
		return sessionRejected("token expired", map[string]any{"exp": claims.Expires()})
	}
	return nil
}

// SignatureValidator verifies the token signature with keyFunc. Registered
// claims (exp, nbf) are checked by the jwt parser as well.
type SignatureValidator struct {
	keyFunc jwt.Keyfunc
	parser  *jwt.Parser
}

// NewSignatureValidator builds a validator around any jwt.Keyfunc
func NewSignatureValidator(keyFunc jwt.Keyfunc, opts ...jwt.ParserOption) *SignatureValidator {
	return &SignatureValidator{
		keyFunc: keyFunc,
		parser:  jwt.NewParser(opts...),
	}
}

// Validate satisfies the TokenValidator interface.
func (v *SignatureValidator) Validate(token string, _ Claims) error {
	if v == nil || v.keyFunc == nil {
		return ErrSessionRejected
	}
	parsed, err := v.parser.Parse(token, v.keyFunc)
	if err != nil {
		return sessionRejected(err.Error(), nil)
	}
	if !parsed.Valid {
		return ErrSessionRejected
	}
	return nil
}

// JWKSValidator verifies signatures against the backend's published key set
// and refreshes it in the background until Close is called.
type JWKSValidator struct {
	*SignatureValidator
	jwks *keyfunc.JWKS
}

// NewJWKSValidator fetches the key set at jwksURL
func NewJWKSValidator(ctx context.Context, jwksURL string, refresh time.Duration, logger Logger) (*JWKSValidator, error) {
	logger = normalizeLogger(logger)
	if refresh <= 0 {
		refresh = time.Hour
	}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:             ctx,
		RefreshInterval: refresh,
		RefreshErrorHandler: func(err error) {
			logger.Error("JWKS refresh failed: %v", err)
		},
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, fmt.Sprintf("failed to load JWKS from %s", jwksURL))
	}

	return &JWKSValidator{
		SignatureValidator: NewSignatureValidator(jwks.Keyfunc),
		jwks:               jwks,
	}, nil
}

// Close stops the background refresh
func (v *JWKSValidator) Close() {
	if v != nil && v.jwks != nil {
		v.jwks.EndBackground()
	}
}

// ChainValidator runs validators in order and stops at the first failure.
type ChainValidator struct {
	validators []TokenValidator
}

// NewChainValidator filters nil validators and returns a composite validator.
func NewChainValidator(validators ...TokenValidator) *ChainValidator {
	filtered := make([]TokenValidator, 0, len(validators))
	for _, v := range validators {
		if v != nil {
			filtered = append(filtered, v)
		}
	}
	return &ChainValidator{validators: filtered}
}

// Validate satisfies the TokenValidator interface.
func (c *ChainValidator) Validate(token string, claims Claims) error {
	for _, v := range c.validators {
		if err := v.Validate(token, claims); err != nil {
			return err
		}
	}
	return nil
}

func sessionRejected(reason string, meta map[string]any) error {
	clone := ErrSessionRejected.Clone()
	if clone == nil {
		return ErrSessionRejected
	}
	clone.Message = "session token rejected: " + reason
	clone.Source = ErrSessionRejected
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}
