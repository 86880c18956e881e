package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAlgorithms is the algorithm allow-list applied when none is configured
var DefaultAlgorithms = []string{"RS256"}

// VerifierConfig holds the expected token parameters
type VerifierConfig struct {
	Issuer     string
	Audience   string
	Algorithms []string
	ClockSkew  time.Duration
}

// Verifier checks a token's signature against the provider's keys and validates
// its registered claims.
type Verifier struct {
	keys       KeySource
	issuer     string
	audience   string
	algorithms []string
	leeway     time.Duration
	now        func() time.Time
}

// NewVerifier creates a Verifier
func NewVerifier(keys KeySource, cfg VerifierConfig) *Verifier {
	algorithms := cfg.Algorithms
	if len(algorithms) == 0 {
		algorithms = DefaultAlgorithms
	}

	return &Verifier{
		keys:       keys,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		algorithms: algorithms,
		leeway:     cfg.ClockSkew,
		now:        time.Now,
	}
}

// Verify returns the token's claims if its signature, expiry, issuer and audience check out.
// Every failure is an *AuthError.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	unverified, _, err := jwt.NewParser().ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, NewAuthError(ErrCodeMalformedToken, "Unable to parse authentication token.", err)
	}

	kid, ok := unverified.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, NewAuthError(ErrCodeInvalidTokenHeader, "Authorization malformed.", nil)
	}

	publicKey, err := v.keys.PublicKey(ctx, kid)
	if err != nil {
		if _, ok := AsAuthError(err); ok {
			return nil, err
		}
		return nil, NewAuthError(ErrCodeJWKSUnavailable, "Unable to fetch signing keys.", err)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(v.algorithms),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)

	claims := &Claims{}
	_, err = parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return publicKey, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	if claims.ExpiresAt == nil {
		return nil, NewAuthError(ErrCodeTokenExpired, "Token has no expiry.", nil)
	}

	return claims, nil
}

func classifyParseError(err error) *AuthError {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return NewAuthError(ErrCodeInvalidSignature, "Token signature is invalid.", err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return NewAuthError(ErrCodeTokenExpired, "Token expired.", err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return NewAuthError(ErrCodeClaimsMismatch, "Incorrect claims. Please, check the audience and issuer.", err)
	default:
		return NewAuthError(ErrCodeMalformedToken, "Unable to parse authentication token.", err)
	}
}
