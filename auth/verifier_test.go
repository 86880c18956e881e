package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verifierFixture struct {
	privateKey *rsa.PrivateKey
	server     *jwksServer
	cache      *KeySetCache
	verifier   *Verifier
}

func newVerifierFixture(t *testing.T) *verifierFixture {
	t.Helper()
	privateKey, publicKey := generateTestKeyPair(t)
	server := newJWKSServer(t, jwksDocument(t, rsaJWK("kid-1", publicKey)))
	cache := newTestKeySetCache(t, server.URL, nil)

	return &verifierFixture{
		privateKey: privateKey,
		server:     server,
		cache:      cache,
		verifier: NewVerifier(cache, VerifierConfig{
			Issuer:   testIssuer,
			Audience: testAudience,
		}),
	}
}

func (f *verifierFixture) sign(t *testing.T, claims jwt.MapClaims) string {
	return signToken(t, jwt.SigningMethodRS256, f.privateKey, "kid-1", claims)
}

func requireAuthCode(t *testing.T, err error, code ErrorCode, status int) {
	t.Helper()
	require.Error(t, err)
	authErr, ok := AsAuthError(err)
	require.True(t, ok, "expected *AuthError, got %T: %v", err, err)
	assert.Equal(t, code, authErr.Code)
	assert.Equal(t, status, authErr.StatusCode)
}

func TestVerifier_ValidToken(t *testing.T) {
	f := newVerifierFixture(t)
	token := f.sign(t, validClaims("get:drinks-detail", "post:drinks"))

	claims, err := f.verifier.Verify(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, "auth0|barista", claims.Subject)
	assert.Equal(t, testIssuer, claims.Issuer)
	assert.Contains(t, claims.Audience, testAudience)
	assert.Equal(t, []string{"get:drinks-detail", "post:drinks"}, claims.Permissions)
	assert.Equal(t, "coffee-shop-frontend", claims.AuthorizedParty)
	assert.True(t, claims.HasPermission(PermissionPostDrinks))
}

func TestVerifier_Idempotent(t *testing.T) {
	f := newVerifierFixture(t)
	token := f.sign(t, validClaims("get:drinks-detail"))

	first, err := f.verifier.Verify(context.Background(), token)
	require.NoError(t, err)
	second, err := f.verifier.Verify(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), f.server.requests.Load())
}

func TestVerifier_PermissionsPresence(t *testing.T) {
	f := newVerifierFixture(t)

	absent, err := f.verifier.Verify(context.Background(), f.sign(t, validClaims()))
	require.NoError(t, err)
	assert.False(t, absent.HasPermissionsClaim())

	empty, err := f.verifier.Verify(context.Background(), f.sign(t, validClaims([]string{}...)))
	require.NoError(t, err)
	assert.True(t, empty.HasPermissionsClaim())
	assert.Empty(t, empty.Permissions)
}

func TestVerifier_RejectsTokens(t *testing.T) {
	f := newVerifierFixture(t)
	otherKey, _ := generateTestKeyPair(t)

	expired := validClaims("get:drinks-detail")
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	wrongIssuer := validClaims("get:drinks-detail")
	wrongIssuer["iss"] = "https://evil.example.com/"

	wrongAudience := validClaims("get:drinks-detail")
	wrongAudience["aud"] = "someone-else"

	missingAudience := validClaims("get:drinks-detail")
	delete(missingAudience, "aud")

	notYetValid := validClaims("get:drinks-detail")
	notYetValid["nbf"] = time.Now().Add(time.Hour).Unix()

	noExpiry := validClaims("get:drinks-detail")
	delete(noExpiry, "exp")

	tests := []struct {
		name   string
		token  string
		code   ErrorCode
		status int
	}{
		{
			name:   "expired",
			token:  f.sign(t, expired),
			code:   ErrCodeTokenExpired,
			status: http.StatusUnauthorized,
		},
		{
			name:   "no expiry",
			token:  f.sign(t, noExpiry),
			code:   ErrCodeTokenExpired,
			status: http.StatusUnauthorized,
		},
		{
			name:   "wrong issuer",
			token:  f.sign(t, wrongIssuer),
			code:   ErrCodeClaimsMismatch,
			status: http.StatusUnauthorized,
		},
		{
			name:   "wrong audience",
			token:  f.sign(t, wrongAudience),
			code:   ErrCodeClaimsMismatch,
			status: http.StatusUnauthorized,
		},
		{
			name:   "missing audience",
			token:  f.sign(t, missingAudience),
			code:   ErrCodeClaimsMismatch,
			status: http.StatusUnauthorized,
		},
		{
			name:   "not yet valid",
			token:  f.sign(t, notYetValid),
			code:   ErrCodeClaimsMismatch,
			status: http.StatusUnauthorized,
		},
		{
			name:   "signed by another key",
			token:  signToken(t, jwt.SigningMethodRS256, otherKey, "kid-1", validClaims("get:drinks-detail")),
			code:   ErrCodeInvalidSignature,
			status: http.StatusUnauthorized,
		},
		{
			name:   "hmac algorithm",
			token:  signToken(t, jwt.SigningMethodHS256, []byte("shared-secret"), "kid-1", validClaims("get:drinks-detail")),
			code:   ErrCodeInvalidSignature,
			status: http.StatusUnauthorized,
		},
		{
			name:   "missing kid",
			token:  signToken(t, jwt.SigningMethodRS256, f.privateKey, "", validClaims("get:drinks-detail")),
			code:   ErrCodeInvalidTokenHeader,
			status: http.StatusUnauthorized,
		},
		{
			name:   "unknown kid",
			token:  signToken(t, jwt.SigningMethodRS256, f.privateKey, "kid-unknown", validClaims("get:drinks-detail")),
			code:   ErrCodeKeyNotFound,
			status: http.StatusUnauthorized,
		},
		{
			name:   "garbage",
			token:  "not-a-jwt",
			code:   ErrCodeMalformedToken,
			status: http.StatusBadRequest,
		},
		{
			name:   "undecodable header",
			token:  "%%%.eyJzdWIiOiJ4In0.c2ln",
			code:   ErrCodeMalformedToken,
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := f.verifier.Verify(context.Background(), tt.token)
			assert.Nil(t, claims)
			requireAuthCode(t, err, tt.code, tt.status)
		})
	}
}

func TestVerifier_MalformedTokenSkipsKeyFetch(t *testing.T) {
	f := newVerifierFixture(t)

	_, err := f.verifier.Verify(context.Background(), "not-a-jwt")
	requireAuthCode(t, err, ErrCodeMalformedToken, http.StatusBadRequest)
	assert.Equal(t, int32(0), f.server.requests.Load())
}

func TestVerifier_ClockSkew(t *testing.T) {
	f := newVerifierFixture(t)
	claims := validClaims("get:drinks-detail")
	claims["exp"] = time.Now().Add(-10 * time.Second).Unix()
	token := f.sign(t, claims)

	_, err := f.verifier.Verify(context.Background(), token)
	requireAuthCode(t, err, ErrCodeTokenExpired, http.StatusUnauthorized)

	lenient := NewVerifier(f.cache, VerifierConfig{
		Issuer:    testIssuer,
		Audience:  testAudience,
		ClockSkew: time.Minute,
	})
	_, err = lenient.Verify(context.Background(), token)
	assert.NoError(t, err)
}

func TestVerifier_KeySetUnavailable(t *testing.T) {
	f := newVerifierFixture(t)
	f.server.setStatus(http.StatusBadGateway)

	_, err := f.verifier.Verify(context.Background(), f.sign(t, validClaims("get:drinks-detail")))
	requireAuthCode(t, err, ErrCodeJWKSUnavailable, http.StatusServiceUnavailable)
}

type plainErrorKeySource struct{}

func (plainErrorKeySource) PublicKey(context.Context, string) (*rsa.PublicKey, error) {
	return nil, errors.New("connection reset")
}

func TestVerifier_WrapsPlainKeySourceErrors(t *testing.T) {
	privateKey, _ := generateTestKeyPair(t)
	verifier := NewVerifier(plainErrorKeySource{}, VerifierConfig{Issuer: testIssuer, Audience: testAudience})

	token := signToken(t, jwt.SigningMethodRS256, privateKey, "kid-1", validClaims())
	_, err := verifier.Verify(context.Background(), token)
	requireAuthCode(t, err, ErrCodeJWKSUnavailable, http.StatusServiceUnavailable)
}

func TestNewVerifier_DefaultAlgorithms(t *testing.T) {
	verifier := NewVerifier(plainErrorKeySource{}, VerifierConfig{})
	assert.Equal(t, []string{"RS256"}, verifier.algorithms)
}
