package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://coffee-shop.test.auth0.com/"
	testAudience = "drinks"
)

func generateTestKeyPair(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return privateKey, &privateKey.PublicKey
}

func rsaJWK(kid string, publicKey *rsa.PublicKey) map[string]string {
	return map[string]string{
		"kid": kid,
		"kty": "RSA",
		"alg": "RS256",
		"use": "sig",
		"n":   base64.RawURLEncoding.EncodeToString(publicKey.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(publicKey.E)).Bytes()),
	}
}

func jwksDocument(t *testing.T, keys ...map[string]string) []byte {
	t.Helper()
	document, err := json.Marshal(map[string]any{"keys": keys})
	require.NoError(t, err)
	return document
}

// jwksServer serves a swappable JWKS document and counts requests
type jwksServer struct {
	*httptest.Server
	requests atomic.Int32

	mu       sync.RWMutex
	document []byte
	status   int
	delay    time.Duration
}

func newJWKSServer(t *testing.T, document []byte) *jwksServer {
	t.Helper()
	s := &jwksServer{document: document, status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)

		s.mu.RLock()
		document, status, delay := s.document, s.status, s.delay
		s.mu.RUnlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(document)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *jwksServer) setDocument(document []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.document = document
}

func (s *jwksServer) setStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *jwksServer) setDelay(delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = delay
}

func signToken(t *testing.T, method jwt.SigningMethod, key any, kid string, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	tokenString, err := token.SignedString(key)
	require.NoError(t, err)
	return tokenString
}

func validClaims(permissions ...string) jwt.MapClaims {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   testIssuer,
		"sub":   "auth0|barista",
		"aud":   []string{testAudience, testIssuer + "userinfo"},
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"azp":   "coffee-shop-frontend",
		"scope": "openid profile email",
	}
	if permissions != nil {
		claims["permissions"] = permissions
	}
	return claims
}
