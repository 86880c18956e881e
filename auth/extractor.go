package auth

import (
	"net/http"
	"strings"
)

const (
	// AuthorizationHeader is the request header carrying the credential
	AuthorizationHeader = "Authorization"

	bearerScheme = "Bearer"
)

// ExtractBearerToken pulls the token out of an Authorization header value.
// An empty value is treated as an absent header. The scheme match is case-sensitive.
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", NewAuthError(ErrCodeMissingHeader, "Authorization header is expected.", nil)
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 {
		return "", NewAuthError(ErrCodeMalformedHeader, "Authorization header must be bearer token.", nil)
	}

	if parts[0] != bearerScheme {
		return "", NewAuthError(ErrCodeInvalidScheme, "Authorization header must start with \"Bearer\".", nil)
	}

	if parts[1] == "" {
		return "", NewAuthError(ErrCodeMalformedHeader, "Token not found.", nil)
	}

	return parts[1], nil
}

// TokenFromRequest extracts the bearer token from the request's Authorization header
func TokenFromRequest(r *http.Request) (string, error) {
	return ExtractBearerToken(r.Header.Get(AuthorizationHeader))
}
