package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies why a request was rejected by the auth pipeline
type ErrorCode string

const (
	ErrCodeMissingHeader      ErrorCode = "MISSING_HEADER"
	ErrCodeMalformedHeader    ErrorCode = "MALFORMED_HEADER"
	ErrCodeInvalidScheme      ErrorCode = "INVALID_SCHEME"
	ErrCodeInvalidTokenHeader ErrorCode = "INVALID_TOKEN_HEADER"
	ErrCodeKeyNotFound        ErrorCode = "KEY_NOT_FOUND"
	ErrCodeInvalidSignature   ErrorCode = "INVALID_SIGNATURE"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
	ErrCodeClaimsMismatch     ErrorCode = "CLAIMS_MISMATCH"
	ErrCodeMalformedToken     ErrorCode = "MALFORMED_TOKEN"
	ErrCodePermissionDenied   ErrorCode = "PERMISSION_DENIED"
	ErrCodeJWKSUnavailable    ErrorCode = "JWKS_UNAVAILABLE"

	// ErrCodeUnauthorized covers failures raised outside the pipeline's own stages
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
)

var statusByCode = map[ErrorCode]int{
	ErrCodeMissingHeader:      http.StatusUnauthorized,
	ErrCodeMalformedHeader:    http.StatusUnauthorized,
	ErrCodeInvalidScheme:      http.StatusUnauthorized,
	ErrCodeInvalidTokenHeader: http.StatusUnauthorized,
	ErrCodeKeyNotFound:        http.StatusUnauthorized,
	ErrCodeInvalidSignature:   http.StatusUnauthorized,
	ErrCodeTokenExpired:       http.StatusUnauthorized,
	ErrCodeClaimsMismatch:     http.StatusUnauthorized,
	ErrCodeMalformedToken:     http.StatusBadRequest,
	ErrCodePermissionDenied:   http.StatusForbidden,
	ErrCodeJWKSUnavailable:    http.StatusServiceUnavailable,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
}

// StatusCode returns the HTTP status associated with the code.
// Unknown codes map to 401.
func (c ErrorCode) StatusCode() int {
	if status, ok := statusByCode[c]; ok {
		return status
	}
	return http.StatusUnauthorized
}

// AuthError is the single error shape produced by every stage of the auth pipeline
type AuthError struct {
	Code       ErrorCode
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches another AuthError carrying the same code
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewAuthError creates an AuthError whose status is derived from its code
func NewAuthError(code ErrorCode, message string, err error) *AuthError {
	return &AuthError{
		Code:       code,
		StatusCode: code.StatusCode(),
		Message:    message,
		Err:        err,
	}
}

// AsAuthError unwraps err into an AuthError if one is in its chain
func AsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given auth error code
func HasCode(err error, code ErrorCode) bool {
	authErr, ok := AsAuthError(err)
	return ok && authErr.Code == code
}
