package middleware

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/coffee-shop/auth"
	"github.com/upb/coffee-shop/internal/observability"
	"github.com/upb/coffee-shop/utils"
)

// TokenVerifier verifies a raw bearer token and returns its claims
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// ProtectedHandlerFunc is a handler that receives the verified claims ahead of its HTTP arguments
type ProtectedHandlerFunc func(claims *auth.Claims, w http.ResponseWriter, r *http.Request)

// AuthGuard runs extract -> verify -> authorize for a route and short-circuits with
// a structured error on the first failing stage.
type AuthGuard struct {
	verifier TokenVerifier
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewAuthGuard creates a new AuthGuard
func NewAuthGuard(verifier TokenVerifier, logger *zap.Logger, metrics *observability.Metrics) *AuthGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthGuard{
		verifier: verifier,
		logger:   logger,
		metrics:  metrics,
	}
}

// Authorize runs the pipeline for one request. It returns claims only when the
// token is valid and grants permission.
func (g *AuthGuard) Authorize(r *http.Request, permission string) (*auth.Claims, error) {
	ctx := r.Context()
	requestID := GetRequestIDFromContext(ctx)
	start := time.Now()

	claims, err := g.authorize(ctx, r, permission)

	code := ""
	if err != nil {
		code = string(errorCode(err))
		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("permission", permission),
			zap.String("code", code),
			zap.Error(err),
		}
		if auth.HasCode(err, auth.ErrCodeJWKSUnavailable) {
			g.logger.Error("request rejected, signing keys unavailable", fields...)
		} else {
			g.logger.Warn("request rejected", fields...)
		}
	} else {
		g.logger.Debug("request authorized",
			zap.String("request_id", requestID),
			zap.String("permission", permission),
			zap.String("sub", claims.Subject),
			zap.Strings("scopes", claims.Scopes()))
	}
	g.metrics.RecordAuthDecision(code, time.Since(start))

	return claims, err
}

func (g *AuthGuard) authorize(ctx context.Context, r *http.Request, permission string) (*auth.Claims, error) {
	requestID := GetRequestIDFromContext(ctx)

	token, err := auth.TokenFromRequest(r)
	if err != nil {
		return nil, err
	}
	g.logger.Debug("token extracted",
		zap.String("request_id", requestID),
		zap.String("token", observability.RedactToken(token)))

	claims, err := g.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	g.logger.Debug("token verified",
		zap.String("request_id", requestID),
		zap.String("sub", claims.Subject))

	if err := auth.CheckPermission(permission, claims); err != nil {
		return nil, err
	}

	return claims, nil
}

// Require wraps a protected handler so it only runs for requests holding permission.
// The claims are passed as the first argument and also stored in the request context.
func (g *AuthGuard) Require(permission string, next ProtectedHandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := g.Authorize(r, permission)
		if err != nil {
			WriteAuthError(w, err)
			return
		}

		next(claims, w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequirePermission is the chi-style form of Require for plain http.Handlers
func (g *AuthGuard) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return g.Require(permission, func(_ *auth.Claims, w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
		})
	}
}

// WriteAuthError renders an auth pipeline failure. Errors that are not
// *auth.AuthError are reported as 401 without leaking their text.
func WriteAuthError(w http.ResponseWriter, err error) {
	authErr, ok := auth.AsAuthError(err)
	if !ok {
		authErr = auth.NewAuthError(auth.ErrCodeUnauthorized, "Unable to authenticate request.", err)
	}
	_ = utils.WriteCodedError(w, authErr.StatusCode, string(authErr.Code), authErr.Message)
}

func errorCode(err error) auth.ErrorCode {
	if authErr, ok := auth.AsAuthError(err); ok {
		return authErr.Code
	}
	return auth.ErrCodeUnauthorized
}
