package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/coffee-shop/auth"
	"github.com/upb/coffee-shop/utils"
)

const readinessTimeout = 2 * time.Second

// KeySetStatter reports the state of the signing key cache
type KeySetStatter interface {
	Stats() auth.KeySetStats
}

// HealthResponse represents the readiness check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	KeySet    *auth.KeySetStats `json:"jwks,omitempty"`
}

// HealthHandler handles liveness and readiness probes
type HealthHandler struct {
	db     *sql.DB
	keys   KeySetStatter
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. keys may be nil when authentication is disabled.
func NewHealthHandler(db *sql.DB, keys KeySetStatter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		keys:   keys,
		logger: logger,
	}
}

// HandleHealth handles GET /healthz
// Liveness check - always returns 200 if the process is serving
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReadiness handles GET /readyz
// The database gates readiness. The key set is reported but a cold cache is not a failure
// since keys are fetched on the first authenticated request.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	response := HealthResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]string),
	}

	switch {
	case h.db == nil:
		response.Checks["database"] = "not_initialized"
		response.Status = "not_ready"
	default:
		if err := h.checkDatabase(ctx); err != nil {
			h.logger.Warn("database readiness check failed", zap.Error(err))
			response.Checks["database"] = "unhealthy"
			response.Status = "not_ready"
		} else {
			response.Checks["database"] = "healthy"
		}
	}

	if h.keys == nil {
		response.Checks["jwks"] = "disabled"
	} else {
		stats := h.keys.Stats()
		response.KeySet = &stats
		if stats.Cached {
			response.Checks["jwks"] = "cached"
		} else {
			response.Checks["jwks"] = "cold"
		}
	}

	status := http.StatusOK
	if response.Status != "ready" {
		status = http.StatusServiceUnavailable
	}

	if err := utils.WriteJSON(w, status, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	return h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
}
