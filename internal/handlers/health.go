package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"docchat/internal/contextutil"
	"docchat/internal/vectorstore"
)

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	// primary is nil when the service runs on the local index only.
	primary            *vectorstore.QdrantIndex
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(primary *vectorstore.QdrantIndex) *HealthHandler {
	return &HealthHandler{
		primary:            primary,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	// Overall health status: "healthy" or "degraded"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`
}

// ServeHTTP handles GET /healthz.
// A degraded primary index still returns 200: queries keep working
// through the local fallback, so the process is alive and serving.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    map[string]string{},
	}

	if h.primary == nil {
		resp.Checks["vector_index"] = "local only"
	} else {
		checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
		defer cancel()

		info, err := h.primary.GetCollectionInfo(checkCtx)
		if err != nil {
			logger.WarnContext(ctx, "primary index health check failed", "error", err)
			resp.Status = "degraded"
			resp.Checks["vector_index"] = "unavailable, serving from local fallback"
		} else {
			resp.Checks["vector_index"] = fmt.Sprintf("ok (%d points, %s)", info.PointsCount, info.Status)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
