package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
)

const statusCheckTimeout = 5 * time.Second

// GetStatus reports the health of the database and, when a probe is
// configured, the agent backend.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statusCheckTimeout)
	defer cancel()

	status := map[string]interface{}{
		"status": "healthy",
	}
	checks := map[string]interface{}{"api": "ok"}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Status check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	checks["backend"] = h.backendStatus(ctx)
	status["checks"] = checks
	JSON(w, statusCode, status)
}

// backendStatus never fails the status endpoint: without a reachable
// backend, chat runs on the local fallback.
func (h *Handler) backendStatus(ctx context.Context) map[string]interface{} {
	out := map[string]interface{}{
		"configured": h.cfg.HasBackend(),
	}
	if h.health == nil {
		return out
	}

	resp, err := h.health.Check(ctx)
	if err != nil {
		slog.Warn("Backend health probe failed", "error", err)
		out["health"] = map[string]string{"status": healthpb.HealthCheckResponse_UNKNOWN.String()}
		out["error"] = err.Error()
		return out
	}
	raw, err := protojson.Marshal(resp)
	if err != nil {
		out["error"] = err.Error()
		return out
	}
	out["health"] = json.RawMessage(raw)
	out["serving"] = resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	return out
}
