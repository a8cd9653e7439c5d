package health

import (
	"net/http"

	"github.com/ustrahlendorf/web-form-datacollection/cmd/vicare-telemetry/handlers/common"
)

// Handler processes health check requests
type Handler struct {
	svc     common.Service
	version string
}

// Response represents the health check response.
// Version is omitted when empty.
type Response struct {
	Status  string         `json:"status"`
	Version string         `json:"version,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// New creates a new health check handler
func New(svc common.Service) *Handler {
	return &Handler{
		svc:     svc,
		version: "unknown",
	}
}

// WithVersion sets the version for health check responses
func (h *Handler) WithVersion(version string) *Handler {
	h.version = version
	return h
}

// ServeHTTP handles health check requests. Only the token cache backend is
// probed; the Viessmann endpoints are not called.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := Response{
		Status:  "healthy",
		Version: h.version,
		Details: make(map[string]any),
	}

	if err := h.svc.CheckHealth(r.Context()); err != nil {
		response.Status = "unhealthy"
		response.Details["token_cache"] = map[string]any{
			"status":  "unhealthy",
			"message": err.Error(),
		}
	} else {
		response.Details["token_cache"] = map[string]any{
			"status": "healthy",
		}
	}

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	common.WriteJSON(w, status, response)
}
