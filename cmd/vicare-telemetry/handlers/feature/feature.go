// Package feature serves the extracted value of a single device feature
package feature

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ustrahlendorf/web-form-datacollection/cmd/vicare-telemetry/handlers/common"
)

// Response carries the feature name and its extracted value
type Response struct {
	Feature string `json:"feature"`
	Value   any    `json:"value"`
}

// Handler answers GET /features/{path...}
type Handler struct {
	svc common.Service
}

// New creates the handler
func New(svc common.Service) *Handler {
	return &Handler{svc: svc}
}

// ServeHTTP reads the feature path from the route wildcard. A feature that is
// absent, disabled or carries no value is reported as not found.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path := chi.URLParam(r, "*")

	eq, err := h.svc.ResolveEquipmentAndToken(ctx)
	if err != nil {
		common.WriteServiceError(w, err)
		return
	}

	value, err := h.svc.FeatureValue(ctx, path, eq, nil)
	if err != nil {
		common.WriteServiceError(w, err)
		return
	}
	if value == nil {
		common.WriteError(w, http.StatusNotFound, common.CodeNotFound, "feature "+path+" has no value")
		return
	}

	common.WriteJSON(w, http.StatusOK, Response{Feature: path, Value: value})
}
