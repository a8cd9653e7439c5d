// Package equipment serves the resolved installation, gateway and device ids
package equipment

import (
	"net/http"

	"github.com/ustrahlendorf/web-form-datacollection/cmd/vicare-telemetry/handlers/common"
)

// Handler answers GET /equipment
type Handler struct {
	svc common.Service
}

// New creates the handler
func New(svc common.Service) *Handler {
	return &Handler{svc: svc}
}

// ServeHTTP writes the equipment ids. The access token is never included.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	eq, err := h.svc.ResolveEquipmentAndToken(r.Context())
	if err != nil {
		common.WriteServiceError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, eq)
}
