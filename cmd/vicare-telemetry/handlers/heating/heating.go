// Package heating serves the live heating snapshot
package heating

import (
	"net/http"

	"github.com/ustrahlendorf/web-form-datacollection/cmd/vicare-telemetry/handlers/common"
)

// Handler answers GET /heating/live
type Handler struct {
	svc common.Service
}

// New creates the handler
func New(svc common.Service) *Handler {
	return &Handler{svc: svc}
}

// ServeHTTP resolves the equipment and returns freshly fetched heating values.
// Values the device does not report are null.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eq, err := h.svc.ResolveEquipmentAndToken(ctx)
	if err != nil {
		common.WriteServiceError(w, err)
		return
	}

	values, err := h.svc.HeatingValues(ctx, eq)
	if err != nil {
		common.WriteServiceError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, values)
}
