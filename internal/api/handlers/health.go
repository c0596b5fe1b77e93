package handlers

import (
	"net/http"

	"waste-dispatch-service/internal/routing"
)

// HealthHandler is a liveness check that also reports whether routing has
// fallen back to straight-line distances.
type HealthHandler struct {
	Oracle *routing.Oracle
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	res := map[string]string{"status": "ok", "routing": "remote"}
	if h.Oracle == nil || h.Oracle.Degraded() {
		res["routing"] = "degraded"
	}
	writeJSON(w, r, http.StatusOK, res)
}
