// live.go — live-запросы к FreeSWITCH: /active и /current.
// Ответ берётся не из журнала, а из свежего (или кэшированного) snapshot.
package handlers

import (
	"net/http"
)

// GetActiveCount — GET /active.
func (h *APIHandler) GetActiveCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.live.ActiveCount(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "active_count", err)
		return
	}
	writeJSON(w, http.StatusOK, count)
}

// GetCurrentRegistrations — GET /current.
func (h *APIHandler) GetCurrentRegistrations(w http.ResponseWriter, r *http.Request) {
	snap, err := h.live.Snapshot(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "current_registrations", err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Rows)
}
