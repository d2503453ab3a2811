// registrations.go — обработчики журналов: /registrations и /history.
package handlers

import (
	"net/http"

	"github.com/josuejuca/freeswitch-logs/internal/api/router"
)

// ListRegistrations — GET /registrations.
// Сырой журнал snapshot, новые строки первыми.
func (h *APIHandler) ListRegistrations(w http.ResponseWriter, r *http.Request, params router.ListParams) {
	limit, offset := paginationDefaults(params.Limit, params.Skip)

	rows, err := h.query.ListRegistrations(r.Context(), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, "list_registrations", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// ListHistory — GET /history.
// События присутствия, опционально по одному reg_user.
func (h *APIHandler) ListHistory(w http.ResponseWriter, r *http.Request, params router.HistoryParams) {
	limit, offset := paginationDefaults(params.Limit, params.Skip)

	events, err := h.query.ListHistory(r.Context(), params.RegUser, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, "list_history", err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
