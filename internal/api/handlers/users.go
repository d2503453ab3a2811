// users.go — обработчики /users/* endpoints.
// Статус endpoint вычисляется из последнего события присутствия.
package handlers

import (
	"net/http"

	"github.com/josuejuca/freeswitch-logs/internal/api/router"
	"github.com/josuejuca/freeswitch-logs/internal/domain/model"
)

// ListUniqueUsers — GET /users/unique.
func (h *APIHandler) ListUniqueUsers(w http.ResponseWriter, r *http.Request, params router.ListParams) {
	h.listUsers(w, r, nil, params)
}

// ListOnlineUsers — GET /users/online.
func (h *APIHandler) ListOnlineUsers(w http.ResponseWriter, r *http.Request, params router.ListParams) {
	status := model.StatusOnline
	h.listUsers(w, r, &status, params)
}

// ListOfflineUsers — GET /users/offline.
func (h *APIHandler) ListOfflineUsers(w http.ResponseWriter, r *http.Request, params router.ListParams) {
	status := model.StatusOffline
	h.listUsers(w, r, &status, params)
}

func (h *APIHandler) listUsers(w http.ResponseWriter, r *http.Request, status *model.PresenceStatus, params router.ListParams) {
	limit, offset := paginationDefaults(params.Limit, params.Skip)

	users, err := h.query.ListUniqueUsers(r.Context(), status, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, "list_users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// CountUsers — GET /users/count.
func (h *APIHandler) CountUsers(w http.ResponseWriter, r *http.Request) {
	counts, err := h.query.CountUsers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "count_users", err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// GetUserHistory — GET /users/{reg_user}/history.
// Неизвестный endpoint — пустой список.
func (h *APIHandler) GetUserHistory(w http.ResponseWriter, r *http.Request, regUser string, params router.ListParams) {
	limit, offset := paginationDefaults(params.Limit, params.Skip)

	history, err := h.query.UserHistory(r.Context(), regUser, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, "user_history", err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// GetUserDetails — GET /users/{reg_user}/details.
// 404, если endpoint не встречается ни в одном журнале.
func (h *APIHandler) GetUserDetails(w http.ResponseWriter, r *http.Request, regUser string) {
	details, err := h.query.UserDetails(r.Context(), regUser)
	if err != nil {
		h.writeServiceError(w, r, "user_details", err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}
