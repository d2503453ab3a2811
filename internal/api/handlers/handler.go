// handler.go — основной обработчик API, реализующий router.ServerInterface.
// Делегирует запросы в сервисный слой и переводит ошибки сервисов в HTTP-ответы.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/josuejuca/freeswitch-logs/internal/api/errors"
	"github.com/josuejuca/freeswitch-logs/internal/api/router"
	"github.com/josuejuca/freeswitch-logs/internal/service"
)

// APIHandler — основной обработчик HTTP API монитора.
type APIHandler struct {
	health *HealthHandler
	query  *service.QueryService
	live   *service.LiveService
	logger *slog.Logger
}

var _ router.ServerInterface = (*APIHandler)(nil)

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	query *service.QueryService,
	live *service.LiveService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health: health,
		query:  query,
		live:   live,
		logger: logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeServiceError переводит ошибку сервисного слоя в ответ API.
// Неожиданные ошибки логируются, клиенту уходит обобщённое сообщение.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrProvider):
		h.logger.WarnContext(r.Context(), "FreeSWITCH недоступен",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		apierrors.ProviderUnavailable(w, "Не удалось получить регистрации от FreeSWITCH")
	default:
		h.logger.ErrorContext(r.Context(), "Ошибка обработки запроса",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// paginationDefaults нормализует параметры пагинации.
// Возвращает корректные limit и offset.
func paginationDefaults(limit *int, offset *int) (int, int) {
	l := 100
	o := 0

	if limit != nil {
		l = *limit
		if l < 1 {
			l = 1
		}
		if l > 1000 {
			l = 1000
		}
	}

	if offset != nil {
		o = *offset
		if o < 0 {
			o = 0
		}
	}

	return l, o
}
