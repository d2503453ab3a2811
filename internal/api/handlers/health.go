// health.go — обработчики health endpoints монитора регистраций.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (PostgreSQL доступен, опрос FreeSWITCH не остановился)
// /metrics — Prometheus метрики
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/josuejuca/freeswitch-logs/internal/config"
)

const serviceName = "regmonitor"

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status string, message string)
}

// TickStatus — источник состояния опроса (service.Reconciler).
type TickStatus interface {
	LastTick() (time.Time, error)
}

// PollerChecker — readiness опроса FreeSWITCH.
// degraded, если успешного тика не было дольше staleAfter.
type PollerChecker struct {
	ticks      TickStatus
	staleAfter time.Duration
	now        func() time.Time
}

// NewPollerChecker создаёт проверку свежести опроса.
func NewPollerChecker(ticks TickStatus, staleAfter time.Duration) *PollerChecker {
	return &PollerChecker{
		ticks:      ticks,
		staleAfter: staleAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CheckReady проверяет время последнего успешного тика.
func (c *PollerChecker) CheckReady() (string, string) {
	last, lastErr := c.ticks.LastTick()
	if last.IsZero() {
		if lastErr != nil {
			return "degraded", fmt.Sprintf("успешных тиков ещё не было: %v", lastErr)
		}
		return "degraded", "успешных тиков ещё не было"
	}

	age := c.now().Sub(last)
	if c.staleAfter > 0 && age > c.staleAfter {
		msg := fmt.Sprintf("последний успешный тик %s назад", age.Truncate(time.Second))
		if lastErr != nil {
			msg += fmt.Sprintf(": %v", lastErr)
		}
		return "degraded", msg
	}
	return "ok", ""
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	pgChecker     ReadinessChecker
	pollerChecker ReadinessChecker
	promHandler   http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// Оба checker могут быть nil (readiness вернёт "fail" для nil зависимостей).
func NewHealthHandler(pgChecker, pollerChecker ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		pgChecker:     pgChecker,
		pollerChecker: pollerChecker,
		promHandler:   promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse — ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ readiness probe.
type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		PostgreSQL healthCheckResult `json:"postgresql"`
		Poller     healthCheckResult `json:"poller"`
	} `json:"checks"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	})
}

// HealthReady — readiness probe. Проверяет PostgreSQL и опрос.
// Возвращает 200 (ok/degraded) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}

	resp.Checks.PostgreSQL = check(h.pgChecker)
	resp.Checks.Poller = check(h.pollerChecker)
	resp.Status = overallStatus(resp.Checks.PostgreSQL.Status, resp.Checks.Poller.Status)

	status := http.StatusOK
	if resp.Status == "fail" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

func check(c ReadinessChecker) healthCheckResult {
	if c == nil {
		return healthCheckResult{Status: "fail", Message: "не инициализирован"}
	}
	status, msg := c.CheckReady()
	return healthCheckResult{Status: status, Message: msg}
}

// overallStatus определяет итоговый статус из статусов зависимостей.
// Если хотя бы одна зависимость fail — итог fail.
// Если хотя бы одна degraded — итог degraded.
// Иначе — ok.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == "fail" {
			return "fail"
		}
		if s == "degraded" {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return "degraded"
	}
	return "ok"
}
