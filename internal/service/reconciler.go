// reconciler.go — сверка snapshot регистраций с журналом присутствия.
//
// Один тик:
//  1. Получить snapshot S от провайдера. Ошибка — тик прерывается без записей.
//  2. Записать строки snapshot в registration_logs (best-effort).
//  3. Прочитать L — endpoint, чьё последнее событие online.
//  4. S \ L → событие online.
//  5. L \ S → событие offline с длительностью от последнего online.
//  6. S ∩ L и остальные — без событий.
//
// Одновременно выполняется не более одного тика (single-flight): тик,
// начатый во время выполнения предыдущего, сразу возвращает ErrTickInProgress.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/josuejuca/freeswitch-logs/internal/domain/model"
	"github.com/josuejuca/freeswitch-logs/internal/provider"
	"github.com/josuejuca/freeswitch-logs/internal/repository"
)

// Результаты тика для метрики rm_ticks_total.
const (
	tickResultOK               = "ok"
	tickResultPartial          = "partial"
	tickResultProviderError    = "provider_error"
	tickResultPersistenceError = "persistence_error"
	tickResultSkipped          = "skipped"
	tickResultPanic            = "panic"
)

// Prometheus метрики сверки
var (
	ticksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rm_ticks_total",
		Help: "Количество тиков сверки по результату",
	}, []string{"result"})

	tickDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rm_tick_duration_seconds",
		Help:    "Длительность тика сверки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	presenceEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rm_presence_events_total",
		Help: "Количество записанных событий присутствия по статусу",
	}, []string{"status"})

	registrationsCurrent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rm_registrations_current",
		Help: "Количество уникальных endpoint в последнем успешном snapshot",
	})

	eventWriteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rm_event_write_failures_total",
		Help: "Количество событий присутствия, которые не удалось записать",
	})

	inconsistenciesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rm_presence_inconsistencies_total",
		Help: "Количество offline-событий без предшествующего online",
	})
)

// Reconciler — ядро: превращает snapshot в события присутствия.
// Единственный писатель presence_events.
type Reconciler struct {
	provider provider.SnapshotProvider
	logs     repository.RegistrationLogRepository
	events   repository.PresenceEventRepository
	now      func() time.Time
	logger   *slog.Logger

	mu          sync.Mutex // защита от параллельного запуска
	inProcess   bool       // тик в процессе выполнения
	lastSuccess time.Time
	lastErr     error

	// lastEventTime — время обнаружения предыдущего тика. Доступ только из tick.
	lastEventTime time.Time
}

// NewReconciler создаёт сервис сверки.
func NewReconciler(
	p provider.SnapshotProvider,
	logs repository.RegistrationLogRepository,
	events repository.PresenceEventRepository,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		provider: p,
		logs:     logs,
		events:   events,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With(slog.String("component", "reconciler")),
	}
}

// IsInProgress возвращает true, если тик выполняется.
func (r *Reconciler) IsInProgress() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inProcess
}

// LastTick возвращает время последнего завершённого тика и ошибку последнего тика.
// Нулевое время — успешных тиков ещё не было.
func (r *Reconciler) LastTick() (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSuccess, r.lastErr
}

// Tick выполняет один цикл сверки.
func (r *Reconciler) Tick(ctx context.Context) (outcome *model.TickOutcome, err error) {
	r.mu.Lock()
	if r.inProcess {
		r.mu.Unlock()
		ticksTotal.WithLabelValues(tickResultSkipped).Inc()
		r.logger.Warn("Тик уже выполняется, пропуск")
		return nil, ErrTickInProgress
	}
	r.inProcess = true
	r.mu.Unlock()

	start := time.Now()
	defer func() {
		tickDurationSeconds.Observe(time.Since(start).Seconds())

		r.mu.Lock()
		r.inProcess = false
		r.lastErr = err
		if err == nil && outcome != nil {
			r.lastSuccess = outcome.CompletedAt
		}
		r.mu.Unlock()
	}()

	return r.tick(ctx)
}

func (r *Reconciler) tick(ctx context.Context) (*model.TickOutcome, error) {
	outcome := &model.TickOutcome{
		TickID:      uuid.New().String(),
		StartedAt:   r.now(),
		WentOnline:  []string{},
		WentOffline: []string{},
	}
	log := r.logger.With(slog.String("tick_id", outcome.TickID))

	// 1. Snapshot. Ошибка провайдера — ноль записей.
	rows, err := r.provider.Fetch(ctx)
	if err != nil {
		ticksTotal.WithLabelValues(tickResultProviderError).Inc()
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}

	// Время обнаружения, общее для всех событий тика. Не убывает между тиками
	now := r.detectionTime(log)
	outcome.SnapshotSize = len(rows)

	current := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		current[row.RegUser] = struct{}{}
	}
	outcome.UniqueEndpoints = len(current)

	// 2. Сырой журнал — диагностика, ошибки не прерывают тик
	for i := range rows {
		row := rows[i]
		row.CreatedAt = now
		if err := r.logs.Insert(ctx, &row); err != nil {
			outcome.RawRowsFailed++
			log.Warn("Ошибка записи строки snapshot",
				slog.String("reg_user", row.RegUser),
				slog.String("error", err.Error()),
			)
			continue
		}
		outcome.RawRowsWritten++
	}

	// 3. L из журнала событий
	onlineList, err := r.events.CurrentlyOnline(ctx)
	if err != nil {
		ticksTotal.WithLabelValues(tickResultPersistenceError).Inc()
		return nil, fmt.Errorf("%w: чтение текущего online: %w", ErrPersistence, err)
	}
	online := make(map[string]struct{}, len(onlineList))
	for _, u := range onlineList {
		online[u] = struct{}{}
	}

	// 4. S \ L
	for _, regUser := range difference(current, online) {
		event := &model.PresenceEvent{RegUser: regUser, Status: model.StatusOnline, Timestamp: now}
		if err := r.events.Append(ctx, event); err != nil {
			r.eventWriteFailed(log, outcome, regUser, model.StatusOnline, err)
			continue
		}
		presenceEventsTotal.WithLabelValues(string(model.StatusOnline)).Inc()
		outcome.WentOnline = append(outcome.WentOnline, regUser)
	}

	// 5. L \ S
	for _, regUser := range difference(online, current) {
		event, err := r.offlineEvent(ctx, log, outcome, regUser, now)
		if err != nil {
			r.eventWriteFailed(log, outcome, regUser, model.StatusOffline, err)
			continue
		}
		if err := r.events.Append(ctx, event); err != nil {
			r.eventWriteFailed(log, outcome, regUser, model.StatusOffline, err)
			continue
		}
		presenceEventsTotal.WithLabelValues(string(model.StatusOffline)).Inc()
		outcome.WentOffline = append(outcome.WentOffline, regUser)
	}

	registrationsCurrent.Set(float64(len(current)))
	outcome.CompletedAt = r.now()

	result := tickResultOK
	if outcome.EventWriteFailures > 0 {
		result = tickResultPartial
	}
	ticksTotal.WithLabelValues(result).Inc()

	level := slog.LevelDebug
	if len(outcome.WentOnline) > 0 || len(outcome.WentOffline) > 0 || outcome.EventWriteFailures > 0 {
		level = slog.LevelInfo
	}
	log.Log(ctx, level, "Тик сверки завершён",
		slog.Int("snapshot_size", outcome.SnapshotSize),
		slog.Int("unique_endpoints", outcome.UniqueEndpoints),
		slog.Any("went_online", outcome.WentOnline),
		slog.Any("went_offline", outcome.WentOffline),
		slog.Int("raw_rows_failed", outcome.RawRowsFailed),
		slog.Int("event_write_failures", outcome.EventWriteFailures),
		slog.Int("inconsistencies", outcome.Inconsistencies),
	)
	return outcome, nil
}

// detectionTime возвращает текущее время, но не раньше времени предыдущего тика.
func (r *Reconciler) detectionTime(log *slog.Logger) time.Time {
	now := r.now()
	if now.Before(r.lastEventTime) {
		log.Warn("Системные часы переведены назад, используется время предыдущего тика",
			slog.Time("clock", now),
			slog.Time("last_event_time", r.lastEventTime),
		)
		now = r.lastEventTime
	}
	r.lastEventTime = now
	return now
}

// offlineEvent строит offline-событие с длительностью от последнего online.
// Без online-события длительность null, тик не прерывается.
func (r *Reconciler) offlineEvent(
	ctx context.Context,
	log *slog.Logger,
	outcome *model.TickOutcome,
	regUser string,
	now time.Time,
) (*model.PresenceEvent, error) {
	event := &model.PresenceEvent{RegUser: regUser, Status: model.StatusOffline, Timestamp: now}

	last, err := r.events.LatestOnline(ctx, regUser)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		outcome.Inconsistencies++
		inconsistenciesTotal.Inc()
		log.Warn("Нет online-события для перехода в offline, длительность не определена",
			slog.String("reg_user", regUser),
		)
		return event, nil
	case err != nil:
		return nil, fmt.Errorf("поиск последнего online: %w", err)
	}

	duration := int64(now.Sub(last.Timestamp) / time.Second)
	if duration < 0 {
		duration = 0
	}
	event.Duration = &duration
	return event, nil
}

func (r *Reconciler) eventWriteFailed(
	log *slog.Logger,
	outcome *model.TickOutcome,
	regUser string,
	status model.PresenceStatus,
	err error,
) {
	outcome.EventWriteFailures++
	eventWriteFailuresTotal.Inc()
	log.Error("Ошибка записи события присутствия, переход может быть потерян",
		slog.String("reg_user", regUser),
		slog.String("status", string(status)),
		slog.String("error", err.Error()),
	)
}

// difference возвращает отсортированные элементы a, отсутствующие в b.
func difference(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
