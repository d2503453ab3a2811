// Пакет service — бизнес-логика монитора регистраций.
// LiveService — прямой доступ к провайдеру для /active и /current.
// Короткий кэш на hashicorp/golang-lru/v2/expirable, чтобы всплеск запросов
// не запускал fs_cli на каждый вызов.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/josuejuca/freeswitch-logs/internal/domain/model"
	"github.com/josuejuca/freeswitch-logs/internal/provider"
)

const liveCacheKey = "snapshot"

var (
	liveCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rm_live_cache_hits_total",
		Help: "Общее количество попаданий в кэш живого snapshot.",
	})
	liveCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rm_live_cache_misses_total",
		Help: "Общее количество промахов кэша живого snapshot.",
	})
)

// LiveService — живые данные PBX в обход журнала.
type LiveService struct {
	provider provider.SnapshotProvider
	// fetchTimeout — дедлайн вызова провайдера; 0 — только дедлайн запроса
	fetchTimeout time.Duration
	// cache == nil — кэширование отключено (ttl <= 0)
	cache  *expirable.LRU[string, *model.LiveSnapshot]
	now    func() time.Time
	logger *slog.Logger
}

// NewLiveService создаёт сервис. ttl <= 0 отключает кэш.
// fetchTimeout ограничивает вызов провайдера: зависший fs_cli не держит HTTP-запрос.
func NewLiveService(p provider.SnapshotProvider, ttl, fetchTimeout time.Duration, logger *slog.Logger) *LiveService {
	s := &LiveService{
		provider:     p,
		fetchTimeout: fetchTimeout,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger.With(slog.String("component", "live")),
	}
	if ttl > 0 {
		s.cache = expirable.NewLRU[string, *model.LiveSnapshot](1, nil, ttl)
	}
	return s
}

// Snapshot возвращает текущие регистрации. Ошибка провайдера — ErrProvider.
func (s *LiveService) Snapshot(ctx context.Context) (*model.LiveSnapshot, error) {
	if s.cache != nil {
		if snap, ok := s.cache.Get(liveCacheKey); ok {
			liveCacheHitsTotal.Inc()
			return snap, nil
		}
		liveCacheMissesTotal.Inc()
	}

	fetchCtx := ctx
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	rows, err := s.provider.Fetch(fetchCtx)
	if err != nil {
		s.logger.Warn("Живой snapshot не получен", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	if rows == nil {
		rows = []model.RegistrationSnapshot{}
	}

	snap := &model.LiveSnapshot{Rows: rows, TakenAt: s.now()}
	if s.cache != nil {
		s.cache.Add(liveCacheKey, snap)
	}
	return snap, nil
}

// ActiveCount возвращает число активных регистраций (строк snapshot).
func (s *LiveService) ActiveCount(ctx context.Context) (*model.ActiveCount, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &model.ActiveCount{Count: len(snap.Rows), Timestamp: snap.TakenAt}, nil
}
