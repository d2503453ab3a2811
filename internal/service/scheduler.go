// scheduler.go — периодический запуск сверки.
//
// Каждое срабатывание тикера запускает тик в отдельной горутине, поэтому
// зависший тик не блокирует планирование. Пересекающиеся тики отсекает
// single-flight Reconciler. Ошибки и panic тика логируются, цикл не завершается.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/josuejuca/freeswitch-logs/internal/domain/model"
)

// TickRunner — то, что планировщик запускает на каждом срабатывании.
type TickRunner interface {
	Tick(ctx context.Context) (*model.TickOutcome, error)
}

// Scheduler — фоновый сервис периодической сверки.
type Scheduler struct {
	runner     TickRunner
	interval   time.Duration
	timeout    time.Duration
	runOnStart bool
	logger     *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	ticks  sync.WaitGroup
}

// NewScheduler создаёт планировщик.
// timeout — дедлайн одного тика; <= 0 означает interval.
func NewScheduler(
	runner TickRunner,
	interval time.Duration,
	timeout time.Duration,
	runOnStart bool,
	logger *slog.Logger,
) *Scheduler {
	if timeout <= 0 {
		timeout = interval
	}
	return &Scheduler{
		runner:     runner,
		interval:   interval,
		timeout:    timeout,
		runOnStart: runOnStart,
		logger:     logger.With(slog.String("component", "scheduler")),
	}
}

// Start запускает фоновую горутину с периодическим тикером.
// Вызывается один раз при старте приложения.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		defer s.ticks.Wait()

		s.logger.Info("Опрос регистраций запущен",
			slog.String("interval", s.interval.String()),
			slog.String("tick_timeout", s.timeout.String()),
		)

		if s.runOnStart {
			s.fire(ctx)
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Опрос регистраций остановлен")
				return
			case <-ticker.C:
				s.fire(ctx)
			}
		}
	}()
}

// Stop останавливает тикер и ждёт завершения выполняющегося тика.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

// fire запускает тик в отдельной горутине.
// Тик не отменяется остановкой планировщика: он дорабатывает до своего дедлайна.
func (s *Scheduler) fire(ctx context.Context) {
	s.ticks.Add(1)
	go func() {
		defer s.ticks.Done()

		tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		if err := s.runTick(tickCtx); err != nil {
			s.logTickError(err)
		}
	}()
}

// runTick вызывает Tick, превращая panic в ошибку.
func (s *Scheduler) runTick(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ticksTotal.WithLabelValues(tickResultPanic).Inc()
			err = fmt.Errorf("panic в тике: %v", rec)
		}
	}()
	_, err = s.runner.Tick(ctx)
	return err
}

func (s *Scheduler) logTickError(err error) {
	switch {
	case errors.Is(err, ErrTickInProgress):
		s.logger.Debug("Срабатывание пропущено: предыдущий тик не завершён")
	case errors.Is(err, ErrProvider):
		s.logger.Warn("Тик прерван: snapshot не получен, повтор на следующем срабатывании",
			slog.String("error", err.Error()),
		)
	case errors.Is(err, ErrPersistence):
		s.logger.Error("Тик прерван: ошибка хранилища",
			slog.String("error", err.Error()),
		)
	default:
		s.logger.Error("Ошибка тика",
			slog.String("error", err.Error()),
		)
	}
}
