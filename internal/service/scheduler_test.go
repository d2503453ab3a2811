package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/josuejuca/freeswitch-logs/internal/domain/model"
)

// funcRunner — TickRunner из функции.
type funcRunner func(ctx context.Context) (*model.TickOutcome, error)

func (f funcRunner) Tick(ctx context.Context) (*model.TickOutcome, error) { return f(ctx) }

func TestScheduler_RunsPeriodically(t *testing.T) {
	var calls atomic.Int32
	runner := funcRunner(func(context.Context) (*model.TickOutcome, error) {
		calls.Add(1)
		return &model.TickOutcome{}, nil
	})

	s := NewScheduler(runner, 20*time.Millisecond, 0, true, discardLogger())
	s.Start(context.Background())

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	after := calls.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "после Stop тики не запускаются")
}

func TestScheduler_RunOnStart(t *testing.T) {
	var calls atomic.Int32
	runner := funcRunner(func(context.Context) (*model.TickOutcome, error) {
		calls.Add(1)
		return nil, nil
	})

	s := NewScheduler(runner, time.Hour, time.Second, true, discardLogger())
	s.Start(context.Background())
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	calls.Store(0)
	s = NewScheduler(runner, time.Hour, time.Second, false, discardLogger())
	s.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	s.Stop()
	assert.Zero(t, calls.Load())
}

// TestScheduler_SurvivesErrorsAndPanics — ошибки и panic тика не останавливают цикл.
func TestScheduler_SurvivesErrorsAndPanics(t *testing.T) {
	var calls atomic.Int32
	runner := funcRunner(func(context.Context) (*model.TickOutcome, error) {
		switch calls.Add(1) {
		case 1:
			panic("nil map")
		case 2:
			return nil, ErrProvider
		case 3:
			return nil, ErrPersistence
		case 4:
			return nil, errors.New("unexpected")
		default:
			return &model.TickOutcome{}, nil
		}
	})

	s := NewScheduler(runner, 10*time.Millisecond, 0, true, discardLogger())
	s.Start(context.Background())
	assert.Eventually(t, func() bool { return calls.Load() >= 6 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()
}

// TestScheduler_HungTickDoesNotBlockScheduling — следующие срабатывания
// происходят, пока первый тик висит.
func TestScheduler_HungTickDoesNotBlockScheduling(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	runner := funcRunner(func(ctx context.Context) (*model.TickOutcome, error) {
		if calls.Add(1) == 1 {
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
		return &model.TickOutcome{}, nil
	})

	s := NewScheduler(runner, 10*time.Millisecond, time.Minute, true, discardLogger())
	s.Start(context.Background())
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	close(release)
	s.Stop()
}

// TestScheduler_TickDeadline — тик получает дедлайн timeout.
func TestScheduler_TickDeadline(t *testing.T) {
	deadlines := make(chan time.Duration, 1)
	runner := funcRunner(func(ctx context.Context) (*model.TickOutcome, error) {
		if d, ok := ctx.Deadline(); ok {
			select {
			case deadlines <- time.Until(d):
			default:
			}
		}
		return nil, nil
	})

	s := NewScheduler(runner, time.Hour, 500*time.Millisecond, true, discardLogger())
	s.Start(context.Background())
	defer s.Stop()

	select {
	case d := <-deadlines:
		assert.LessOrEqual(t, d, 500*time.Millisecond)
		assert.Greater(t, d, time.Duration(0))
	case <-time.After(time.Second):
		t.Fatal("тик не получил дедлайн")
	}
}

// TestScheduler_StopWaitsForInFlightTick — Stop дожидается выполняющегося тика,
// не отменяя его контекст.
func TestScheduler_StopWaitsForInFlightTick(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	var cancelled atomic.Bool
	runner := funcRunner(func(ctx context.Context) (*model.TickOutcome, error) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		cancelled.Store(ctx.Err() != nil)
		finished.Store(true)
		return &model.TickOutcome{}, nil
	})

	s := NewScheduler(runner, time.Hour, time.Second, true, discardLogger())
	s.Start(context.Background())
	<-started
	s.Stop()

	assert.True(t, finished.Load(), "Stop должен дождаться тика")
	assert.False(t, cancelled.Load(), "остановка не отменяет тик")
}

// TestScheduler_WithReconciler — планировщик поверх настоящего Reconciler.
func TestScheduler_WithReconciler(t *testing.T) {
	env := newTestEnv()
	for i := 0; i < 1000; i++ {
		env.provider.push("1001")
	}

	s := NewScheduler(env.rec, 5*time.Millisecond, 0, true, discardLogger())
	s.Start(context.Background())
	assert.Eventually(t, func() bool {
		last, _ := env.rec.LastTick()
		return !last.IsZero()
	}, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Len(t, env.events.byUser("1001"), 1, "стабильный online — одно событие")
}
