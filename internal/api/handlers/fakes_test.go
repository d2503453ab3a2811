package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/josuejuca/freeswitch-logs/internal/api/router"
	"github.com/josuejuca/freeswitch-logs/internal/domain/model"
	"github.com/josuejuca/freeswitch-logs/internal/provider"
	"github.com/josuejuca/freeswitch-logs/internal/repository"
	"github.com/josuejuca/freeswitch-logs/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubLogs — registration_logs с фиксированными строками (новые первыми).
type stubLogs struct {
	mu                  sync.Mutex
	rows                []*model.RegistrationSnapshot
	err                 error
	gotLimit, gotOffset int
}

func (s *stubLogs) Insert(context.Context, *model.RegistrationSnapshot) error { return nil }

func (s *stubLogs) List(_ context.Context, limit, offset int) ([]*model.RegistrationSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gotLimit, s.gotOffset = limit, offset
	if s.err != nil {
		return nil, s.err
	}
	return s.rows, nil
}

func (s *stubLogs) LatestByUser(_ context.Context, regUser string) (*model.RegistrationSnapshot, error) {
	for _, r := range s.rows {
		if r.RegUser == regUser {
			return r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubLogs) CountByUser(_ context.Context, regUser string) (int, error) {
	n := 0
	for _, r := range s.rows {
		if r.RegUser == regUser {
			n++
		}
	}
	return n, nil
}

// stubEvents — presence_events с фиксированными событиями (новые первыми).
type stubEvents struct {
	mu        sync.Mutex
	events    []*model.PresenceEvent
	gotFilter repository.HistoryFilters
}

func (s *stubEvents) Append(context.Context, *model.PresenceEvent) error { return nil }

func (s *stubEvents) CurrentlyOnline(context.Context) ([]string, error) { return nil, nil }

func (s *stubEvents) LatestOnline(context.Context, string) (*model.PresenceEvent, error) {
	return nil, repository.ErrNotFound
}

func (s *stubEvents) LatestByUser(_ context.Context, regUser string) (*model.PresenceEvent, error) {
	for _, e := range s.events {
		if e.RegUser == regUser {
			return e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubEvents) List(_ context.Context, f repository.HistoryFilters, limit, offset int) ([]*model.PresenceEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gotFilter = f
	out := make([]*model.PresenceEvent, 0)
	for _, e := range s.events {
		if f.RegUser != nil && e.RegUser != *f.RegUser {
			continue
		}
		out = append(out, e)
	}
	if offset >= len(out) {
		return []*model.PresenceEvent{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubEvents) SessionStats(_ context.Context, regUser string) (int, *float64, error) {
	var n int
	var sum int64
	for _, e := range s.events {
		if e.RegUser == regUser && e.Duration != nil {
			n++
			sum += *e.Duration
		}
	}
	if n == 0 {
		return 0, nil, nil
	}
	avg := float64(sum) / float64(n)
	return n, &avg, nil
}

// stubUsers — проекция endpoint с заданными счётчиками.
type stubUsers struct {
	mu            sync.Mutex
	users         []*model.UniqueUser
	total, online int
	gotStatus     *model.PresenceStatus
}

func (s *stubUsers) ListUnique(_ context.Context, status *model.PresenceStatus, _, _ int) ([]*model.UniqueUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gotStatus = status
	out := make([]*model.UniqueUser, 0)
	for _, u := range s.users {
		if status == nil || u.Status == *status {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *stubUsers) Counts(context.Context) (int, int, error) {
	return s.total, s.online, nil
}

// testAPI — APIHandler поверх заглушек, смонтированный на chi.
type testAPI struct {
	logs   *stubLogs
	events *stubEvents
	users  *stubUsers
	mux    http.Handler
}

func newTestAPI(t *testing.T, p provider.SnapshotProvider) *testAPI {
	t.Helper()
	api := &testAPI{logs: &stubLogs{}, events: &stubEvents{}, users: &stubUsers{}}

	logger := discardLogger()
	query := service.NewQueryService(api.logs, api.events, api.users, logger)
	live := service.NewLiveService(p, 0, 0, logger)
	health := NewHealthHandler(readyStub{"ok", ""}, readyStub{"ok", ""})

	h := NewAPIHandler(health, query, live, logger)
	api.mux = router.HandlerFromMux(h, chi.NewRouter())
	return api
}

func (a *testAPI) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

// readyStub — ReadinessChecker с фиксированным ответом.
type readyStub struct {
	status, message string
}

func (r readyStub) CheckReady() (string, string) { return r.status, r.message }

// tickStub — TickStatus с фиксированным состоянием.
type tickStub struct {
	last time.Time
	err  error
}

func (s tickStub) LastTick() (time.Time, error) { return s.last, s.err }
