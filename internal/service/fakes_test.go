package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/josuejuca/freeswitch-logs/internal/domain/model"
	"github.com/josuejuca/freeswitch-logs/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testClock — управляемые часы для детерминированных тиков.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// scriptedProvider отдаёт заранее заданные snapshot по очереди.
// Элемент nil с ошибкой — сбой провайдера.
type scriptedProvider struct {
	mu    sync.Mutex
	steps []providerStep
	calls int
}

type providerStep struct {
	users []string
	err   error
}

func (p *scriptedProvider) push(users ...string) *scriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, providerStep{users: users})
	return p
}

func (p *scriptedProvider) fail(err error) *scriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, providerStep{err: err})
	return p
}

func (p *scriptedProvider) Fetch(context.Context) ([]model.RegistrationSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls >= len(p.steps) {
		return nil, errors.New("сценарий провайдера исчерпан")
	}
	step := p.steps[p.calls]
	p.calls++
	if step.err != nil {
		return nil, step.err
	}
	rows := make([]model.RegistrationSnapshot, 0, len(step.users))
	for _, u := range step.users {
		rows = append(rows, model.RegistrationSnapshot{
			RegUser:      u,
			Realm:        "pbx.example.com",
			URL:          "sofia/internal/sip:" + u + "@10.0.0.5:5060",
			Expires:      3600,
			NetworkIP:    "10.0.0.5",
			NetworkPort:  5060,
			NetworkProto: "udp",
			Hostname:     "fs01",
		})
	}
	return rows, nil
}

// memLogs — in-memory registration_logs.
type memLogs struct {
	mu        sync.Mutex
	rows      []model.RegistrationSnapshot
	insertErr error
}

func (m *memLogs) Insert(_ context.Context, s *model.RegistrationSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	s.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, *s)
	return nil
}

func (m *memLogs) List(_ context.Context, limit, offset int) ([]*model.RegistrationSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.RegistrationSnapshot, 0)
	for i := len(m.rows) - 1; i >= 0; i-- {
		row := m.rows[i]
		out = append(out, &row)
	}
	return page(out, limit, offset), nil
}

func (m *memLogs) LatestByUser(_ context.Context, regUser string) (*model.RegistrationSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].RegUser == regUser {
			row := m.rows[i]
			return &row, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memLogs) CountByUser(_ context.Context, regUser string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.RegUser == regUser {
			n++
		}
	}
	return n, nil
}

func (m *memLogs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// memEvents — in-memory presence_events. События хранятся в порядке вставки,
// время внутри одного endpoint не убывает.
type memEvents struct {
	mu     sync.Mutex
	events []model.PresenceEvent

	appendErr       map[string]error
	onlineErr       error
	latestOnlineErr map[string]error
}

func (m *memEvents) Append(_ context.Context, e *model.PresenceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.appendErr[e.RegUser]; err != nil {
		return err
	}
	e.ID = int64(len(m.events) + 1)
	m.events = append(m.events, *e)
	return nil
}

func (m *memEvents) latest() map[string]model.PresenceEvent {
	last := make(map[string]model.PresenceEvent)
	for _, e := range m.events {
		last[e.RegUser] = e
	}
	return last
}

func (m *memEvents) CurrentlyOnline(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.onlineErr != nil {
		return nil, m.onlineErr
	}
	out := make([]string, 0)
	for u, e := range m.latest() {
		if e.Status == model.StatusOnline {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memEvents) LatestOnline(_ context.Context, regUser string) (*model.PresenceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.latestOnlineErr[regUser]; err != nil {
		return nil, err
	}
	for i := len(m.events) - 1; i >= 0; i-- {
		if e := m.events[i]; e.RegUser == regUser && e.Status == model.StatusOnline {
			return &e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memEvents) LatestByUser(_ context.Context, regUser string) (*model.PresenceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.latest()[regUser]; ok {
		return &e, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memEvents) List(_ context.Context, f repository.HistoryFilters, limit, offset int) ([]*model.PresenceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.PresenceEvent, 0)
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if f.RegUser != nil && e.RegUser != *f.RegUser {
			continue
		}
		if f.Status != nil && e.Status != *f.Status {
			continue
		}
		out = append(out, &e)
	}
	return page(out, limit, offset), nil
}

func (m *memEvents) SessionStats(_ context.Context, regUser string) (int, *float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	var sum int64
	for _, e := range m.events {
		if e.RegUser == regUser && e.Status == model.StatusOffline && e.Duration != nil {
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

// byUser возвращает события endpoint в порядке времени.
func (m *memEvents) byUser(regUser string) []model.PresenceEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PresenceEvent
	for _, e := range m.events {
		if e.RegUser == regUser {
			out = append(out, e)
		}
	}
	return out
}

func (m *memEvents) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// memUsers — проекция известных endpoint поверх memLogs и memEvents.
type memUsers struct {
	logs   *memLogs
	events *memEvents
}

func (m *memUsers) known() []*model.UniqueUser {
	byUser := make(map[string]*model.UniqueUser)
	m.logs.mu.Lock()
	for _, r := range m.logs.rows {
		byUser[r.RegUser] = &model.UniqueUser{
			RegUser: r.RegUser, LastSeen: r.CreatedAt, Realm: r.Realm, Hostname: r.Hostname,
			Status: model.StatusOffline,
		}
	}
	m.logs.mu.Unlock()

	m.events.mu.Lock()
	for u, e := range m.events.latest() {
		user, ok := byUser[u]
		if !ok {
			user = &model.UniqueUser{RegUser: u, LastSeen: e.Timestamp}
			byUser[u] = user
		}
		user.Status = e.Status
	}
	m.events.mu.Unlock()

	out := make([]*model.UniqueUser, 0, len(byUser))
	for _, u := range byUser {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegUser < out[j].RegUser })
	return out
}

func (m *memUsers) ListUnique(_ context.Context, status *model.PresenceStatus, limit, offset int) ([]*model.UniqueUser, error) {
	out := make([]*model.UniqueUser, 0)
	for _, u := range m.known() {
		if status == nil || u.Status == *status {
			out = append(out, u)
		}
	}
	return page(out, limit, offset), nil
}

func (m *memUsers) Counts(context.Context) (int, int, error) {
	var total, online int
	for _, u := range m.known() {
		total++
		if u.Status == model.StatusOnline {
			online++
		}
	}
	return total, online, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}

// testEnv — Reconciler поверх in-memory хранилищ с управляемыми часами.
type testEnv struct {
	clock    *testClock
	provider *scriptedProvider
	logs     *memLogs
	events   *memEvents
	rec      *Reconciler
	query    *QueryService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		clock:    newTestClock(),
		provider: &scriptedProvider{},
		logs:     &memLogs{},
		events:   &memEvents{},
	}
	env.rec = NewReconciler(env.provider, env.logs, env.events, discardLogger())
	env.rec.now = env.clock.Now
	env.query = NewQueryService(env.logs, env.events, &memUsers{logs: env.logs, events: env.events}, discardLogger())
	env.query.now = env.clock.Now
	return env
}
