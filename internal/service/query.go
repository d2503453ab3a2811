// query.go — read-only проекции над журналами регистраций и присутствия.
//
// Все методы без побочных эффектов. Пустое хранилище — пустые списки и нулевые
// счётчики, не ошибка. Статус endpoint вычисляется при чтении из последнего события.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/josuejuca/freeswitch-logs/internal/domain/model"
	"github.com/josuejuca/freeswitch-logs/internal/repository"
)

// recentHistorySize — сколько последних событий попадает в детальную карточку.
const recentHistorySize = 10

// QueryService — сервис чтения для HTTP API.
type QueryService struct {
	logs   repository.RegistrationLogRepository
	events repository.PresenceEventRepository
	users  repository.UserRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewQueryService создаёт сервис чтения.
func NewQueryService(
	logs repository.RegistrationLogRepository,
	events repository.PresenceEventRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *QueryService {
	return &QueryService{
		logs:   logs,
		events: events,
		users:  users,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With(slog.String("component", "query")),
	}
}

// ListRegistrations возвращает сырой журнал, новые строки первыми.
func (s *QueryService) ListRegistrations(ctx context.Context, limit, offset int) ([]*model.RegistrationSnapshot, error) {
	return s.logs.List(ctx, limit, offset)
}

// ListHistory возвращает события присутствия, новые первыми.
// regUser == nil — все endpoint.
func (s *QueryService) ListHistory(ctx context.Context, regUser *string, limit, offset int) ([]*model.PresenceEvent, error) {
	return s.events.List(ctx, repository.HistoryFilters{RegUser: regUser}, limit, offset)
}

// ListUniqueUsers возвращает известные endpoint с вычисленным статусом.
func (s *QueryService) ListUniqueUsers(
	ctx context.Context,
	status *model.PresenceStatus,
	limit, offset int,
) ([]*model.UniqueUser, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: недопустимый статус %q", ErrValidation, *status)
	}
	return s.users.ListUnique(ctx, status, limit, offset)
}

// CountUsers возвращает агрегированные счётчики endpoint.
func (s *QueryService) CountUsers(ctx context.Context) (*model.UserCounts, error) {
	total, online, err := s.users.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return &model.UserCounts{
		TotalUnique:      total,
		CurrentlyOnline:  online,
		CurrentlyOffline: total - online,
		Timestamp:        s.now(),
	}, nil
}

// UserHistory возвращает историю одного endpoint в сокращённой форме.
// Неизвестный endpoint — пустой список.
func (s *QueryService) UserHistory(ctx context.Context, regUser string, limit, offset int) ([]model.HistoryEntry, error) {
	events, err := s.events.List(ctx, repository.HistoryFilters{RegUser: &regUser}, limit, offset)
	if err != nil {
		return nil, err
	}
	return toHistory(events), nil
}

// UserDetails собирает детальную карточку endpoint.
// ErrNotFound — endpoint не встречается ни в одном журнале.
func (s *QueryService) UserDetails(ctx context.Context, regUser string) (*model.UserDetails, error) {
	lastLog, err := s.logs.LatestByUser(ctx, regUser)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	lastEvent, err := s.events.LatestByUser(ctx, regUser)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if lastLog == nil && lastEvent == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, regUser)
	}

	details := &model.UserDetails{
		User:   regUser,
		Status: model.StatusOffline,
	}
	if lastEvent != nil {
		details.Status = lastEvent.Status
		ts := lastEvent.Timestamp
		details.LastSeen = &ts
	}
	if lastLog != nil {
		ts := lastLog.CreatedAt
		details.LastSeen = &ts
		details.Realm = lastLog.Realm
		details.Hostname = lastLog.Hostname
		details.LastRegistration = &model.LastRegistration{
			URL:          lastLog.URL,
			NetworkIP:    lastLog.NetworkIP,
			NetworkPort:  lastLog.NetworkPort,
			NetworkProto: lastLog.NetworkProto,
			Expires:      lastLog.Expires,
		}
	}

	if details.TotalRegistrations, err = s.logs.CountByUser(ctx, regUser); err != nil {
		return nil, err
	}
	if details.TotalSessions, details.AverageSessionDuration, err = s.events.SessionStats(ctx, regUser); err != nil {
		return nil, err
	}

	recent, err := s.events.List(ctx, repository.HistoryFilters{RegUser: &regUser}, recentHistorySize, 0)
	if err != nil {
		return nil, err
	}
	details.RecentHistory = toHistory(recent)

	return details, nil
}

func toHistory(events []*model.PresenceEvent) []model.HistoryEntry {
	out := make([]model.HistoryEntry, 0, len(events))
	for _, e := range events {
		out = append(out, e.ToHistoryEntry())
	}
	return out
}
