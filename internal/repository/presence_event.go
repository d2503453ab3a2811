package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/josuejuca/freeswitch-logs/internal/domain/model"
)

// PresenceEventRepository — интерфейс для таблицы presence_events.
type PresenceEventRepository interface {
	// Append добавляет событие. Заполняет ID.
	Append(ctx context.Context, e *model.PresenceEvent) error
	// CurrentlyOnline возвращает reg_user, чьё последнее событие — online.
	CurrentlyOnline(ctx context.Context) ([]string, error)
	// LatestOnline возвращает последнее online-событие endpoint или ErrNotFound.
	LatestOnline(ctx context.Context, regUser string) (*model.PresenceEvent, error)
	// LatestByUser возвращает последнее событие endpoint или ErrNotFound.
	LatestByUser(ctx context.Context, regUser string) (*model.PresenceEvent, error)
	// List возвращает события, новые первыми.
	List(ctx context.Context, filters HistoryFilters, limit, offset int) ([]*model.PresenceEvent, error)
	// SessionStats возвращает число завершённых сессий и их среднюю длительность.
	SessionStats(ctx context.Context, regUser string) (sessions int, avgDuration *float64, err error)
}

// HistoryFilters — фильтры истории событий.
type HistoryFilters struct {
	RegUser *string
	Status  *model.PresenceStatus
}

type presenceEventRepo struct {
	db DBTX
}

// NewPresenceEventRepository создаёт репозиторий журнала присутствия.
func NewPresenceEventRepository(db DBTX) PresenceEventRepository {
	return &presenceEventRepo{db: db}
}

const presenceEventColumns = `id, reg_user, status, event_time, duration_seconds`

func scanPresenceEvent(row pgx.Row) (*model.PresenceEvent, error) {
	e := &model.PresenceEvent{}
	var status string
	if err := row.Scan(&e.ID, &e.RegUser, &status, &e.Timestamp, &e.Duration); err != nil {
		return nil, err
	}
	e.Status = model.PresenceStatus(status)
	return e, nil
}

func (r *presenceEventRepo) Append(ctx context.Context, e *model.PresenceEvent) error {
	query := `
		INSERT INTO presence_events (reg_user, status, event_time, duration_seconds)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := r.db.QueryRow(ctx, query, e.RegUser, string(e.Status), e.Timestamp, e.Duration).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("ошибка записи события %s/%s: %w", e.RegUser, e.Status, err)
	}
	return nil
}

// latestEventPerUser — последнее записанное событие каждого endpoint.
// Порядок записи (id), а не event_time: журнал пишет один Reconciler, и шаг
// системных часов назад не должен менять текущий статус.
const latestEventPerUser = `
	SELECT DISTINCT ON (reg_user) reg_user, status, event_time
	FROM presence_events
	ORDER BY reg_user, id DESC`

func (r *presenceEventRepo) CurrentlyOnline(ctx context.Context) ([]string, error) {
	query := `SELECT reg_user FROM (` + latestEventPerUser + `) latest WHERE status = 'online'`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения online endpoint: %w", err)
	}
	defer rows.Close()

	result := make([]string, 0)
	for rows.Next() {
		var regUser string
		if err := rows.Scan(&regUser); err != nil {
			return nil, fmt.Errorf("ошибка сканирования reg_user: %w", err)
		}
		result = append(result, regUser)
	}
	return result, rows.Err()
}

func (r *presenceEventRepo) LatestOnline(ctx context.Context, regUser string) (*model.PresenceEvent, error) {
	query := `SELECT ` + presenceEventColumns + `
		FROM presence_events
		WHERE reg_user = $1 AND status = 'online'
		ORDER BY id DESC
		LIMIT 1`
	return r.one(ctx, query, regUser)
}

func (r *presenceEventRepo) LatestByUser(ctx context.Context, regUser string) (*model.PresenceEvent, error) {
	query := `SELECT ` + presenceEventColumns + `
		FROM presence_events
		WHERE reg_user = $1
		ORDER BY id DESC
		LIMIT 1`
	return r.one(ctx, query, regUser)
}

func (r *presenceEventRepo) one(ctx context.Context, query string, args ...any) (*model.PresenceEvent, error) {
	e, err := scanPresenceEvent(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения события: %w", err)
	}
	return e, nil
}

// buildHistoryWhere строит WHERE-условие и аргументы для фильтрации событий.
func buildHistoryWhere(filters HistoryFilters, startArg int) (string, []any) {
	var conditions []string
	var args []any
	argNum := startArg

	if filters.RegUser != nil {
		conditions = append(conditions, fmt.Sprintf("reg_user = $%d", argNum))
		args = append(args, *filters.RegUser)
		argNum++
	}
	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, string(*filters.Status))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

func (r *presenceEventRepo) List(ctx context.Context, filters HistoryFilters, limit, offset int) ([]*model.PresenceEvent, error) {
	where, args := buildHistoryWhere(filters, 1)
	argNum := len(args) + 1

	query := fmt.Sprintf(`SELECT `+presenceEventColumns+`
		FROM presence_events
		%s
		ORDER BY event_time DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, argNum, argNum+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории: %w", err)
	}
	defer rows.Close()

	result := make([]*model.PresenceEvent, 0)
	for rows.Next() {
		e, err := scanPresenceEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования события: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *presenceEventRepo) SessionStats(ctx context.Context, regUser string) (int, *float64, error) {
	query := `
		SELECT COUNT(duration_seconds), AVG(duration_seconds)::float8
		FROM presence_events
		WHERE reg_user = $1 AND status = 'offline' AND duration_seconds IS NOT NULL`

	var sessions int
	var avg *float64
	if err := r.db.QueryRow(ctx, query, regUser).Scan(&sessions, &avg); err != nil {
		return 0, nil, fmt.Errorf("ошибка расчёта статистики сессий: %w", err)
	}
	return sessions, avg, nil
}
