package repository

import (
	"context"
	"fmt"

	"github.com/josuejuca/freeswitch-logs/internal/domain/model"
)

// UserRepository — проекции по известным endpoint (объединение обеих таблиц).
// Статус вычисляется из последнего события при каждом чтении.
type UserRepository interface {
	// ListUnique возвращает endpoint с последним появлением и статусом.
	// status == nil — без фильтра.
	ListUnique(ctx context.Context, status *model.PresenceStatus, limit, offset int) ([]*model.UniqueUser, error)
	// Counts возвращает общее число известных endpoint и число online.
	Counts(ctx context.Context) (total, online int, err error)
}

type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий проекций по endpoint.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

// knownUsersCTE — по одной строке на endpoint: последняя сырая строка + последнее событие.
// "Последнее" — по порядку записи (id). Endpoint без событий считается offline.
const knownUsersCTE = `
	WITH last_log AS (
		SELECT DISTINCT ON (reg_user) reg_user, realm, hostname, created_at
		FROM registration_logs
		ORDER BY reg_user, id DESC
	),
	last_event AS (
		SELECT DISTINCT ON (reg_user) reg_user, status, event_time
		FROM presence_events
		ORDER BY reg_user, id DESC
	),
	known AS (
		SELECT
			COALESCE(l.reg_user, e.reg_user)       AS reg_user,
			COALESCE(l.created_at, e.event_time)   AS last_seen,
			COALESCE(l.realm, '')                  AS realm,
			COALESCE(l.hostname, '')               AS hostname,
			COALESCE(e.status, 'offline')          AS status
		FROM last_log l
		FULL OUTER JOIN last_event e ON e.reg_user = l.reg_user
	)`

func (r *userRepo) ListUnique(ctx context.Context, status *model.PresenceStatus, limit, offset int) ([]*model.UniqueUser, error) {
	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}

	query := knownUsersCTE + `
		SELECT reg_user, last_seen, realm, hostname, status
		FROM known
		WHERE $1::text IS NULL OR status = $1::text
		ORDER BY reg_user
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, statusArg, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка endpoint: %w", err)
	}
	defer rows.Close()

	result := make([]*model.UniqueUser, 0)
	for rows.Next() {
		u := &model.UniqueUser{}
		var st string
		if err := rows.Scan(&u.RegUser, &u.LastSeen, &u.Realm, &u.Hostname, &st); err != nil {
			return nil, fmt.Errorf("ошибка сканирования endpoint: %w", err)
		}
		u.Status = model.PresenceStatus(st)
		result = append(result, u)
	}
	return result, rows.Err()
}

func (r *userRepo) Counts(ctx context.Context) (int, int, error) {
	query := knownUsersCTE + `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'online')
		FROM known`

	var total, online int
	if err := r.db.QueryRow(ctx, query).Scan(&total, &online); err != nil {
		return 0, 0, fmt.Errorf("ошибка подсчёта endpoint: %w", err)
	}
	return total, online, nil
}
