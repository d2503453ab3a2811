package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/josuejuca/freeswitch-logs/internal/domain/model"
)

// RegistrationLogRepository — интерфейс для таблицы registration_logs.
type RegistrationLogRepository interface {
	// Insert добавляет строку snapshot. Заполняет ID.
	Insert(ctx context.Context, s *model.RegistrationSnapshot) error
	// List возвращает строки журнала, новые первыми.
	List(ctx context.Context, limit, offset int) ([]*model.RegistrationSnapshot, error)
	// LatestByUser возвращает последнюю строку для reg_user или ErrNotFound.
	LatestByUser(ctx context.Context, regUser string) (*model.RegistrationSnapshot, error)
	// CountByUser возвращает количество строк журнала для reg_user.
	CountByUser(ctx context.Context, regUser string) (int, error)
}

type registrationLogRepo struct {
	db DBTX
}

// NewRegistrationLogRepository создаёт репозиторий сырого журнала регистраций.
func NewRegistrationLogRepository(db DBTX) RegistrationLogRepository {
	return &registrationLogRepo{db: db}
}

const registrationLogColumns = `id, reg_user, realm, token, url, expires, network_ip,
	network_port, network_proto, hostname, metadata, created_at`

func scanRegistration(row pgx.Row) (*model.RegistrationSnapshot, error) {
	s := &model.RegistrationSnapshot{}
	err := row.Scan(
		&s.ID, &s.RegUser, &s.Realm, &s.Token, &s.URL, &s.Expires, &s.NetworkIP,
		&s.NetworkPort, &s.NetworkProto, &s.Hostname, &s.Metadata, &s.CreatedAt,
	)
	return s, err
}

func (r *registrationLogRepo) Insert(ctx context.Context, s *model.RegistrationSnapshot) error {
	query := `
		INSERT INTO registration_logs (reg_user, realm, token, url, expires, network_ip,
			network_port, network_proto, hostname, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		s.RegUser, s.Realm, s.Token, s.URL, s.Expires, s.NetworkIP,
		s.NetworkPort, s.NetworkProto, s.Hostname, s.Metadata, s.CreatedAt,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("ошибка записи snapshot %s: %w", s.RegUser, err)
	}
	return nil
}

func (r *registrationLogRepo) List(ctx context.Context, limit, offset int) ([]*model.RegistrationSnapshot, error) {
	query := `SELECT ` + registrationLogColumns + `
		FROM registration_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала регистраций: %w", err)
	}
	defer rows.Close()

	result := make([]*model.RegistrationSnapshot, 0)
	for rows.Next() {
		s, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования snapshot: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *registrationLogRepo) LatestByUser(ctx context.Context, regUser string) (*model.RegistrationSnapshot, error) {
	query := `SELECT ` + registrationLogColumns + `
		FROM registration_logs
		WHERE reg_user = $1
		ORDER BY id DESC
		LIMIT 1`

	s, err := scanRegistration(r.db.QueryRow(ctx, query, regUser))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения последней регистрации: %w", err)
	}
	return s, nil
}

func (r *registrationLogRepo) CountByUser(ctx context.Context, regUser string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM registration_logs WHERE reg_user = $1`, regUser).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта регистраций: %w", err)
	}
	return count, nil
}
