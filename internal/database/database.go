// Пакет database — PostgreSQL монитора: пул pgxpool с ожиданием доступности
// БД при старте, встроенные миграции golang-migrate и проверка готовности.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/josuejuca/freeswitch-logs/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDirtySchema — предыдущая миграция прервана, схема требует ручного migrate force.
var ErrDirtySchema = errors.New("схема БД в состоянии dirty")

const (
	// Пауза между попытками ping растёт от firstRetryDelay до maxRetryDelay
	firstRetryDelay = 500 * time.Millisecond
	maxRetryDelay   = 5 * time.Second

	readyPingTimeout = 3 * time.Second
)

// Connect открывает пул к PostgreSQL и ждёт ответа на ping до cfg.DBStartupWait.
// PostgreSQL в compose/k8s часто поднимается позже монитора.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("некорректные параметры PostgreSQL: %w", err)
	}
	if cfg.DBMaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.DBMaxConns)
	}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "regmonitor"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("пул PostgreSQL не создан: %w", err)
	}

	attempts, err := waitForPing(ctx, pool.Ping, cfg.DBStartupWait, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("PostgreSQL %s:%d недоступен: %w", cfg.DBHost, cfg.DBPort, err)
	}

	logger.Info("PostgreSQL доступен",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
		slog.Int("max_conns", int(poolCfg.MaxConns)),
		slog.Int("attempts", attempts),
	)
	return pool, nil
}

// waitForPing повторяет ping с растущей паузой, пока не истечёт wait.
// wait == 0 — одна попытка. Возвращает число сделанных попыток.
func waitForPing(ctx context.Context, ping func(context.Context) error, wait time.Duration, logger *slog.Logger) (int, error) {
	deadline := time.Now().Add(wait)
	delay := firstRetryDelay
	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, maxRetryDelay)
		err := ping(pingCtx)
		cancel()
		if err == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}
		if time.Now().Add(delay).After(deadline) {
			return attempt, err
		}

		logger.Warn("PostgreSQL не отвечает, повтор",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", delay),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

// Migrate доводит схему до последней встроенной миграции.
// Схема в состоянии dirty не трогается: возвращается ErrDirtySchema.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("встроенные миграции не прочитаны: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.MigrateURL())
	if err != nil {
		return fmt.Errorf("migrate не инициализирован: %w", err)
	}
	defer m.Close()

	before, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		before = 0
	case err != nil:
		return fmt.Errorf("версия схемы не прочитана: %w", err)
	case dirty:
		return fmt.Errorf("%w: версия %d", ErrDirtySchema, before)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("миграции не применены: %w", err)
	}

	after, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("версия схемы не прочитана: %w", err)
	}
	if after == before {
		logger.Info("Схема БД актуальна", slog.Uint64("version", uint64(after)))
		return nil
	}
	logger.Info("Схема БД обновлена",
		slog.Uint64("from", uint64(before)),
		slog.Uint64("to", uint64(after)),
	)
	return nil
}

// Pinger — то, что умеет ping (pgxpool.Pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessChecker — готовность PostgreSQL для /health/ready.
type ReadinessChecker struct {
	db      Pinger
	timeout time.Duration
}

// NewReadinessChecker создаёт проверку готовности PostgreSQL.
func NewReadinessChecker(db Pinger) *ReadinessChecker {
	return &ReadinessChecker{db: db, timeout: readyPingTimeout}
}

// CheckReady возвращает "ok" или "fail" с сообщением.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	start := time.Now()
	if err := c.db.Ping(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "fail", fmt.Sprintf("PostgreSQL не ответил за %s", c.timeout)
		}
		return "fail", fmt.Sprintf("PostgreSQL недоступен: %v", err)
	}
	return "ok", fmt.Sprintf("ping %s", time.Since(start).Round(time.Millisecond))
}
