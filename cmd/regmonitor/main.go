// main.go — точка входа монитора регистраций FreeSWITCH.
// Инициализирует все компоненты и запускает опрос fs_cli и HTTP-сервер.
package main

import (
	"context"
	"log/slog"
	"os"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/josuejuca/freeswitch-logs/internal/api/handlers"
	"github.com/josuejuca/freeswitch-logs/internal/api/middleware"
	"github.com/josuejuca/freeswitch-logs/internal/api/openapi"
	"github.com/josuejuca/freeswitch-logs/internal/config"
	"github.com/josuejuca/freeswitch-logs/internal/database"
	"github.com/josuejuca/freeswitch-logs/internal/provider"
	"github.com/josuejuca/freeswitch-logs/internal/repository"
	"github.com/josuejuca/freeswitch-logs/internal/server"
	"github.com/josuejuca/freeswitch-logs/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Монитор регистраций запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("poll_interval", cfg.PollInterval.String()),
		slog.String("snapshot_format", cfg.SnapshotFormat),
	)

	if os.Getenv("RM_DEPHEALTH_GROUP") == "" {
		logger.Warn("RM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Подключение к PostgreSQL (pgxpool), ожидание до RM_DB_STARTUP_WAIT
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4. Применение миграций БД
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		pool.Close()
		os.Exit(1)
	}

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Провайдер snapshot (fs_cli)
	fsProvider := provider.NewFSCLI(provider.FSCLIConfig{
		Path:     cfg.FSCLIPath,
		Host:     cfg.FSCLIHost,
		Port:     cfg.FSCLIPort,
		Password: cfg.FSCLIPassword,
		Format:   cfg.SnapshotFormat,
	}, logger)

	// 6. Репозитории
	logRepo := repository.NewRegistrationLogRepository(pool)
	eventRepo := repository.NewPresenceEventRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	// 7. Сервисы
	reconciler := service.NewReconciler(fsProvider, logRepo, eventRepo, logger)
	querySvc := service.NewQueryService(logRepo, eventRepo, userRepo, logger)
	liveSvc := service.NewLiveService(fsProvider, cfg.LiveCacheTTL, cfg.LiveFetchTimeout, logger)
	scheduler := service.NewScheduler(reconciler, cfg.PollInterval, cfg.TickTimeout, cfg.PollOnStart, logger)

	// 8. Запуск опроса
	scheduler.Start(ctx)

	// 8.1 topologymetrics — мониторинг PostgreSQL
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"regmonitor",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
		dephealthSvc = nil
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 9. Health и API handlers
	healthHandler := handlers.NewHealthHandler(
		database.NewReadinessChecker(pool),
		handlers.NewPollerChecker(reconciler, cfg.ReadyStaleAfter),
	)
	apiHandler := handlers.NewAPIHandler(healthHandler, querySvc, liveSvc, logger)

	// 10. Валидация запросов по OpenAPI контракту
	doc, err := openapi.Load(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI контракта", slog.String("error", err.Error()))
		os.Exit(1)
	}
	validator, err := middleware.OpenAPIValidator(doc, logger)
	if err != nil {
		logger.Error("Ошибка инициализации валидатора", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 11. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler,
		chimiddleware.RequestID,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
		middleware.CORS(cfg.CORSOrigins),
		validator,
	)
	runErr := srv.Run()
	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
	}

	// 12. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	scheduler.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	if runErr != nil {
		pgDB.Close()
		pool.Close()
		os.Exit(1)
	}
	logger.Info("Монитор регистраций остановлен")
}
