// Пакет config — загрузка и валидация конфигурации монитора регистраций
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые форматы вывода "show registrations".
var validSnapshotFormats = map[string]bool{"json": true, "xml": true, "csv": true}

// Config содержит все параметры конфигурации монитора.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Разрешённые CORS origins (через запятую, "*" — все)
	CORSOrigins []string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Максимум соединений пула
	DBMaxConns int
	// Ожидание доступности PostgreSQL при старте (0 — одна попытка)
	DBStartupWait time.Duration

	// --- Опрос FreeSWITCH ---

	// Интервал опроса регистраций
	PollInterval time.Duration
	// Дедлайн одного тика (по умолчанию равен PollInterval)
	TickTimeout time.Duration
	// Выполнить первый тик сразу при старте
	PollOnStart bool
	// Путь к fs_cli
	FSCLIPath string
	// Хост/порт/пароль event socket (опционально, иначе — настройки fs_cli)
	FSCLIHost     string
	FSCLIPort     int
	FSCLIPassword string
	// Формат вывода show registrations: json, xml, csv
	SnapshotFormat string
	// TTL кэша live-запросов (/active, /current)
	LiveCacheTTL time.Duration
	// Дедлайн вызова fs_cli для live-запросов
	LiveFetchTimeout time.Duration
	// Через сколько без успешного тика readiness становится degraded
	ReadyStaleAfter time.Duration

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// RM_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("RM_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("RM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("RM_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// RM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("RM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("RM_LOG_LEVEL: %w", err)
	}

	// RM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("RM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("RM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// RM_CORS_ORIGINS — по умолчанию "*", как у исходного API
	cfg.CORSOrigins = parseCSV(getEnvDefault("RM_CORS_ORIGINS", "*"))

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("RM_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RM_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("RM_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RM_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("RM_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RM_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("RM_DB_HOST")
	if err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("RM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("RM_DB_PORT: %w", err)
	}
	cfg.DBName, err = getEnvRequired("RM_DB_NAME")
	if err != nil {
		return nil, err
	}
	cfg.DBUser, err = getEnvRequired("RM_DB_USER")
	if err != nil {
		return nil, err
	}
	cfg.DBPassword, err = getEnvRequired("RM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// RM_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("RM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("RM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// RM_DB_MAX_CONNS — один писатель-Reconciler плюс параллельные API-запросы
	cfg.DBMaxConns, err = getEnvInt("RM_DB_MAX_CONNS", 8)
	if err != nil {
		return nil, fmt.Errorf("RM_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns < 2 {
		return nil, fmt.Errorf("RM_DB_MAX_CONNS: значение %d меньше минимального 2", cfg.DBMaxConns)
	}

	// RM_DB_STARTUP_WAIT — сколько ждать PostgreSQL при старте
	cfg.DBStartupWait, err = getEnvDuration("RM_DB_STARTUP_WAIT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RM_DB_STARTUP_WAIT: %w", err)
	}
	if cfg.DBStartupWait < 0 {
		return nil, fmt.Errorf("RM_DB_STARTUP_WAIT: значение не может быть отрицательным")
	}

	// --- Опрос FreeSWITCH ---

	// RM_POLL_INTERVAL — интервал опроса (по умолчанию 5s)
	cfg.PollInterval, err = getEnvDuration("RM_POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RM_POLL_INTERVAL: %w", err)
	}
	if cfg.PollInterval < 100*time.Millisecond {
		return nil, fmt.Errorf("RM_POLL_INTERVAL: значение %s меньше минимального 100ms", cfg.PollInterval)
	}

	// RM_TICK_TIMEOUT — дедлайн тика (по умолчанию = RM_POLL_INTERVAL)
	cfg.TickTimeout, err = getEnvDuration("RM_TICK_TIMEOUT", cfg.PollInterval)
	if err != nil {
		return nil, fmt.Errorf("RM_TICK_TIMEOUT: %w", err)
	}
	if cfg.TickTimeout <= 0 {
		return nil, fmt.Errorf("RM_TICK_TIMEOUT: значение должно быть положительным")
	}

	cfg.PollOnStart, err = getEnvBool("RM_POLL_ON_START", true)
	if err != nil {
		return nil, fmt.Errorf("RM_POLL_ON_START: %w", err)
	}

	cfg.FSCLIPath = getEnvDefault("RM_FSCLI_PATH", "fs_cli")
	cfg.FSCLIHost = getEnvDefault("RM_FSCLI_HOST", "")
	cfg.FSCLIPort, err = getEnvInt("RM_FSCLI_PORT", 0)
	if err != nil {
		return nil, fmt.Errorf("RM_FSCLI_PORT: %w", err)
	}
	cfg.FSCLIPassword = getEnvDefault("RM_FSCLI_PASSWORD", "")

	cfg.SnapshotFormat = strings.ToLower(getEnvDefault("RM_SNAPSHOT_FORMAT", "json"))
	if !validSnapshotFormats[cfg.SnapshotFormat] {
		return nil, fmt.Errorf("RM_SNAPSHOT_FORMAT: недопустимое значение %q, допустимые: json, xml, csv", cfg.SnapshotFormat)
	}

	cfg.LiveCacheTTL, err = getEnvDuration("RM_LIVE_CACHE_TTL", 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RM_LIVE_CACHE_TTL: %w", err)
	}

	cfg.LiveFetchTimeout, err = getEnvDuration("RM_LIVE_FETCH_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RM_LIVE_FETCH_TIMEOUT: %w", err)
	}
	if cfg.LiveFetchTimeout <= 0 {
		return nil, fmt.Errorf("RM_LIVE_FETCH_TIMEOUT: значение должно быть положительным")
	}

	// RM_READY_STALE_AFTER — по умолчанию три интервала опроса
	cfg.ReadyStaleAfter, err = getEnvDuration("RM_READY_STALE_AFTER", 3*cfg.PollInterval)
	if err != nil {
		return nil, fmt.Errorf("RM_READY_STALE_AFTER: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("RM_DEPHEALTH_GROUP", "regmonitor")
	cfg.DephealthCheckInterval, err = getEnvDuration("RM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("RM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL для pgxpool.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов topologymetrics).
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.User(c.DBUser),
		Host:   fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:   "/" + c.DBName,
	}
	return u.String()
}

// MigrateURL возвращает URL для golang-migrate (драйвер pgx5).
func (c *Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 5s, 1m, 500ms)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
