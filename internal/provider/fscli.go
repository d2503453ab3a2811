package provider

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/josuejuca/freeswitch-logs/internal/domain/model"
)

// waitDelay — сколько ждать закрытия stdout/stderr после отмены команды.
const waitDelay = time.Second

// FSCLIConfig — параметры запуска fs_cli.
type FSCLIConfig struct {
	// Path — путь к бинарнику fs_cli
	Path string
	// Host, Port, Password — подключение к event socket (опционально)
	Host     string
	Port     int
	Password string
	// Format — json, xml или csv
	Format string
}

// FSCLI — SnapshotProvider поверх fs_cli.
type FSCLI struct {
	cfg    FSCLIConfig
	now    func() time.Time
	logger *slog.Logger
}

// NewFSCLI создаёт провайдер. Пустой Path заменяется на "fs_cli", пустой Format — на json.
func NewFSCLI(cfg FSCLIConfig, logger *slog.Logger) *FSCLI {
	if cfg.Path == "" {
		cfg.Path = "fs_cli"
	}
	if cfg.Format == "" {
		cfg.Format = FormatJSON
	}
	return &FSCLI{
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With(slog.String("component", "fs_cli")),
	}
}

// args собирает аргументы командной строки. Пароль не логируется.
func (p *FSCLI) args() []string {
	var args []string
	if p.cfg.Host != "" {
		args = append(args, "-H", p.cfg.Host)
	}
	if p.cfg.Port > 0 {
		args = append(args, "-P", fmt.Sprintf("%d", p.cfg.Port))
	}
	if p.cfg.Password != "" {
		args = append(args, "-p", p.cfg.Password)
	}
	return append(args, "-x", "show registrations as "+p.cfg.Format)
}

// Fetch запускает fs_cli и разбирает вывод.
// Команда прерывается по дедлайну ctx.
func (p *FSCLI) Fetch(ctx context.Context) ([]model.RegistrationSnapshot, error) {
	start := time.Now()
	defer func() { fetchDuration.Observe(time.Since(start).Seconds()) }()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.cfg.Path, p.args()...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetchFailed, ctxErr)
		}
		return nil, fmt.Errorf("%w: запуск %s: %v: %s",
			ErrFetchFailed, p.cfg.Path, err, strings.TrimSpace(stderr.String()))
	}

	res, err := parse(p.cfg.Format, stdout.Bytes(), p.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	for _, reason := range res.skipped {
		rowsSkippedTotal.Inc()
		p.logger.Warn("Некорректная строка snapshot пропущена",
			slog.String("format", p.cfg.Format),
			slog.String("reason", reason),
		)
	}

	for _, reason := range res.invalid {
		fieldsInvalidTotal.Inc()
		p.logger.Warn("Некорректное поле snapshot обнулено",
			slog.String("format", p.cfg.Format),
			slog.String("reason", reason),
		)
	}

	p.logger.Debug("Snapshot получен",
		slog.Int("rows", len(res.rows)),
		slog.Int("skipped", len(res.skipped)),
		slog.Duration("duration", time.Since(start)),
	)
	return res.rows, nil
}
