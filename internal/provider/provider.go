// Пакет provider — источник snapshot регистраций FreeSWITCH.
//
// SnapshotProvider возвращает набор зарегистрированных endpoint на момент вызова.
// Реализация по умолчанию — FSCLI: запуск fs_cli -x "show registrations as <fmt>"
// и разбор вывода в одном из форматов json, xml, csv.
//
// Пустой список — валидный успешный результат (никто не зарегистрирован).
// Ошибка запуска или неразбираемый вывод — ErrFetchFailed.
// Отдельные некорректные строки пропускаются с WARN и не ломают весь fetch.
package provider

//go:generate mockgen -destination=mock_provider.go -package=provider github.com/josuejuca/freeswitch-logs/internal/provider SnapshotProvider

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/josuejuca/freeswitch-logs/internal/domain/model"
)

// ErrFetchFailed — не удалось получить snapshot от PBX.
var ErrFetchFailed = errors.New("не удалось получить snapshot регистраций")

// Форматы вывода "show registrations as <fmt>".
const (
	FormatJSON = "json"
	FormatXML  = "xml"
	FormatCSV  = "csv"
)

var (
	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rm_provider_fetch_duration_seconds",
		Help:    "Длительность получения snapshot регистраций",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	rowsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rm_provider_rows_skipped_total",
		Help: "Количество некорректных строк snapshot, пропущенных при разборе",
	})

	fieldsInvalidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rm_provider_fields_invalid_total",
		Help: "Количество строк snapshot с неразборчивыми числовыми полями (строка сохраняется, поле обнуляется)",
	})
)

// SnapshotProvider — контракт источника snapshot.
type SnapshotProvider interface {
	// Fetch возвращает текущие регистрации. Дубликаты reg_user возможны.
	Fetch(ctx context.Context) ([]model.RegistrationSnapshot, error)
}
