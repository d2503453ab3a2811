package model

import "time"

// TickOutcome — результат одного тика сверки.
type TickOutcome struct {
	// TickID — UUID тика для корреляции логов
	TickID      string    `json:"tick_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	// SnapshotSize — строк в ответе провайдера (с дубликатами)
	SnapshotSize int `json:"snapshot_size"`
	// UniqueEndpoints — |S| после схлопывания дубликатов
	UniqueEndpoints int `json:"unique_endpoints"`
	// RawRowsWritten / RawRowsFailed — запись в registration_logs (best-effort)
	RawRowsWritten int `json:"raw_rows_written"`
	RawRowsFailed  int `json:"raw_rows_failed"`
	// WentOnline / WentOffline — endpoint, для которых записано событие
	WentOnline  []string `json:"went_online"`
	WentOffline []string `json:"went_offline"`
	// EventWriteFailures — события, которые не удалось записать
	EventWriteFailures int `json:"event_write_failures"`
	// Inconsistencies — offline без предшествующего online (duration = null)
	Inconsistencies int `json:"inconsistencies"`
}
