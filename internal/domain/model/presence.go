package model

import "time"

// PresenceStatus — статус присутствия endpoint.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

// Valid проверяет, что статус — online или offline.
func (s PresenceStatus) Valid() bool {
	return s == StatusOnline || s == StatusOffline
}

// PresenceEvent — обнаруженный переход online/offline одного endpoint.
// Для одного reg_user статусы строго чередуются в порядке времени.
type PresenceEvent struct {
	ID      int64          `json:"id,omitempty"`
	RegUser string         `json:"reg_user"`
	Status  PresenceStatus `json:"status"`
	// Timestamp — время обнаружения перехода (now тика)
	Timestamp time.Time `json:"timestamp"`
	// Duration — длительность сессии в секундах, только для offline
	Duration *int64 `json:"duration"`
}

// HistoryEntry — сокращённая форма события для /users/{id}/history.
type HistoryEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Status    PresenceStatus `json:"status"`
	Duration  *int64         `json:"duration"`
}

// ToHistoryEntry отбрасывает reg_user и id.
func (e *PresenceEvent) ToHistoryEntry() HistoryEntry {
	return HistoryEntry{
		Timestamp: e.Timestamp,
		Status:    e.Status,
		Duration:  e.Duration,
	}
}

// UniqueUser — endpoint, когда-либо замеченный монитором, с вычисленным статусом.
type UniqueUser struct {
	RegUser  string         `json:"reg_user"`
	LastSeen time.Time      `json:"last_seen"`
	Realm    string         `json:"realm"`
	Hostname string         `json:"hostname"`
	Status   PresenceStatus `json:"status"`
}

// UserCounts — агрегированные счётчики endpoint.
type UserCounts struct {
	TotalUnique      int       `json:"total_unique"`
	CurrentlyOnline  int       `json:"currently_online"`
	CurrentlyOffline int       `json:"currently_offline"`
	Timestamp        time.Time `json:"timestamp"`
}

// UserDetails — полная карточка endpoint.
type UserDetails struct {
	User                   string            `json:"user"`
	Status                 PresenceStatus    `json:"status"`
	LastSeen               *time.Time        `json:"last_seen"`
	Realm                  string            `json:"realm"`
	Hostname               string            `json:"hostname"`
	TotalRegistrations     int               `json:"total_registrations"`
	TotalSessions          int               `json:"total_sessions"`
	AverageSessionDuration *float64          `json:"average_session_duration"`
	RecentHistory          []HistoryEntry    `json:"recent_history"`
	LastRegistration       *LastRegistration `json:"last_registration"`
}
