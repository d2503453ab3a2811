package model

import "time"

// ActiveCount — живой счётчик регистраций напрямую от PBX (/active).
type ActiveCount struct {
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// LiveSnapshot — текущие регистрации напрямую от PBX (/current).
type LiveSnapshot struct {
	Rows    []RegistrationSnapshot
	TakenAt time.Time
}
