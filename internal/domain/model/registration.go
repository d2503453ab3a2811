// Пакет model — доменные модели монитора регистраций FreeSWITCH.
// RegistrationSnapshot — маппинг таблицы registration_logs,
// PresenceEvent — маппинг таблицы presence_events.
package model

import "time"

// RegistrationSnapshot — одна строка вывода "show registrations" на момент опроса.
// Пишется в registration_logs без изменений (append-only, только для аудита).
type RegistrationSnapshot struct {
	// ID — порядковый номер строки в registration_logs (0 до записи)
	ID int64 `json:"id,omitempty"`
	// RegUser — идентификатор добавочного номера (reg_user)
	RegUser string `json:"reg_user"`
	// Realm — SIP realm (домен)
	Realm string `json:"realm"`
	// Token — токен регистрации (Call-ID)
	Token string `json:"token"`
	// URL — contact URL endpoint
	URL string `json:"url"`
	// Expires — срок действия регистрации в секундах, как его сообщает PBX
	Expires int64 `json:"expires"`
	// NetworkIP — адрес, с которого пришла регистрация
	NetworkIP string `json:"network_ip"`
	// NetworkPort — порт, с которого пришла регистрация
	NetworkPort int `json:"network_port"`
	// NetworkProto — транспорт: udp, tcp, tls, ws, wss
	NetworkProto string `json:"network_proto"`
	// Hostname — хост FreeSWITCH, сообщивший регистрацию
	Hostname string `json:"hostname"`
	// Metadata — непрозрачные метаданные (опционально)
	Metadata *string `json:"metadata"`
	// CreatedAt — время снятия snapshot
	CreatedAt time.Time `json:"created_at"`
}

// LastRegistration — последние контактные данные endpoint для детальной карточки.
type LastRegistration struct {
	URL          string `json:"url"`
	NetworkIP    string `json:"network_ip"`
	NetworkPort  int    `json:"network_port"`
	NetworkProto string `json:"network_proto"`
	Expires      int64  `json:"expires"`
}
