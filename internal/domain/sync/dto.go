package sync

import (
	"encoding/json"
	"time"
)

// Request изменение одного типа данных от устройства
type Request struct {
	DeviceID     string          `json:"device_id"`
	DataType     DataType        `json:"data_type"`
	Payload      json.RawMessage `json:"payload"`
	Version      int             `json:"version"`
	LastModified time.Time       `json:"last_modified"`
}

// ItemError элемент пакета, который не удалось обработать
type ItemError struct {
	Index    int      `json:"index"`
	DeviceID string   `json:"device_id"`
	DataType DataType `json:"data_type"`
	Error    string   `json:"error"`
}

// Result результат пакетной синхронизации.
// len(Synced)+len(Conflicts)+len(Failed) равно числу запросов в пакете.
type Result struct {
	Synced    []*Record   `json:"synced_data"`
	Conflicts []*Conflict `json:"conflicts"`
	Failed    []ItemError `json:"failed,omitempty"`
}

// ResolveRequest запрос на разрешение конфликта
type ResolveRequest struct {
	ConflictID    string          `json:"conflict_id"`
	Strategy      Strategy        `json:"resolution"`
	MergedPayload json.RawMessage `json:"merged_data,omitempty"`
}

// UpdateEvent рассылается остальным устройствам пользователя после синхронизации записи
type UpdateEvent struct {
	SourceDeviceID string  `json:"source_device_id"`
	Record         *Record `json:"record"`
}

const (
	ConflictDetected = "detected"
	ConflictResolved = "resolved"
)

// ConflictEvent уведомление о конфликте или его разрешении
type ConflictEvent struct {
	Event    string    `json:"event"`
	Conflict *Conflict `json:"conflict,omitempty"`
	Record   *Record   `json:"record,omitempty"`
	Strategy Strategy  `json:"resolution,omitempty"`
}
