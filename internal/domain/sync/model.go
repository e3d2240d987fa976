package sync

import (
	"encoding/json"
	"time"
)

// DataType тип синхронизируемых данных
type DataType string

const (
	DataProgress    DataType = "progress"
	DataPreferences DataType = "preferences"
	DataContent     DataType = "content"
	DataCompanion   DataType = "companion"
	DataAssessment  DataType = "assessment"
)

func (d DataType) Valid() bool {
	switch d {
	case DataProgress, DataPreferences, DataContent, DataCompanion, DataAssessment:
		return true
	}
	return false
}

// Status статус записи синхронизации
type Status string

const (
	StatusSynced   Status = "synced"
	StatusPending  Status = "pending"
	StatusConflict Status = "conflict"
)

// Strategy способ разрешения конфликта
type Strategy string

const (
	StrategyServerWins Strategy = "server_wins"
	StrategyClientWins Strategy = "client_wins"
	StrategyMerge      Strategy = "merge"
)

func (s Strategy) Valid() bool {
	switch s {
	case StrategyServerWins, StrategyClientWins, StrategyMerge:
		return true
	}
	return false
}

// Record запись синхронизации
type Record struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	DeviceID     string          `json:"device_id"`
	DataType     DataType        `json:"data_type"`
	Payload      json.RawMessage `json:"payload"`
	Version      int             `json:"version"`
	LastModified time.Time       `json:"last_modified"`
	Status       Status          `json:"status"`
	Resolution   Strategy        `json:"resolution_strategy,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// Последнее отклоненное изменение клиента, пока запись в конфликте
	ClientPayload json.RawMessage `json:"-"`
	ClientVersion int             `json:"-"`
	ConflictAt    *time.Time      `json:"-"`
}

// Conflict описание конфликта; отдельно не хранится, строится по записи в статусе conflict
type Conflict struct {
	ID            string          `json:"conflict_id"`
	UserID        string          `json:"user_id"`
	DeviceID      string          `json:"device_id"`
	DataType      DataType        `json:"data_type"`
	ServerPayload json.RawMessage `json:"server_payload"`
	ClientPayload json.RawMessage `json:"client_payload,omitempty"`
	ServerVersion int             `json:"server_version"`
	ClientVersion int             `json:"client_version"`
	DetectedAt    time.Time       `json:"detected_at"`
}

// ConflictFromRecord собирает описание конфликта по сохраненной записи
func ConflictFromRecord(r *Record) *Conflict {
	c := &Conflict{
		ID:            r.ID,
		UserID:        r.UserID,
		DeviceID:      r.DeviceID,
		DataType:      r.DataType,
		ServerPayload: r.Payload,
		ClientPayload: r.ClientPayload,
		ServerVersion: r.Version,
		ClientVersion: r.ClientVersion,
		DetectedAt:    r.UpdatedAt,
	}
	if r.ConflictAt != nil {
		c.DetectedAt = *r.ConflictAt
	}
	return c
}

// Filter область выборки данных пользователя
type Filter struct {
	DataType DataType
	DeviceID string
}
