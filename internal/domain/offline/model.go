package offline

import (
	"encoding/json"
	"time"

	"devicesync/internal/domain/sync"
)

// Kind вид офлайн-операции
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

func (k Kind) Valid() bool {
	switch k {
	case KindCreate, KindUpdate, KindDelete:
		return true
	}
	return false
}

// Operation изменение, записанное устройством без связи
type Operation struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	DeviceID        string          `json:"device_id"`
	DataType        sync.DataType   `json:"data_type"`
	Kind            Kind            `json:"operation"`
	Payload         json.RawMessage `json:"payload"`
	ClientTimestamp time.Time       `json:"client_timestamp"`
	Synced          bool            `json:"synced"`
	CreatedAt       time.Time       `json:"created_at"`
	SyncedAt        *time.Time      `json:"synced_at,omitempty"`
}

// Input операция от клиента
type Input struct {
	DataType        sync.DataType   `json:"data_type"`
	Kind            Kind            `json:"operation"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	ClientTimestamp time.Time       `json:"timestamp"`
}
