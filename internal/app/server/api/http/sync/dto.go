package sync

import (
	"encoding/json"
	"time"

	"devicesync/internal/app/server/api/http/response"
	"devicesync/internal/domain/offline"
	"devicesync/internal/domain/sync"

	"github.com/danielgtaylor/huma/v2"
)

// Payload произвольный JSON из тела запроса, хранится байт в байт
type Payload json.RawMessage

func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	*p = append((*p)[:0], data...)
	return nil
}

// Schema любое JSON значение
func (Payload) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{}
}

// Raw литерал null считается отсутствующим значением
func (p Payload) Raw() json.RawMessage {
	if len(p) == 0 || string(p) == "null" {
		return nil
	}
	return json.RawMessage(p)
}

// SyncItem поля необязательны на уровне схемы: ошибка в одном элементе
// не должна отклонять весь пакет
type SyncItem struct {
	DeviceID     string        `json:"device_id,omitempty" doc:"Defaults to the authenticated device"`
	DataType     sync.DataType `json:"data_type,omitempty" doc:"progress, preferences, content, companion or assessment"`
	Payload      Payload       `json:"payload,omitempty"`
	Version      int           `json:"version,omitempty"`
	LastModified time.Time     `json:"last_modified,omitempty"`
}

type syncInput struct {
	Body struct {
		Items []SyncItem `json:"items" minItems:"1"`
	}
}

type resultOutput struct {
	Body response.Envelope[*sync.Result]
}

type dataInput struct {
	DataType string `query:"data_type"`
	DeviceID string `query:"device_id"`
}

type dataOutput struct {
	Body response.Envelope[[]*sync.Record]
}

type conflictsOutput struct {
	Body response.Envelope[[]*sync.Conflict]
}

type ResolveBody struct {
	ConflictID string        `json:"conflict_id" minLength:"1"`
	Strategy   sync.Strategy `json:"resolution" doc:"server_wins, client_wins or merge"`
	MergedData Payload       `json:"merged_data,omitempty" doc:"Required for client_wins and merge"`
}

type resolveInput struct {
	Body ResolveBody
}

type recordOutput struct {
	Body response.Envelope[*sync.Record]
}

type OfflineItem struct {
	DataType  sync.DataType `json:"data_type"`
	Operation offline.Kind  `json:"operation" doc:"create, update or delete"`
	Payload   Payload       `json:"payload,omitempty"`
	Timestamp time.Time     `json:"timestamp,omitempty" doc:"Client time of the change; defaults to server time"`
}

type offlineInput struct {
	Body struct {
		Operations []OfflineItem `json:"operations" minItems:"1"`
	}
}

type operationsOutput struct {
	Body response.Envelope[[]*offline.Operation]
}
