package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType тип кадра реального времени
type MessageType string

const (
	TypePing                 MessageType = "ping"
	TypePong                 MessageType = "pong"
	TypeSyncUpdate           MessageType = "sync_update"
	TypeConflictNotification MessageType = "conflict_notification"
	TypeDeviceStatus         MessageType = "device_status"
	TypeError                MessageType = "error"
)

// Message JSON-конверт кадра
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ErrorData содержимое кадра error
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func encode(typ MessageType, id string, data any, now time.Time) ([]byte, error) {
	msg := Message{Type: typ, ID: id, Timestamp: now.UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}

func decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	if msg.Type == "" {
		return msg, fmt.Errorf("message type is required")
	}
	return msg, nil
}
