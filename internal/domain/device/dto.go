package device

import "devicesync/internal/domain/token"

// RegisterRequest данные регистрации устройства
type RegisterRequest struct {
	DeviceID     string       `json:"device_id,omitempty"`
	Name         string       `json:"name"`
	Type         Type         `json:"device_type"`
	Platform     Platform     `json:"platform"`
	Model        string       `json:"model,omitempty"`
	OSVersion    string       `json:"os_version,omitempty"`
	AppVersion   string       `json:"app_version,omitempty"`
	Capabilities Capabilities `json:"capabilities"`
	Metadata     Metadata     `json:"metadata"`
}

// UpdateRequest частичное обновление устройства
type UpdateRequest struct {
	Name         *string            `json:"name,omitempty"`
	Model        *string            `json:"model,omitempty"`
	OSVersion    *string            `json:"os_version,omitempty"`
	AppVersion   *string            `json:"app_version,omitempty"`
	Capabilities *CapabilitiesPatch `json:"capabilities,omitempty"`
	Metadata     *MetadataPatch     `json:"metadata,omitempty"`
}

// Registration результат регистрации
type Registration struct {
	Device    *Device     `json:"device"`
	AuthToken token.Token `json:"auth_token"`
	Warnings  []string    `json:"warnings,omitempty"`
}

// StatusEvent уведомление об изменении статуса устройства
type StatusEvent struct {
	DeviceID string `json:"device_id"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

const (
	StatusActivated   = "activated"
	StatusDeactivated = "deactivated"
	StatusDeleted     = "deleted"
	StatusUpdated     = "updated"
)
