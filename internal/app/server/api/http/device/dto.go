package device

import (
	"devicesync/internal/app/server/api/http/response"
	"devicesync/internal/domain/device"
	"devicesync/internal/domain/token"
)

// capabilitiesInput все поля необязательны, отсутствующие считаются false/0
type capabilitiesInput struct {
	Camera            bool `json:"camera,omitempty"`
	AR                bool `json:"ar,omitempty"`
	VR                bool `json:"vr,omitempty"`
	GPS               bool `json:"gps,omitempty"`
	Accelerometer     bool `json:"accelerometer,omitempty"`
	Gyroscope         bool `json:"gyroscope,omitempty"`
	Touch             bool `json:"touch,omitempty"`
	Keyboard          bool `json:"keyboard,omitempty"`
	Microphone        bool `json:"microphone,omitempty"`
	Speakers          bool `json:"speakers,omitempty"`
	OfflineSupport    bool `json:"offline_support,omitempty"`
	StorageCapacityMB int  `json:"storage_capacity_mb,omitempty" minimum:"0"`
}

type RegisterBody struct {
	DeviceID     string            `json:"device_id,omitempty" doc:"Client-generated device id; generated by the server when empty"`
	Name         string            `json:"name" minLength:"1" maxLength:"100"`
	Type         device.Type       `json:"device_type" doc:"web, mobile, ar or vr"`
	Platform     device.Platform   `json:"platform" doc:"ios, android, windows, macos, linux or web"`
	Model        string            `json:"model,omitempty"`
	OSVersion    string            `json:"os_version,omitempty"`
	AppVersion   string            `json:"app_version,omitempty"`
	Capabilities capabilitiesInput `json:"capabilities,omitempty"`
	Metadata     device.Metadata   `json:"metadata,omitempty"`
}

func (b RegisterBody) toRequest() device.RegisterRequest {
	return device.RegisterRequest{
		DeviceID:     b.DeviceID,
		Name:         b.Name,
		Type:         b.Type,
		Platform:     b.Platform,
		Model:        b.Model,
		OSVersion:    b.OSVersion,
		AppVersion:   b.AppVersion,
		Capabilities: device.Capabilities(b.Capabilities),
		Metadata:     b.Metadata,
	}
}

type registerInput struct {
	Body RegisterBody
}

type registerOutput struct {
	Body response.Envelope[*device.Registration]
}

type listInput struct {
	ActiveOnly bool `query:"active_only" doc:"Return only active devices"`
}

type listOutput struct {
	Body response.Envelope[[]*device.Device]
}

type idInput struct {
	ID string `path:"id"`
}

type updateInput struct {
	ID   string `path:"id"`
	Body device.UpdateRequest
}

type deviceOutput struct {
	Body response.Envelope[*device.Device]
}

type deleteOutput struct {
	Body response.Envelope[response.Ack]
}

type refreshInput struct {
	Authorization string `header:"Authorization"`
}

type refreshOutput struct {
	Body response.Envelope[RefreshResponse]
}

type RefreshResponse struct {
	AuthToken token.Token `json:"auth_token"`
}
