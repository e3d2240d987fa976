package realtime

import (
	"devicesync/internal/app/server/api/http/response"
	"devicesync/internal/realtime"
)

type statsOutput struct {
	Body response.Envelope[realtime.Stats]
}

type ConnectedDevices struct {
	DeviceIDs []string `json:"device_ids"`
}

type connectedOutput struct {
	Body response.Envelope[ConnectedDevices]
}
