package health

import (
	"time"

	"devicesync/internal/app/server/api/http/response"
)

type Input struct{}

type Output struct {
	Body response.Envelope[Response]
}

// Response состояние сервиса
type Response struct {
	Status  string    `json:"status" example:"OK" doc:"Health status of the service"`
	Storage string    `json:"storage" example:"OK" doc:"Storage availability"`
	Time    time.Time `json:"time"`
}
