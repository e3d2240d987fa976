package realtime

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) statsOp() huma.Operation {
	return huma.Operation{
		OperationID: "realtime-stats",
		Method:      http.MethodGet,
		Path:        "/realtime/stats",
		Summary:     "Статистика соединений",
		Tags:        []string{"realtime"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) connectedOp() huma.Operation {
	return huma.Operation{
		OperationID: "realtime-connected-devices",
		Method:      http.MethodGet,
		Path:        "/realtime/devices",
		Summary:     "Подключенные устройства пользователя",
		Tags:        []string{"realtime"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
