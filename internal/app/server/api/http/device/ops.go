package device

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

var bearer = []map[string][]string{{"bearer": {}}}

func (h *Handler) registerOp() huma.Operation {
	return huma.Operation{
		OperationID:   "device-register",
		Method:        http.MethodPost,
		Path:          "/devices/register",
		Summary:       "Регистрация устройства",
		Description:   "Проверяет возможности устройства и выпускает для него токен",
		Tags:          []string{"devices"},
		DefaultStatus: http.StatusCreated,
		Security:      bearer,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "device-list",
		Method:      http.MethodGet,
		Path:        "/devices/user",
		Summary:     "Устройства пользователя",
		Tags:        []string{"devices"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) getOp() huma.Operation {
	return huma.Operation{
		OperationID: "device-get",
		Method:      http.MethodGet,
		Path:        "/devices/{id}",
		Summary:     "Получить устройство",
		Tags:        []string{"devices"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) updateOp() huma.Operation {
	return huma.Operation{
		OperationID: "device-update",
		Method:      http.MethodPut,
		Path:        "/devices/{id}",
		Summary:     "Обновить устройство",
		Description: "Частичное обновление; возможности сливаются с текущими и проверяются заново",
		Tags:        []string{"devices"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) activateOp() huma.Operation {
	return huma.Operation{
		OperationID: "device-activate",
		Method:      http.MethodPost,
		Path:        "/devices/{id}/activate",
		Summary:     "Включить устройство",
		Tags:        []string{"devices"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) deactivateOp() huma.Operation {
	return huma.Operation{
		OperationID: "device-deactivate",
		Method:      http.MethodPost,
		Path:        "/devices/{id}/deactivate",
		Summary:     "Отключить устройство",
		Description: "Устройство остается в списке, его соединение закрывается",
		Tags:        []string{"devices"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) deleteOp() huma.Operation {
	return huma.Operation{
		OperationID: "device-delete",
		Method:      http.MethodDelete,
		Path:        "/devices/{id}",
		Summary:     "Удалить устройство",
		Tags:        []string{"devices"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) refreshTokenOp() huma.Operation {
	return huma.Operation{
		OperationID: "device-token-refresh",
		Method:      http.MethodPost,
		Path:        "/devices/token/refresh",
		Summary:     "Обновить токен устройства",
		Description: "Вызывается устройством со своим действующим токеном",
		Tags:        []string{"devices"},
		Security:    bearer,
		Middlewares: h.deviceMiddleware,
	}
}
