package sync

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

var bearer = []map[string][]string{{"bearer": {}}}

func (h *Handler) syncOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-batch",
		Method:      http.MethodPost,
		Path:        "/sync/sync",
		Summary:     "Пакетная синхронизация",
		Description: "Каждый элемент обрабатывается независимо: результат делится на synced_data, conflicts и failed",
		Tags:        []string{"sync"},
		Security:    bearer,
		Middlewares: h.deviceMiddleware,
	}
}

func (h *Handler) storeOfflineOp() huma.Operation {
	return huma.Operation{
		OperationID:   "sync-offline-store",
		Method:        http.MethodPost,
		Path:          "/sync/offline",
		Summary:       "Сохранить офлайн-операции",
		Tags:          []string{"sync", "offline"},
		DefaultStatus: http.StatusCreated,
		Security:      bearer,
		Middlewares:   h.deviceMiddleware,
	}
}

func (h *Handler) replayOfflineOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-offline-replay",
		Method:      http.MethodPost,
		Path:        "/sync/offline/sync",
		Summary:     "Проиграть офлайн-операции",
		Description: "Операции отправляются в синхронизацию и помечаются синхронизированными независимо от результата",
		Tags:        []string{"sync", "offline"},
		Security:    bearer,
		Middlewares: h.deviceMiddleware,
	}
}

func (h *Handler) pendingOfflineOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-offline-pending",
		Method:      http.MethodGet,
		Path:        "/sync/offline/pending",
		Summary:     "Несинхронизированные офлайн-операции устройства",
		Tags:        []string{"sync", "offline"},
		Security:    bearer,
		Middlewares: h.deviceMiddleware,
	}
}

func (h *Handler) dataOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-data",
		Method:      http.MethodGet,
		Path:        "/sync/data",
		Summary:     "Данные пользователя",
		Description: "Записи в конфликте не возвращаются",
		Tags:        []string{"sync"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) conflictsOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-conflicts",
		Method:      http.MethodGet,
		Path:        "/sync/conflicts",
		Summary:     "Неразрешенные конфликты",
		Tags:        []string{"sync"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) resolveOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-conflict-resolve",
		Method:      http.MethodPost,
		Path:        "/sync/conflicts/resolve",
		Summary:     "Разрешить конфликт",
		Tags:        []string{"sync"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}
