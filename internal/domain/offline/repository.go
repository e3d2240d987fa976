package offline

import (
	"context"
	"time"
)

// Repository хранилище очереди офлайн-операций
type Repository interface {
	// CreateBatch сохраняет операции в порядке следования
	CreateBatch(ctx context.Context, ops []*Operation) error
	// ListPending несинхронизированные операции устройства в порядке вставки
	ListPending(ctx context.Context, deviceID string) ([]*Operation, error)
	// ClaimPending атомарно помечает несинхронизированные операции устройства
	// синхронизированными и возвращает их в порядке вставки. Параллельный вызов
	// уже захваченные операции не получит
	ClaimPending(ctx context.Context, userID, deviceID string, at time.Time) ([]*Operation, error)
	// Release возвращает захваченные операции в очередь
	Release(ctx context.Context, ids []string) error
	// PurgeSynced удаляет синхронизированные операции старше before
	PurgeSynced(ctx context.Context, before time.Time) (int, error)
}
