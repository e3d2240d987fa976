package sync

import (
	"context"
	"time"

	"devicesync/internal/domain/device"
)

// Repository хранилище записей синхронизации.
// Get и Latest возвращают apperr.NotFound, если записи нет.
type Repository interface {
	// Latest последняя по LastModified запись для пары (устройство, тип данных)
	Latest(ctx context.Context, deviceID string, dataType DataType) (*Record, error)
	Create(ctx context.Context, r *Record) error
	// Save перезаписывает запись с тем же ID
	Save(ctx context.Context, r *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	// List записи пользователя без конфликтных
	List(ctx context.Context, userID string, f Filter) ([]*Record, error)
	ListConflicts(ctx context.Context, userID string) ([]*Record, error)
}

// Devices доступ движка к устройствам
type Devices interface {
	Get(ctx context.Context, id string) (*device.Device, error)
	TouchLastSync(ctx context.Context, id string, at time.Time) error
}
