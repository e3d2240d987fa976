package device

import (
	"context"
	"time"
)

// Repository хранилище устройств
type Repository interface {
	Create(ctx context.Context, d *Device) error
	Get(ctx context.Context, id string) (*Device, error)
	// Update сливает патч с сохраненным устройством и всегда обновляет UpdatedAt
	Update(ctx context.Context, id string, patch Patch) (*Device, error)
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*Device, error)
	CountActiveByUser(ctx context.Context, userID string) (int, error)
	// ListUnseenSince активные устройства без активности (last_sync_at либо registered_at) с момента cutoff
	ListUnseenSince(ctx context.Context, cutoff time.Time) ([]*Device, error)
	TouchLastSync(ctx context.Context, id string, at time.Time) error
}
