package memory

import (
	"context"
	"sync"
	"time"

	"devicesync/internal/domain/offline"
)

type OfflineRepository struct {
	mu  sync.Mutex
	ops []*offline.Operation
}

func NewOfflineRepository() *OfflineRepository {
	return &OfflineRepository{}
}

func (r *OfflineRepository) CreateBatch(_ context.Context, ops []*offline.Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, op := range ops {
		c := *op
		r.ops = append(r.ops, &c)
	}
	return nil
}

func (r *OfflineRepository) ListPending(_ context.Context, deviceID string) ([]*offline.Operation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*offline.Operation, 0)
	for _, op := range r.ops {
		if op.DeviceID == deviceID && !op.Synced {
			c := *op
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *OfflineRepository) ClaimPending(_ context.Context, userID, deviceID string, at time.Time) ([]*offline.Operation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*offline.Operation, 0)
	for _, op := range r.ops {
		if op.UserID != userID || op.DeviceID != deviceID || op.Synced {
			continue
		}
		t := at
		op.Synced = true
		op.SyncedAt = &t
		c := *op
		out = append(out, &c)
	}
	return out, nil
}

func (r *OfflineRepository) Release(_ context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for _, op := range r.ops {
		if _, ok := want[op.ID]; ok {
			op.Synced = false
			op.SyncedAt = nil
		}
	}
	return nil
}

func (r *OfflineRepository) PurgeSynced(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.ops[:0]
	purged := 0
	for _, op := range r.ops {
		if op.Synced && op.SyncedAt != nil && op.SyncedAt.Before(before) {
			purged++
			continue
		}
		kept = append(kept, op)
	}
	r.ops = kept
	return purged, nil
}
