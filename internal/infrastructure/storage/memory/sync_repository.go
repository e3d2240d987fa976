package memory

import (
	"context"
	"sort"
	"sync"

	"devicesync/internal/domain/apperr"
	syncdomain "devicesync/internal/domain/sync"
)

type SyncRepository struct {
	mu      sync.RWMutex
	records map[string]*syncdomain.Record
	// порядок вставки для стабильной выдачи
	order []string
}

func NewSyncRepository() *SyncRepository {
	return &SyncRepository{records: make(map[string]*syncdomain.Record)}
}

func (r *SyncRepository) Latest(_ context.Context, deviceID string, dataType syncdomain.DataType) (*syncdomain.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *syncdomain.Record
	for _, id := range r.order {
		rec := r.records[id]
		if rec.DeviceID != deviceID || rec.DataType != dataType {
			continue
		}
		if latest == nil || rec.LastModified.After(latest.LastModified) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, apperr.E(apperr.NotFound, "sync record not found")
	}
	return cloneRecord(latest), nil
}

func (r *SyncRepository) Create(_ context.Context, rec *syncdomain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[rec.ID]; ok {
		return apperr.E(apperr.Conflict, "sync record already exists")
	}
	r.records[rec.ID] = cloneRecord(rec)
	r.order = append(r.order, rec.ID)
	return nil
}

func (r *SyncRepository) Save(_ context.Context, rec *syncdomain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[rec.ID]; !ok {
		return apperr.E(apperr.NotFound, "sync record not found")
	}
	r.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (r *SyncRepository) Get(_ context.Context, id string) (*syncdomain.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, apperr.E(apperr.NotFound, "sync record not found")
	}
	return cloneRecord(rec), nil
}

func (r *SyncRepository) List(_ context.Context, userID string, f syncdomain.Filter) ([]*syncdomain.Record, error) {
	return r.filter(func(rec *syncdomain.Record) bool {
		return rec.UserID == userID &&
			rec.Status != syncdomain.StatusConflict &&
			(f.DataType == "" || rec.DataType == f.DataType) &&
			(f.DeviceID == "" || rec.DeviceID == f.DeviceID)
	}), nil
}

func (r *SyncRepository) ListConflicts(_ context.Context, userID string) ([]*syncdomain.Record, error) {
	return r.filter(func(rec *syncdomain.Record) bool {
		return rec.UserID == userID && rec.Status == syncdomain.StatusConflict
	}), nil
}

func (r *SyncRepository) filter(keep func(*syncdomain.Record) bool) []*syncdomain.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*syncdomain.Record, 0)
	for _, id := range r.order {
		if rec := r.records[id]; keep(rec) {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastModified.After(out[j].LastModified)
	})
	return out
}

func cloneRecord(rec *syncdomain.Record) *syncdomain.Record {
	c := *rec
	c.Payload = append([]byte(nil), rec.Payload...)
	if rec.ClientPayload != nil {
		c.ClientPayload = append([]byte(nil), rec.ClientPayload...)
	}
	if rec.ConflictAt != nil {
		t := *rec.ConflictAt
		c.ConflictAt = &t
	}
	return &c
}
