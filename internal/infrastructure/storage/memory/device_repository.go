// Package memory хранилище в памяти процесса: для локального запуска (STORAGE_DRIVER=memory) и тестов.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"devicesync/internal/domain/apperr"
	"devicesync/internal/domain/device"
)

type DeviceRepository struct {
	mu      sync.RWMutex
	devices map[string]*device.Device
	now     func() time.Time
}

func NewDeviceRepository() *DeviceRepository {
	return &DeviceRepository{
		devices: make(map[string]*device.Device),
		now:     time.Now,
	}
}

func (r *DeviceRepository) Create(_ context.Context, d *device.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[d.ID]; ok {
		return apperr.E(apperr.Conflict, "device already exists")
	}
	r.devices[d.ID] = cloneDevice(d)
	return nil
}

func (r *DeviceRepository) Get(_ context.Context, id string) (*device.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, apperr.E(apperr.NotFound, "device not found")
	}
	return cloneDevice(d), nil
}

func (r *DeviceRepository) Update(_ context.Context, id string, patch device.Patch) (*device.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, apperr.E(apperr.NotFound, "device not found")
	}
	patch.Apply(d, r.now())
	return cloneDevice(d), nil
}

func (r *DeviceRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return apperr.E(apperr.NotFound, "device not found")
	}
	delete(r.devices, id)
	return nil
}

func (r *DeviceRepository) ListByUser(_ context.Context, userID string, activeOnly bool) ([]*device.Device, error) {
	return r.filter(func(d *device.Device) bool {
		return d.UserID == userID && (!activeOnly || d.IsActive)
	}), nil
}

func (r *DeviceRepository) CountActiveByUser(_ context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, d := range r.devices {
		if d.UserID == userID && d.IsActive {
			n++
		}
	}
	return n, nil
}

func (r *DeviceRepository) ListUnseenSince(_ context.Context, cutoff time.Time) ([]*device.Device, error) {
	return r.filter(func(d *device.Device) bool {
		return d.IsActive && d.LastSeen().Before(cutoff)
	}), nil
}

func (r *DeviceRepository) TouchLastSync(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return apperr.E(apperr.NotFound, "device not found")
	}
	at = at.UTC()
	d.LastSyncAt = &at
	return nil
}

func (r *DeviceRepository) filter(keep func(*device.Device) bool) []*device.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*device.Device, 0)
	for _, d := range r.devices {
		if keep(d) {
			out = append(out, cloneDevice(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RegisteredAt.Before(out[j].RegisteredAt)
	})
	return out
}

func cloneDevice(d *device.Device) *device.Device {
	c := *d
	if d.LastSyncAt != nil {
		t := *d.LastSyncAt
		c.LastSyncAt = &t
	}
	if d.Metadata.BatteryLevel != nil {
		b := *d.Metadata.BatteryLevel
		c.Metadata.BatteryLevel = &b
	}
	return &c
}
