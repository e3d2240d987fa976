package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"devicesync/internal/domain/device"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"
)

const deviceColumns = `id, user_id, device_type, platform, name, model, os_version, app_version,
	capabilities, metadata, is_active, last_sync_at, registered_at, updated_at`

type DeviceRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
	now  func() time.Time
}

func NewDeviceRepository(pool *pgxpool.Pool, log *slog.Logger) *DeviceRepository {
	return &DeviceRepository{
		pool: pool,
		log:  log,
		now:  time.Now,
	}
}

func (r *DeviceRepository) Create(ctx context.Context, d *device.Device) error {
	caps, meta, err := marshalDeviceJSON(d)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO devices (`+deviceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		d.ID, d.UserID, d.Type, d.Platform, d.Name, d.Model, d.OSVersion, d.AppVersion,
		caps, meta, d.IsActive, d.LastSyncAt, d.RegisteredAt, d.UpdatedAt)
	return mapErr(err, "", "device already exists")
}

func (r *DeviceRepository) Get(ctx context.Context, id string) (*device.Device, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id)
	d, err := scanDevice(row)
	if err != nil {
		return nil, mapErr(err, "device not found", "")
	}
	return d, nil
}

// Update читает строку под блокировкой, сливает патч и записывает результат в одной транзакции
func (r *DeviceRepository) Update(ctx context.Context, id string, patch device.Patch) (*device.Device, error) {
	var updated *device.Device

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1 FOR UPDATE`, id)
		d, err := scanDevice(row)
		if err != nil {
			return err
		}

		patch.Apply(d, r.now())
		caps, meta, err := marshalDeviceJSON(d)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE devices SET name = $2, model = $3, os_version = $4, app_version = $5,
			        capabilities = $6, metadata = $7, is_active = $8, updated_at = $9
			 WHERE id = $1`,
			d.ID, d.Name, d.Model, d.OSVersion, d.AppVersion, caps, meta, d.IsActive, d.UpdatedAt)
		if err != nil {
			return err
		}
		updated = d
		return nil
	})
	if err != nil {
		return nil, mapErr(err, "device not found", "")
	}
	return updated, nil
}

func (r *DeviceRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, "device not found", "")
	}
	return nil
}

func (r *DeviceRepository) ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*device.Device, error) {
	return r.query(ctx,
		`SELECT `+deviceColumns+` FROM devices
		 WHERE user_id = $1 AND (NOT $2 OR is_active)
		 ORDER BY registered_at`,
		userID, activeOnly)
}

func (r *DeviceRepository) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM devices WHERE user_id = $1 AND is_active`, userID).Scan(&n)
	return n, err
}

func (r *DeviceRepository) ListUnseenSince(ctx context.Context, cutoff time.Time) ([]*device.Device, error) {
	return r.query(ctx,
		`SELECT `+deviceColumns+` FROM devices
		 WHERE is_active AND COALESCE(last_sync_at, registered_at) < $1
		 ORDER BY registered_at`,
		cutoff)
}

func (r *DeviceRepository) TouchLastSync(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE devices SET last_sync_at = $2, updated_at = $3 WHERE id = $1`, id, at, r.now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, "device not found", "")
	}
	return nil
}

func (r *DeviceRepository) query(ctx context.Context, sql string, args ...any) ([]*device.Device, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	devices := make([]*device.Device, 0)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func scanDevice(row pgx.Row) (*device.Device, error) {
	var (
		d          device.Device
		caps, meta []byte
	)
	err := row.Scan(&d.ID, &d.UserID, &d.Type, &d.Platform, &d.Name, &d.Model, &d.OSVersion, &d.AppVersion,
		&caps, &meta, &d.IsActive, &d.LastSyncAt, &d.RegisteredAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(caps, &d.Capabilities); err != nil {
		return nil, fmt.Errorf("decode capabilities of device %s: %w", d.ID, err)
	}
	if err := json.Unmarshal(meta, &d.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata of device %s: %w", d.ID, err)
	}
	return &d, nil
}

func marshalDeviceJSON(d *device.Device) ([]byte, []byte, error) {
	caps, err := json.Marshal(d.Capabilities)
	if err != nil {
		return nil, nil, fmt.Errorf("encode capabilities: %w", err)
	}
	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("encode metadata: %w", err)
	}
	return caps, meta, nil
}
