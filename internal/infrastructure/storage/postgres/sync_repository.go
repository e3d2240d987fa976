package postgres

import (
	"context"
	"encoding/json"

	"devicesync/internal/domain/sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"
)

const recordColumns = `id, user_id, device_id, data_type, payload, version, last_modified, status,
	resolution_strategy, client_payload, client_version, conflict_at, created_at, updated_at`

const errRecordNotFound = "sync record not found"

// SyncRepository записи синхронизации в PostgreSQL
type SyncRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewSyncRepository создает новый репозиторий синхронизации
func NewSyncRepository(pool *pgxpool.Pool, log *slog.Logger) *SyncRepository {
	return &SyncRepository{
		pool: pool,
		log:  log,
	}
}

func (r *SyncRepository) Latest(ctx context.Context, deviceID string, dataType sync.DataType) (*sync.Record, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM sync_records
		 WHERE device_id = $1 AND data_type = $2
		 ORDER BY last_modified DESC, seq DESC
		 LIMIT 1`,
		deviceID, dataType)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, mapErr(err, errRecordNotFound, "")
	}
	return rec, nil
}

func (r *SyncRepository) Create(ctx context.Context, rec *sync.Record) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sync_records (`+recordColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		recordArgs(rec)...)
	return mapErr(err, "", "sync record already exists")
}

func (r *SyncRepository) Save(ctx context.Context, rec *sync.Record) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sync_records SET
			user_id = $2, device_id = $3, data_type = $4, payload = $5, version = $6,
			last_modified = $7, status = $8, resolution_strategy = $9, client_payload = $10,
			client_version = $11, conflict_at = $12, created_at = $13, updated_at = $14
		 WHERE id = $1`,
		recordArgs(rec)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, errRecordNotFound, "")
	}
	return nil
}

func (r *SyncRepository) Get(ctx context.Context, id string) (*sync.Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM sync_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, mapErr(err, errRecordNotFound, "")
	}
	return rec, nil
}

func (r *SyncRepository) List(ctx context.Context, userID string, f sync.Filter) ([]*sync.Record, error) {
	return r.query(ctx,
		`SELECT `+recordColumns+` FROM sync_records
		 WHERE user_id = $1 AND status <> $2
		   AND ($3 = '' OR data_type = $3)
		   AND ($4 = '' OR device_id = $4)
		 ORDER BY last_modified DESC, seq`,
		userID, sync.StatusConflict, string(f.DataType), f.DeviceID)
}

func (r *SyncRepository) ListConflicts(ctx context.Context, userID string) ([]*sync.Record, error) {
	return r.query(ctx,
		`SELECT `+recordColumns+` FROM sync_records
		 WHERE user_id = $1 AND status = $2
		 ORDER BY last_modified DESC, seq`,
		userID, sync.StatusConflict)
}

func (r *SyncRepository) query(ctx context.Context, sql string, args ...any) ([]*sync.Record, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*sync.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func recordArgs(rec *sync.Record) []any {
	var (
		resolution    *string
		clientPayload []byte
		clientVersion *int
	)
	if rec.Resolution != "" {
		s := string(rec.Resolution)
		resolution = &s
	}
	if len(rec.ClientPayload) > 0 {
		clientPayload = rec.ClientPayload
	}
	if rec.ClientVersion > 0 {
		v := rec.ClientVersion
		clientVersion = &v
	}

	return []any{
		rec.ID, rec.UserID, rec.DeviceID, string(rec.DataType), []byte(rec.Payload), rec.Version,
		rec.LastModified, string(rec.Status), resolution, clientPayload, clientVersion,
		rec.ConflictAt, rec.CreatedAt, rec.UpdatedAt,
	}
}

func scanRecord(row pgx.Row) (*sync.Record, error) {
	var (
		rec           sync.Record
		payload       []byte
		resolution    *string
		clientPayload []byte
		clientVersion *int
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.DeviceID, &rec.DataType, &payload, &rec.Version,
		&rec.LastModified, &rec.Status, &resolution, &clientPayload, &clientVersion,
		&rec.ConflictAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.Payload = json.RawMessage(payload)
	if resolution != nil {
		rec.Resolution = sync.Strategy(*resolution)
	}
	if len(clientPayload) > 0 {
		rec.ClientPayload = json.RawMessage(clientPayload)
	}
	if clientVersion != nil {
		rec.ClientVersion = *clientVersion
	}
	return &rec, nil
}
