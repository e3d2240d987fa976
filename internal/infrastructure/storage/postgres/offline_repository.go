package postgres

import (
	"context"
	"encoding/json"
	"time"

	"devicesync/internal/domain/offline"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"
)

const operationColumns = `id, user_id, device_id, data_type, operation, payload, client_timestamp, synced, created_at, synced_at`

// OfflineRepository очередь офлайн-операций в PostgreSQL
type OfflineRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewOfflineRepository создает новый репозиторий очереди
func NewOfflineRepository(pool *pgxpool.Pool, log *slog.Logger) *OfflineRepository {
	return &OfflineRepository{
		pool: pool,
		log:  log,
	}
}

// CreateBatch вставляет операции одной транзакцией, seq сохраняет порядок
func (r *OfflineRepository) CreateBatch(ctx context.Context, ops []*offline.Operation) error {
	if len(ops) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, op := range ops {
			payload := []byte(op.Payload)
			if len(payload) == 0 {
				payload = []byte("null")
			}
			batch.Queue(
				`INSERT INTO offline_operations (`+operationColumns+`)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				op.ID, op.UserID, op.DeviceID, string(op.DataType), string(op.Kind), payload,
				op.ClientTimestamp, op.Synced, op.CreatedAt, op.SyncedAt,
			)
		}

		results := tx.SendBatch(ctx, batch)
		for range ops {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return mapErr(err, "", "offline operation already exists")
			}
		}
		return results.Close()
	})
}

func (r *OfflineRepository) ListPending(ctx context.Context, deviceID string) ([]*offline.Operation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+operationColumns+` FROM offline_operations
		 WHERE device_id = $1 AND NOT synced
		 ORDER BY seq`,
		deviceID)
	if err != nil {
		return nil, err
	}
	return scanOperations(rows)
}

// ClaimPending одним UPDATE: конкурирующая транзакция ждет блокировку строки,
// перепроверяет NOT synced и пропускает уже захваченные операции
func (r *OfflineRepository) ClaimPending(ctx context.Context, userID, deviceID string, at time.Time) ([]*offline.Operation, error) {
	rows, err := r.pool.Query(ctx,
		`WITH claimed AS (
			UPDATE offline_operations SET synced = TRUE, synced_at = $3
			WHERE device_id = $1 AND user_id = $2 AND NOT synced
			RETURNING seq, `+operationColumns+`
		 )
		 SELECT `+operationColumns+` FROM claimed ORDER BY seq`,
		deviceID, userID, at)
	if err != nil {
		return nil, err
	}
	return scanOperations(rows)
}

func (r *OfflineRepository) Release(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE offline_operations SET synced = FALSE, synced_at = NULL WHERE id = ANY($1)`,
		ids)
	return err
}

func scanOperations(rows pgx.Rows) ([]*offline.Operation, error) {
	defer rows.Close()

	ops := make([]*offline.Operation, 0)
	for rows.Next() {
		var (
			op      offline.Operation
			payload []byte
		)
		if err := rows.Scan(&op.ID, &op.UserID, &op.DeviceID, &op.DataType, &op.Kind, &payload,
			&op.ClientTimestamp, &op.Synced, &op.CreatedAt, &op.SyncedAt); err != nil {
			return nil, err
		}
		op.Payload = json.RawMessage(payload)
		ops = append(ops, &op)
	}
	return ops, rows.Err()
}

func (r *OfflineRepository) PurgeSynced(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM offline_operations WHERE synced AND synced_at < $1`,
		before)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
