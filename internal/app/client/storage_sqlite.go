package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"devicesync/internal/domain/offline"
	"devicesync/internal/domain/sync"

	_ "github.com/mattn/go-sqlite3"
)

// Ключи локальных учетных данных
const (
	KeyLogin       = "login"
	KeyUserToken   = "user_token"
	KeyDeviceID    = "device_id"
	KeyDeviceToken = "device_token"
)

// OutboxEntry офлайн-изменение, еще не переданное серверу
type OutboxEntry struct {
	Seq   int64
	Input offline.Input
}

// SQLiteStorage локальное хранилище клиента: учетные данные и очередь
// изменений, записанных без связи с сервером
type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	storage := &SQLiteStorage{db: db}
	if err := storage.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init tables: %w", err)
	}
	return storage, nil
}

func (s *SQLiteStorage) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS outbox (
			seq              INTEGER PRIMARY KEY AUTOINCREMENT,
			data_type        TEXT NOT NULL,
			operation        TEXT NOT NULL,
			payload          TEXT,
			client_timestamp TEXT NOT NULL
		);
	`)
	return err
}

func (s *SQLiteStorage) SetCredential(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Credential возвращает пустую строку, если значение не сохранено
func (s *SQLiteStorage) Credential(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM credentials WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStorage) DeleteCredentials(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM credentials WHERE key = ?", key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

// Enqueue добавляет изменение в конец очереди
func (s *SQLiteStorage) Enqueue(ctx context.Context, in offline.Input) (int64, error) {
	var payload sql.NullString
	if len(in.Payload) > 0 {
		payload = sql.NullString{String: string(in.Payload), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO outbox (data_type, operation, payload, client_timestamp)
		VALUES (?, ?, ?, ?)
	`, string(in.DataType), string(in.Kind), payload, in.ClientTimestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("enqueue operation: %w", err)
	}
	return res.LastInsertId()
}

// Outbox очередь в порядке добавления
func (s *SQLiteStorage) Outbox(ctx context.Context) ([]OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, data_type, operation, payload, client_timestamp
		FROM outbox
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var (
			e         OutboxEntry
			dataType  string
			kind      string
			payload   sql.NullString
			timestamp string
		)
		if err := rows.Scan(&e.Seq, &dataType, &kind, &payload, &timestamp); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}

		e.Input.DataType = sync.DataType(dataType)
		e.Input.Kind = offline.Kind(kind)
		if payload.Valid {
			e.Input.Payload = json.RawMessage(payload.String)
		}
		e.Input.ClientTimestamp, err = time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp of entry %d: %w", e.Seq, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Remove удаляет переданные серверу записи очереди
func (s *SQLiteStorage) Remove(ctx context.Context, seqs []int64) error {
	if len(seqs) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(seqs)), ",")
	args := make([]any, len(seqs))
	for i, seq := range seqs {
		args[i] = seq
	}

	_, err := s.db.ExecContext(ctx, "DELETE FROM outbox WHERE seq IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("remove outbox entries: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
