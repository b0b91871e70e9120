package kiosk

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/app/kiosk/crypto"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/feedback"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/queue"
)

// pendingFilter записи, которые движок синхронизации берет в работу
const pendingFilter = `(status = 'pending' OR (status = 'failed' AND retry_count < max_attempts))`

// byPriorityThenAge порядок выдачи: приоритет, затем возраст
const byPriorityThenAge = `CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, created_at ASC`

type SQLiteStorage struct {
	db     *sql.DB
	cipher *crypto.PayloadCipher
}

// NewSQLiteStorage открывает локальную базу киоска. Содержимое отзывов
// шифруется cipher-ом перед записью; cipher == nil отключает шифрование
// (используется в тестах).
func NewSQLiteStorage(path string, cipher *crypto.PayloadCipher) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}

	storage := &SQLiteStorage{db: db, cipher: cipher}

	// Создаем таблицы
	if err := storage.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка инициализации таблиц: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS feedback_entries (
			id TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			status TEXT NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL,
			priority TEXT NOT NULL,
			created_at TEXT NOT NULL,
			last_error TEXT NOT NULL DEFAULT '',
			duplicate_of TEXT NOT NULL DEFAULT '',
			synced_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_feedback_status ON feedback_entries(status);
		CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback_entries(created_at);

		CREATE TABLE IF NOT EXISTS queue_entries (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			method TEXT NOT NULL,
			headers TEXT NOT NULL DEFAULT '{}',
			data BLOB,
			status TEXT NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL,
			priority TEXT NOT NULL,
			created_at TEXT NOT NULL,
			last_error TEXT NOT NULL DEFAULT '',
			synced_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_queue_status ON queue_entries(status);
	`)

	return err
}

func (s *SQLiteStorage) encodePayload(p feedback.Payload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	if s.cipher == nil {
		return raw, nil
	}
	return s.cipher.Encrypt(raw)
}

func (s *SQLiteStorage) decodePayload(data []byte) (feedback.Payload, error) {
	var p feedback.Payload
	raw := data
	if s.cipher != nil {
		decrypted, err := s.cipher.Decrypt(data)
		if err != nil {
			return p, err
		}
		raw = decrypted
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, err
	}
	return p, nil
}

func (s *SQLiteStorage) AddFeedback(ctx context.Context, entry *feedback.Entry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.Status = feedback.StatusPending
	entry.RetryCount = 0
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Priority == "" {
		entry.Priority = feedback.PriorityMedium
	}

	payload, err := s.encodePayload(entry.Payload)
	if err != nil {
		return "", &feedback.StorageError{Op: "encode payload", Err: err}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO feedback_entries (id, payload, status, retry_count, max_attempts,
		                              priority, created_at, last_error, duplicate_of)
		VALUES (?, ?, ?, ?, ?, ?, ?, '', '')
	`, entry.ID, payload, entry.Status, entry.RetryCount, entry.MaxAttempts,
		entry.Priority, entry.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return "", &feedback.StorageError{Op: "insert feedback entry", Err: err}
	}

	return entry.ID, nil
}

func (s *SQLiteStorage) GetFeedback(ctx context.Context, id string) (*feedback.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, payload, status, retry_count, max_attempts, priority,
		       created_at, last_error, duplicate_of, synced_at
		FROM feedback_entries
		WHERE id = ?
	`, id)

	entry, err := s.scanFeedback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, feedback.ErrNotFound
	}
	if err != nil {
		return nil, &feedback.StorageError{Op: "get feedback entry", Err: err}
	}
	return entry, nil
}

func (s *SQLiteStorage) ListPendingFeedback(ctx context.Context) ([]*feedback.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payload, status, retry_count, max_attempts, priority,
		       created_at, last_error, duplicate_of, synced_at
		FROM feedback_entries
		WHERE `+pendingFilter+`
		ORDER BY `+byPriorityThenAge,
	)
	if err != nil {
		return nil, &feedback.StorageError{Op: "list pending feedback", Err: err}
	}
	defer rows.Close()

	var entries []*feedback.Entry
	for rows.Next() {
		entry, err := s.scanFeedback(rows)
		if err != nil {
			return nil, &feedback.StorageError{Op: "scan feedback entry", Err: err}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, &feedback.StorageError{Op: "list pending feedback", Err: err}
	}

	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStorage) scanFeedback(row rowScanner) (*feedback.Entry, error) {
	var entry feedback.Entry
	var payload []byte
	var createdAt string
	var syncedAt sql.NullString

	if err := row.Scan(&entry.ID, &payload, &entry.Status, &entry.RetryCount,
		&entry.MaxAttempts, &entry.Priority, &createdAt, &entry.LastError,
		&entry.DuplicateOf, &syncedAt); err != nil {
		return nil, err
	}

	decoded, err := s.decodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения содержимого записи %s: %w", entry.ID, err)
	}
	entry.Payload = decoded

	entry.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if syncedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, syncedAt.String)
		if err == nil {
			entry.SyncedAt = &t
		}
	}

	return &entry, nil
}

func (s *SQLiteStorage) UpdateFeedbackStatus(ctx context.Context, id string, status feedback.Status, errMsg string) error {
	var syncedAt any
	if status == feedback.StatusSynced {
		syncedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE feedback_entries
		SET status = ?, last_error = ?, synced_at = COALESCE(?, synced_at)
		WHERE id = ?
	`, status, errMsg, syncedAt, id)
	if err != nil {
		return &feedback.StorageError{Op: "update feedback status", Err: err}
	}

	return rowsAffectedOrNotFound(res, feedback.ErrNotFound)
}

func (s *SQLiteStorage) IncrementFeedbackRetry(ctx context.Context, id string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE feedback_entries SET retry_count = retry_count + 1 WHERE id = ?`, id)
	if err != nil {
		return 0, &feedback.StorageError{Op: "increment feedback retry", Err: err}
	}
	if err := rowsAffectedOrNotFound(res, feedback.ErrNotFound); err != nil {
		return 0, err
	}

	var count int
	err = s.db.QueryRowContext(ctx,
		`SELECT retry_count FROM feedback_entries WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return 0, &feedback.StorageError{Op: "read feedback retry count", Err: err}
	}
	return count, nil
}

func (s *SQLiteStorage) SetFeedbackDuplicate(ctx context.Context, id, existingID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE feedback_entries
		SET status = ?, duplicate_of = ?, last_error = '', synced_at = ?
		WHERE id = ?
	`, feedback.StatusSynced, existingID, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return &feedback.StorageError{Op: "mark feedback duplicate", Err: err}
	}

	return rowsAffectedOrNotFound(res, feedback.ErrNotFound)
}

func (s *SQLiteStorage) RemoveFeedback(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM feedback_entries WHERE id = ?`, id)
	if err != nil {
		return &feedback.StorageError{Op: "remove feedback entry", Err: err}
	}
	return nil
}

func (s *SQLiteStorage) AddQueueEntry(ctx context.Context, entry *queue.Entry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.Status = feedback.StatusPending
	entry.RetryCount = 0
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Priority == "" {
		entry.Priority = feedback.PriorityLow
	}

	headers, err := json.Marshal(entry.Headers)
	if err != nil {
		return "", &feedback.StorageError{Op: "encode queue headers", Err: err}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO queue_entries (id, type, endpoint, method, headers, data, status,
		                           retry_count, max_attempts, priority, created_at, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '')
	`, entry.ID, entry.Type, entry.Endpoint, entry.Method, string(headers), []byte(entry.Data),
		entry.Status, entry.RetryCount, entry.MaxAttempts, entry.Priority,
		entry.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return "", &feedback.StorageError{Op: "insert queue entry", Err: err}
	}

	return entry.ID, nil
}

func (s *SQLiteStorage) GetQueueEntry(ctx context.Context, id string) (*queue.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, endpoint, method, headers, data, status, retry_count,
		       max_attempts, priority, created_at, last_error, synced_at
		FROM queue_entries
		WHERE id = ?
	`, id)

	entry, err := scanQueueEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, queue.ErrNotFound
	}
	if err != nil {
		return nil, &feedback.StorageError{Op: "get queue entry", Err: err}
	}
	return entry, nil
}

func (s *SQLiteStorage) ListPendingQueue(ctx context.Context) ([]*queue.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, endpoint, method, headers, data, status, retry_count,
		       max_attempts, priority, created_at, last_error, synced_at
		FROM queue_entries
		WHERE `+pendingFilter+`
		ORDER BY `+byPriorityThenAge,
	)
	if err != nil {
		return nil, &feedback.StorageError{Op: "list pending queue", Err: err}
	}
	defer rows.Close()

	var entries []*queue.Entry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, &feedback.StorageError{Op: "scan queue entry", Err: err}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, &feedback.StorageError{Op: "list pending queue", Err: err}
	}

	return entries, nil
}

func scanQueueEntry(row rowScanner) (*queue.Entry, error) {
	var entry queue.Entry
	var headers string
	var data []byte
	var createdAt string
	var syncedAt sql.NullString

	if err := row.Scan(&entry.ID, &entry.Type, &entry.Endpoint, &entry.Method,
		&headers, &data, &entry.Status, &entry.RetryCount, &entry.MaxAttempts,
		&entry.Priority, &createdAt, &entry.LastError, &syncedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(headers), &entry.Headers); err != nil {
		return nil, fmt.Errorf("ошибка чтения заголовков записи %s: %w", entry.ID, err)
	}
	entry.Data = data

	entry.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if syncedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, syncedAt.String)
		if err == nil {
			entry.SyncedAt = &t
		}
	}

	return &entry, nil
}

func (s *SQLiteStorage) UpdateQueueStatus(ctx context.Context, id string, status feedback.Status, errMsg string) error {
	var syncedAt any
	if status == feedback.StatusSynced {
		syncedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE queue_entries
		SET status = ?, last_error = ?, synced_at = COALESCE(?, synced_at)
		WHERE id = ?
	`, status, errMsg, syncedAt, id)
	if err != nil {
		return &feedback.StorageError{Op: "update queue status", Err: err}
	}

	return rowsAffectedOrNotFound(res, queue.ErrNotFound)
}

func (s *SQLiteStorage) IncrementQueueRetry(ctx context.Context, id string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE queue_entries SET retry_count = retry_count + 1 WHERE id = ?`, id)
	if err != nil {
		return 0, &feedback.StorageError{Op: "increment queue retry", Err: err}
	}
	if err := rowsAffectedOrNotFound(res, queue.ErrNotFound); err != nil {
		return 0, err
	}

	var count int
	err = s.db.QueryRowContext(ctx,
		`SELECT retry_count FROM queue_entries WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return 0, &feedback.StorageError{Op: "read queue retry count", Err: err}
	}
	return count, nil
}

func (s *SQLiteStorage) ResetQueueRetry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE queue_entries
		SET status = ?, retry_count = 0, last_error = ''
		WHERE id = ?
	`, feedback.StatusPending, id)
	if err != nil {
		return &feedback.StorageError{Op: "reset queue retry", Err: err}
	}

	return rowsAffectedOrNotFound(res, queue.ErrNotFound)
}

func (s *SQLiteStorage) RemoveQueueEntry(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM queue_entries WHERE id = ?`, id)
	if err != nil {
		return &feedback.StorageError{Op: "remove queue entry", Err: err}
	}
	return nil
}

func (s *SQLiteStorage) CountPending(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM feedback_entries WHERE status != 'synced') +
		       (SELECT COUNT(*) FROM queue_entries WHERE status != 'synced')
	`).Scan(&count)
	if err != nil {
		return 0, &feedback.StorageError{Op: "count pending", Err: err}
	}
	return count, nil
}

func (s *SQLiteStorage) PurgeSynced(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-grace).Format(time.RFC3339Nano)

	total := 0
	for _, table := range []string{"feedback_entries", "queue_entries"} {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE status = 'synced' AND synced_at IS NOT NULL AND synced_at < ?`,
			cutoff)
		if err != nil {
			return total, &feedback.StorageError{Op: "purge synced " + table, Err: err}
		}
		if n, err := res.RowsAffected(); err == nil {
			total += int(n)
		}
	}

	return total, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func rowsAffectedOrNotFound(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return &feedback.StorageError{Op: "rows affected", Err: err}
	}
	if n == 0 {
		return notFound
	}
	return nil
}
