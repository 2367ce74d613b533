package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"opsreg/internal/logging"
	"opsreg/internal/ops"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists tag partitions to SQLite.
//
// Each (owner, tag) pair maps to one row whose ops column holds the
// partition's record list as JSON, mirroring a list-valued attribute in
// a key-value table. Row ids are UUIDs assigned on first write.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewSQLiteStore opens (or creates) the partition database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	logging.StoreDebug("Initializing SQLiteStore at path: %s", dbPath)

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to create store directory %s: %v", dir, err)
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open partition database at %s: %v", dbPath, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{db: db, dbPath: dbPath}
	if err := s.initialize(); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize partition schema: %v", err)
		db.Close()
		return nil, err
	}

	logging.Store("SQLiteStore initialized at %s", dbPath)
	return s, nil
}

// initialize creates the database schema.
func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS partitions (
		row_id TEXT NOT NULL,
		owner TEXT NOT NULL,
		tag TEXT NOT NULL,
		ops TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (owner, tag)
	);

	CREATE INDEX IF NOT EXISTS idx_partitions_owner ON partitions(owner);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetPartition returns the record list stored under (owner, tag).
func (s *SQLiteStore) GetPartition(ctx context.Context, owner, tag string) ([]ops.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT ops FROM partitions WHERE owner = ? AND tag = ?`, owner, tag).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPartitionNotFound
	}
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to read partition (%s, %s): %v", owner, tag, err)
		return nil, fmt.Errorf("failed to read partition: %w", err)
	}

	var records []ops.Record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("failed to decode partition (%s, %s): %w", owner, tag, err)
	}

	logging.StoreDebug("Read partition (%s, %s): %d records", owner, tag, len(records))
	return records, nil
}

// PutPartition replaces the record list stored under (owner, tag).
func (s *SQLiteStore) PutPartition(ctx context.Context, owner, tag string, records []ops.Record) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode partition (%s, %s): %w", owner, tag, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO partitions (row_id, owner, tag, ops)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner, tag) DO UPDATE SET
			ops = excluded.ops,
			updated_at = CURRENT_TIMESTAMP`,
		uuid.NewString(), owner, tag, string(raw),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to write partition (%s, %s): %v", owner, tag, err)
		return fmt.Errorf("failed to write partition: %w", err)
	}

	logging.StoreDebug("Wrote partition (%s, %s): %d records, %d bytes", owner, tag, len(records), len(raw))
	return nil
}

// DeletePartition removes the (owner, tag) key entirely.
func (s *SQLiteStore) DeletePartition(ctx context.Context, owner, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM partitions WHERE owner = ? AND tag = ?`, owner, tag)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to delete partition (%s, %s): %v", owner, tag, err)
		return fmt.Errorf("failed to delete partition: %w", err)
	}

	logging.StoreDebug("Deleted partition (%s, %s)", owner, tag)
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
