package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/athena-web3/dashboard-core/internal/core/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	key        TEXT PRIMARY KEY,
	timestamp  INTEGER NOT NULL,
	data       BLOB NOT NULL
)`

// SQLiteStore keeps snapshots in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, snap domain.Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO snapshots(key, timestamp, data) VALUES(?, ?, ?)
ON CONFLICT(key) DO UPDATE SET timestamp = excluded.timestamp, data = excluded.data`,
		key, snap.Timestamp, []byte(snap.Data))
	if err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (domain.Snapshot, bool, error) {
	var snap domain.Snapshot
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT timestamp, data FROM snapshots WHERE key = ?`, key).Scan(&snap.Timestamp, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, false, nil
	}
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("query snapshot %s: %w", key, err)
	}
	snap.Data = data
	return snap, true, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
