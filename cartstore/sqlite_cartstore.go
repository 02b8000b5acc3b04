// d8cart/cartstore/sqlite_cartstore.go

package cartstore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory SQLite database.
const MemoryPath = ":memory:"

const createItemsTable = `
CREATE TABLE IF NOT EXISTS storage_items (
	item_key   TEXT PRIMARY KEY,
	item_value TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);`

// SQLiteCartStore persists values in a local SQLite file, the on-device
// equivalent of an app's key-value storage.
type SQLiteCartStore struct {
	db   *sql.DB
	path string
	log  logrus.FieldLogger
}

// NewSQLiteCartStore opens (or creates) the database at path.
func NewSQLiteCartStore(path string, log logrus.FieldLogger) (*SQLiteCartStore, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create storage directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite database")
	}
	// One connection keeps writes serialized and an in-memory database shared.
	db.SetMaxOpenConns(1)

	return &SQLiteCartStore{
		db:   db,
		path: path,
		log:  log.WithFields(logrus.Fields{"store": "sqlite", "path": path}),
	}, nil
}

// Initialize creates the storage table if needed.
func (s *SQLiteCartStore) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createItemsTable); err != nil {
		return errors.Wrap(err, "failed to create storage_items table")
	}
	s.log.Info("SQLiteCartStore initialized")
	return nil
}

// GetItem returns the value stored under key.
func (s *SQLiteCartStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	s.log.WithField("key", key).Debug("SQLiteCartStore: GetItem called")

	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT item_value FROM storage_items WHERE item_key = ?`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "sqlite select %q", key)
	}
	return value, true, nil
}

// SetItem upserts the value stored under key.
func (s *SQLiteCartStore) SetItem(ctx context.Context, key, value string) error {
	s.log.WithFields(logrus.Fields{"key": key, "bytes": len(value)}).Debug("SQLiteCartStore: SetItem called")

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO storage_items (item_key, item_value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(item_key) DO UPDATE SET
			item_value = excluded.item_value,
			updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return errors.Wrapf(err, "sqlite upsert %q", key)
	}
	return nil
}

// RemoveItem deletes key. Removing a missing key is not an error.
func (s *SQLiteCartStore) RemoveItem(ctx context.Context, key string) error {
	s.log.WithField("key", key).Debug("SQLiteCartStore: RemoveItem called")

	if _, err := s.db.ExecContext(ctx, `DELETE FROM storage_items WHERE item_key = ?`, key); err != nil {
		return errors.Wrapf(err, "sqlite delete %q", key)
	}
	return nil
}

// Ping reports whether the database file is reachable.
func (s *SQLiteCartStore) Ping(ctx context.Context) bool {
	if err := s.db.PingContext(ctx); err != nil {
		s.log.WithError(err).Warn("SQLiteCartStore: Ping failed")
		return false
	}
	return true
}

func (s *SQLiteCartStore) Close() error {
	return s.db.Close()
}
