package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jingkaihe/rulesmgr/pkg/db"
	"github.com/jingkaihe/rulesmgr/pkg/db/migrations"
	"github.com/jingkaihe/rulesmgr/pkg/logger"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// SQLiteStore keeps each setting as one row of the settings table.
type SQLiteStore struct {
	db *sqlx.DB
}

// OpenSQLiteStore opens (and migrates) the database at dbPath.
func OpenSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	sqlDB, err := db.OpenAndMigrate(ctx, dbPath, migrations.All())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open settings database")
	}
	return &SQLiteStore{db: sqlDB}, nil
}

// Get returns the value stored under key.
func (s *SQLiteStore) Get(ctx context.Context, key string) (any, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, "SELECT value FROM settings WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read setting %s", key)
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, errors.Wrapf(err, "failed to decode setting %s", key)
	}
	return value, nil
}

// Update upserts key, or deletes it when value is nil.
func (s *SQLiteStore) Update(ctx context.Context, key string, value any) error {
	if value == nil {
		_, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
		return errors.Wrapf(err, "failed to delete setting %s", key)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "failed to encode setting %s", key)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(raw), time.Now().UTC())
	if err != nil {
		return errors.Wrapf(err, "failed to write setting %s", key)
	}

	logger.G(ctx).WithField("key", key).Debug("updated setting")
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
