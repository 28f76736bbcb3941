// Package migrations holds the schema of the SQLite settings backend.
// Versions use the YYYYMMDDHHmmss format.
package migrations

import (
	"database/sql"

	"github.com/jingkaihe/rulesmgr/pkg/db"
	"github.com/pkg/errors"
)

// All returns every migration in application order.
func All() []db.Migration {
	return []db.Migration{
		Migration20260301120000CreateSettings(),
	}
}

// Migration20260301120000CreateSettings creates the key/value settings table.
func Migration20260301120000CreateSettings() db.Migration {
	return db.Migration{
		Version:     20260301120000,
		Description: "Create settings table",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS settings (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL,
					updated_at DATETIME NOT NULL
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create settings table")
			}
			return nil
		},
	}
}
