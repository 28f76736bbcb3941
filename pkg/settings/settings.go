// Package settings provides user scoped key/value settings storage. Each
// key holds one JSON value; the global rule library lives under a single key.
// Two backends exist: a JSON settings file guarded by a file lock, and a
// SQLite table.
package settings

import (
	"context"

	"github.com/pkg/errors"
)

// Store reads and writes JSON values by key.
type Store interface {
	// Get returns the decoded JSON value stored under key, or nil when unset.
	Get(ctx context.Context, key string) (any, error)
	// Update replaces the value under key. A nil value removes the key.
	Update(ctx context.Context, key string, value any) error
	Close() error
}

// Backend names a Store implementation.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
)

// Options selects and locates a settings backend.
type Options struct {
	Backend Backend
	// Path is the JSON settings file used by the file backend.
	Path string
	// DBPath is the database used by the sqlite backend.
	DBPath string
}

// Open returns the Store described by opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendFile, "":
		if opts.Path == "" {
			return nil, errors.New("settings file path is required")
		}
		return NewFileStore(opts.Path), nil
	case BackendSQLite:
		if opts.DBPath == "" {
			return nil, errors.New("settings database path is required")
		}
		return OpenSQLiteStore(ctx, opts.DBPath)
	default:
		return nil, errors.Errorf("unknown settings backend %q", opts.Backend)
	}
}
