package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/jingkaihe/rulesmgr/pkg/logger"
	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
)

// FileStore keeps all settings in one JSON object on disk. Keys it does not
// touch are preserved when another key is updated.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore backed by path. The file and its parent
// directory are created on first update.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the settings file location.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the value stored under key.
func (s *FileStore) Get(ctx context.Context, key string) (any, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil, nil
	}

	data, err := lockedfile.Read(s.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read settings file")
	}

	values, err := decodeObject(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse settings file %s", s.path)
	}

	logger.G(ctx).WithField("key", key).Debug("read setting")
	return values[key], nil
}

// Update sets key to value inside the settings file under an exclusive lock.
func (s *FileStore) Update(ctx context.Context, key string, value any) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create settings directory")
	}

	err := lockedfile.Transform(s.path, func(data []byte) ([]byte, error) {
		values, err := decodeObject(data)
		if err != nil {
			// refuse to clobber a file we cannot read back
			return nil, errors.Wrapf(err, "failed to parse settings file %s", s.path)
		}

		if value == nil {
			delete(values, key)
		} else {
			values[key] = value
		}

		out, err := json.MarshalIndent(values, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal settings")
		}
		return append(out, '\n'), nil
	})
	if err != nil {
		return err
	}

	logger.G(ctx).WithField("key", key).Debug("updated setting")
	return nil
}

// Close is a no-op; the file is only held open during each call.
func (s *FileStore) Close() error {
	return nil
}

func decodeObject(data []byte) (map[string]any, error) {
	values := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	if values == nil {
		values = map[string]any{}
	}
	return values, nil
}
