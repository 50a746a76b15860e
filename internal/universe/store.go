package universe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store persists symbol overrides, one record per universe id
type Store interface {
	// Load returns the override and whether one exists
	Load(ctx context.Context, universeID string) ([]string, bool, error)
	Save(ctx context.Context, universeID string, symbols []string) error
}

// record is the persisted document shape
type record struct {
	Symbols []string `json:"symbols"`
}

// FileStore keeps each override in <dir>/<lowercase id>.json
type FileStore struct {
	dir string
}

// NewFileStore creates the data directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(universeID string) string {
	return filepath.Join(s.dir, strings.ToLower(universeID)+".json")
}

// Load reads the override file; a missing file is not an error
func (s *FileStore) Load(_ context.Context, universeID string) ([]string, bool, error) {
	data, err := os.ReadFile(s.path(universeID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read universe %s: %w", universeID, err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("decode universe %s: %w", universeID, err)
	}
	if rec.Symbols == nil {
		rec.Symbols = []string{}
	}
	return rec.Symbols, true, nil
}

// Save writes through a temp file and renames it over the record
func (s *FileStore) Save(_ context.Context, universeID string, symbols []string) error {
	data, err := json.MarshalIndent(record{Symbols: symbols}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode universe %s: %w", universeID, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+strings.ToLower(universeID)+"-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write universe %s: %w", universeID, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync universe %s: %w", universeID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close universe %s: %w", universeID, err)
	}

	if err := os.Rename(tmpName, s.path(universeID)); err != nil {
		return fmt.Errorf("replace universe %s: %w", universeID, err)
	}
	return nil
}
