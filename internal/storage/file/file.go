package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goodtune/attr/internal/storage"
)

// Store implements storage.Store on a single JSON snapshot file.
type Store struct {
	ledger *ledgerStore
}

// Open returns a snapshot store rooted at path. The file is created on the
// first save.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}
	if err := storage.EnsureParentDir(path); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &Store{ledger: &ledgerStore{path: path}}, nil
}

// Close is a no-op; the snapshot is not held open between operations.
func (s *Store) Close() error { return nil }

// Ledger returns the LedgerStore implementation.
func (s *Store) Ledger() storage.LedgerStore { return s.ledger }

type ledgerStore struct {
	path string
}

func (l *ledgerStore) Load(ctx context.Context) (map[string]storage.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]storage.Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	sessions := map[string]storage.Session{}
	if len(data) == 0 {
		return sessions, nil
	}
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", l.path, err)
	}
	return sessions, nil
}

// Save writes to a temporary file in the same directory and renames it over
// the snapshot so readers never observe a partial write.
func (l *ledgerStore) Save(ctx context.Context, sessions map[string]storage.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
