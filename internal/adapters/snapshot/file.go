package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/athena-web3/dashboard-core/internal/core/domain"
)

// FileStore writes one JSON file per key under a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// getPath returns the file path for a key. Keys contain ':' so they are
// path-escaped.
func (s *FileStore) getPath(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+".json")
}

func (s *FileStore) ensureDir() error {
	return os.MkdirAll(s.dir, 0700)
}

// Get loads a snapshot. A missing file is not an error.
func (s *FileStore) Get(ctx context.Context, key string) (domain.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, false, err
	}

	data, err := os.ReadFile(s.getPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Snapshot{}, false, nil
		}
		return domain.Snapshot{}, false, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("failed to parse snapshot file: %w", err)
	}
	return snap, true, nil
}

// Put writes a snapshot atomically using temp file + rename.
func (s *FileStore) Put(ctx context.Context, key string, snap domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensureDir(); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	path := s.getPath(key)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create snapshot temp file: %w", err)
	}
	tempPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write snapshot temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close snapshot temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename snapshot temp file: %w", err)
	}
	return nil
}

// Delete removes a snapshot.
func (s *FileStore) Delete(key string) error {
	if err := os.Remove(s.getPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot file: %w", err)
	}
	return nil
}

// Keys lists the stored keys with the given prefix.
func (s *FileStore) Keys(prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// CleanupOld removes snapshots whose timestamp is older than maxAge.
func (s *FileStore) CleanupOld(ctx context.Context, maxAge time.Duration) (int, error) {
	keys, err := s.Keys("")
	if err != nil {
		return 0, err
	}

	now := time.Now()
	deleted := 0
	for _, key := range keys {
		snap, ok, err := s.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		if snap.Fresh(now, maxAge) {
			continue
		}
		if err := s.Delete(key); err == nil {
			deleted++
		}
	}
	return deleted, nil
}
