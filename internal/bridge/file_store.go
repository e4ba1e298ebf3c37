package bridge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/erg0nix/recall/internal/core"
)

const snapshotExt = ".json"

// FileStore keeps one file per snapshot in a directory. Files are written to
// a temporary name, synced and renamed into place.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(id core.SnapshotID) string {
	return filepath.Join(s.dir, string(id)+snapshotExt)
}

func (s *FileStore) Save(_ context.Context, id core.SnapshotID, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("save snapshot %s: %w", id, err)
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("save snapshot %s: %w", id, err)
	}

	if err := os.Rename(tmpPath, s.path(id)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("save snapshot %s: %w", id, err)
	}

	return syncDir(s.dir)
}

func (s *FileStore) Load(_ context.Context, id core.SnapshotID) ([]byte, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("snapshot %s: %w", id, core.ErrNotFound)
	}
	return data, err
}

func (s *FileStore) List(_ context.Context) ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, snapshotExt) {
			continue
		}

		id := core.SnapshotID(strings.TrimSuffix(name, snapshotExt))
		at, ok := core.SnapshotTime(id)
		if !ok {
			continue
		}

		info := Info{ID: id, SnapshotAt: at}
		if fi, err := entry.Info(); err == nil {
			info.Size = fi.Size()
		}
		infos = append(infos, info)
	}

	sortNewestFirst(infos)
	return infos, nil
}

func (s *FileStore) Delete(_ context.Context, id core.SnapshotID) error {
	if err := os.Remove(s.path(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("snapshot %s: %w", id, core.ErrNotFound)
		}
		return err
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()

	// Some filesystems do not support syncing directories.
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return err
	}
	return nil
}

func sortNewestFirst(infos []Info) {
	slices.SortFunc(infos, func(a, b Info) int {
		return strings.Compare(string(b.ID), string(a.ID))
	})
}
