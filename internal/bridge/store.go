package bridge

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/erg0nix/recall/internal/core"
)

// Info describes a stored snapshot without loading it.
type Info struct {
	ID         core.SnapshotID `json:"id"`
	SnapshotAt time.Time       `json:"snapshot_at"`
	Size       int64           `json:"size"`
}

// Store keeps encoded snapshots. Save must be atomic: a reader never sees a
// partially written snapshot. List returns the newest snapshot first.
type Store interface {
	Save(ctx context.Context, id core.SnapshotID, data []byte) error
	Load(ctx context.Context, id core.SnapshotID) ([]byte, error)
	List(ctx context.Context) ([]Info, error)
	Delete(ctx context.Context, id core.SnapshotID) error
	Close() error
}

// Snapshot store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// OpenStore opens the named backend under dir.
func OpenStore(backend, dir string) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(filepath.Join(dir, "snapshots"))
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dir, "snapshots.db"))
	default:
		return nil, fmt.Errorf("snapshot backend %q: %w: want file or sqlite", backend, core.ErrInvalidInput)
	}
}
