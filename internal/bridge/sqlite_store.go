package bridge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/erg0nix/recall/internal/core"
)

// SQLiteStore keeps snapshots as rows of a single table. Each save is one
// transaction, so a crash leaves either the old or the new row set.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS snapshots (
		id          TEXT PRIMARY KEY,
		snapshot_at TEXT NOT NULL,
		payload     BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_at ON snapshots(snapshot_at DESC);
	`)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, id core.SnapshotID, data []byte) error {
	at, ok := core.SnapshotTime(id)
	if !ok {
		return fmt.Errorf("save snapshot: %w: malformed id %q", core.ErrInvalidInput, id)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, snapshot_at, payload) VALUES (?, ?, ?)`,
		string(id), at.Format(time.RFC3339Nano), data,
	); err != nil {
		return fmt.Errorf("save snapshot %s: %w", id, err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) Load(ctx context.Context, id core.SnapshotID) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE id = ?`, string(id)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	return data, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, snapshot_at, length(payload) FROM snapshots ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var (
			id   string
			at   string
			size int64
		)
		if err := rows.Scan(&id, &at, &size); err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}

		info := Info{ID: core.SnapshotID(id), Size: size}
		if parsed, err := time.Parse(time.RFC3339Nano, at); err == nil {
			info.SnapshotAt = parsed
		}
		infos = append(infos, info)
	}

	return infos, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, id core.SnapshotID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("snapshot %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
