package actioncache

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"golang.org/x/xerrors"
	_ "modernc.org/sqlite"

	"github.com/razel-build/razel/internal/action"
	"github.com/razel-build/razel/internal/digest"
)

// LocalStore is an ActionCache and ContentAddressableStorage backed by a
// SQLite index (action.Key -> Result) and a content-addressed blob tree on
// disk, both rooted at dir. Blob writes go through renameio so a crash
// never leaves a half-written blob visible under its final name.
type LocalStore struct {
	dir string
	db  *sql.DB
}

var _ ActionCache = (*LocalStore)(nil)
var _ ContentAddressableStorage = (*LocalStore)(nil)

// Open creates dir if needed and opens (creating if needed) the SQLite
// index inside it.
func Open(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "blobs"), 0755); err != nil {
		return nil, xerrors.Errorf("actioncache: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "actions.sqlite3"))
	if err != nil {
		return nil, xerrors.Errorf("actioncache: open index: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS action_results (
	action_hash  TEXT PRIMARY KEY,
	exit_code    INTEGER NOT NULL,
	outputs_json TEXT NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, xerrors.Errorf("actioncache: migrate index: %w", err)
	}
	return &LocalStore{dir: dir, db: db}, nil
}

// Close releases the underlying SQLite handle.
func (s *LocalStore) Close() error { return s.db.Close() }

func (s *LocalStore) GetResult(ctx context.Context, key action.Key) (Result, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT exit_code, outputs_json FROM action_results WHERE action_hash = ?`, key.Hash)
	var exitCode int
	var outputsJSON string
	if err := row.Scan(&exitCode, &outputsJSON); err != nil {
		if err == sql.ErrNoRows {
			return Result{}, false, nil
		}
		return Result{}, false, xerrors.Errorf("actioncache: get %s: %w", key.Hash, err)
	}
	var outputs map[string]digest.Blob
	if err := json.Unmarshal([]byte(outputsJSON), &outputs); err != nil {
		return Result{}, false, xerrors.Errorf("actioncache: decode %s: %w", key.Hash, err)
	}
	return Result{ExitCode: exitCode, OutputDigests: outputs}, true, nil
}

func (s *LocalStore) PushResult(ctx context.Context, key action.Key, result Result) error {
	outputsJSON, err := json.Marshal(result.OutputDigests)
	if err != nil {
		return xerrors.Errorf("actioncache: encode %s: %w", key.Hash, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO action_results (action_hash, exit_code, outputs_json) VALUES (?, ?, ?)
		 ON CONFLICT(action_hash) DO UPDATE SET exit_code = excluded.exit_code, outputs_json = excluded.outputs_json`,
		key.Hash, result.ExitCode, string(outputsJSON))
	if err != nil {
		return xerrors.Errorf("actioncache: push %s: %w", key.Hash, err)
	}
	return nil
}

func (s *LocalStore) blobPath(d digest.Blob) string {
	if len(d.Hash) < 2 {
		return filepath.Join(s.dir, "blobs", d.Hash)
	}
	return filepath.Join(s.dir, "blobs", d.Hash[:2], d.Hash)
}

func (s *LocalStore) GetBlob(_ context.Context, d digest.Blob) ([]byte, bool, error) {
	b, err := os.ReadFile(s.blobPath(d))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, xerrors.Errorf("actioncache: read blob %s: %w", d.Hash, err)
	}
	return b, true, nil
}

func (s *LocalStore) PushBlob(_ context.Context, d digest.Blob, blob []byte) error {
	dst := s.blobPath(d)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return xerrors.Errorf("actioncache: %w", err)
	}
	if err := renameio.WriteFile(dst, blob, 0644); err != nil {
		return xerrors.Errorf("actioncache: write blob %s: %w", d.Hash, err)
	}
	return nil
}
