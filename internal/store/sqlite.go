package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the durable backend: documents persisted as JSON rows,
// merge semantics identical to MemStore, change notifications in
// process. Games survive a server restart; cross-process replication is
// out of scope.
type SQLiteStore struct {
	db       *sql.DB
	notifier *notifier
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id       TEXT PRIMARY KEY,
	revision INTEGER NOT NULL,
	data     TEXT NOT NULL
);`

// OpenSQLite opens (creating if necessary) a document database at path.
// Use ":memory:" for a throwaway database in tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite handles one writer at a time; serialise at the pool level
	// rather than bubbling SQLITE_BUSY to callers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db, notifier: newNotifier()}, nil
}

// Close releases the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, id string, doc any) (Snapshot, error) {
	data, err := toDoc(doc)
	if err != nil {
		return Snapshot{}, err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Snapshot{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, revision, data) VALUES (?, 1, ?)`, id, string(raw))
	if err != nil {
		if isConstraintError(err) {
			return Snapshot{}, fmt.Errorf("%w: %s", ErrExists, id)
		}
		return Snapshot{}, fmt.Errorf("insert document: %w", err)
	}

	return Snapshot{ID: id, Revision: 1, Data: raw}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Snapshot, error) {
	var revision int64
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT revision, data FROM documents WHERE id = ?`, id).Scan(&revision, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("select document: %w", err)
	}
	return Snapshot{ID: id, Revision: revision, Data: []byte(raw)}, nil
}

func (s *SQLiteStore) Apply(ctx context.Context, id string, update Update) (Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var revision int64
	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT revision, data FROM documents WHERE id = ?`, id).Scan(&revision, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("select document: %w", err)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return Snapshot{}, fmt.Errorf("decode document: %w", err)
	}
	if err := applyUpdate(data, update); err != nil {
		return Snapshot{}, err
	}

	merged, err := json.Marshal(data)
	if err != nil {
		return Snapshot{}, err
	}
	revision++

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET revision = ?, data = ? WHERE id = ?`,
		revision, string(merged), id); err != nil {
		return Snapshot{}, fmt.Errorf("update document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("commit: %w", err)
	}

	snap := Snapshot{ID: id, Revision: revision, Data: merged}
	s.notifier.publish(id, snap)
	return snap, nil
}

func (s *SQLiteStore) Subscribe(ctx context.Context, id string) (<-chan Snapshot, func(), error) {
	snap, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.notifier.subscribe(ctx, id, snap)
	return ch, cancel, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM documents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func isConstraintError(err error) bool {
	// modernc.org/sqlite surfaces SQLITE_CONSTRAINT in the error text;
	// the driver has no exported sentinel for it.
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint") ||
		strings.Contains(err.Error(), "constraint failed"))
}
