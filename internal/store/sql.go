package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// journalSchemaVersion is stored in SQLite's user_version pragma.
const journalSchemaVersion = 1

// sqliteBusyTimeout is how long SQLite waits on a locked database, in
// milliseconds. The store lock already serializes writers, so this only
// covers stray readers.
const sqliteBusyTimeout = 5000

func openSqlite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("open sqlite: path is empty")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		PRAGMA busy_timeout = %d;
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = FULL;
		PRAGMA foreign_keys = ON;
	`, sqliteBusyTimeout))
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	return db, nil
}

func storedSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int

	err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}

	return version, nil
}

// ensureSchema creates the journal tables on a fresh database. The journal
// is primary data, so a version it does not know is an error, never a
// silent rebuild.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	version, err := storedSchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	switch version {
	case journalSchemaVersion:
		return nil
	case 0:
	default:
		return fmt.Errorf("%w: undo log schema version %d, want %d", ErrCorrupt, version, journalSchemaVersion)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema txn: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`CREATE TABLE groups (
			seq INTEGER PRIMARY KEY,
			kind TEXT NOT NULL,
			reverts INTEGER,
			command TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE entries (
			seq INTEGER PRIMARY KEY,
			group_seq INTEGER NOT NULL REFERENCES groups(seq),
			uuid TEXT NOT NULL,
			before TEXT,
			after TEXT
		)`,
		"CREATE INDEX idx_entries_group ON entries(group_seq)",
		fmt.Sprintf("PRAGMA user_version = %d", journalSchemaVersion),
	}

	for i, stmt := range statements {
		_, err := tx.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}

	return nil
}
