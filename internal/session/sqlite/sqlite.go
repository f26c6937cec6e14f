// Package sqlite keeps the session token in a local SQLite database so it
// survives across runs and can be shared by several processes on one host.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alphabot-ai/inkpost/internal/session"

	_ "modernc.org/sqlite"
)

type Backend struct {
	db  *sql.DB
	key string
}

func Open(path string) (*Backend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	b, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

// New migrates db and stores the token in it. The caller keeps ownership of
// db until Close.
func New(db *sql.DB) (*Backend, error) {
	if err := applySchema(db); err != nil {
		return nil, err
	}
	return &Backend{db: db, key: session.TokenKey}, nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}

// migrations is an ordered list of SQL migrations.
// Each migration runs exactly once, tracked by schema_version table.
var migrations = []string{
	// Migration 1: key/value storage
	`
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`,
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}

	return nil
}

func (b *Backend) Load(ctx context.Context) (string, error) {
	var value string
	row := b.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, b.key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (b *Backend) Save(ctx context.Context, token string) error {
	_, err := b.db.ExecContext(ctx, `
INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`, b.key, token, time.Now().Unix())
	return err
}

func (b *Backend) Delete(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, b.key)
	return err
}
