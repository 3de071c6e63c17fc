package cache

import (
	"database/sql"
	"errors"
	"fmt"
)

const SchemaVersion = 2

// PayloadFormat versions the JSON encoding of parser.Declaration stored in
// the payload column. Bump it when the declaration shape changes; a cache
// written under another format is emptied on open.
const PayloadFormat = "decl-v1"

var migrations = []string{
	1: `
CREATE TABLE IF NOT EXISTS declarations (
  path TEXT PRIMARY KEY,
  hash TEXT NOT NULL,
  payload TEXT NOT NULL,
  updated_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
`,
	2: `
CREATE TABLE IF NOT EXISTS cache_meta (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`,
}

// EnsureSchema migrates db to SchemaVersion and drops declarations encoded
// under a different PayloadFormat.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_migrations version: %w", err)
	}
	if current > SchemaVersion {
		return fmt.Errorf("cache schema version %d is newer than supported version %d", current, SchemaVersion)
	}
	for version := current + 1; version <= SchemaVersion; version++ {
		if err := migrate(db, version); err != nil {
			return err
		}
	}
	return checkPayloadFormat(db)
}

func migrate(db *sql.DB, version int) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(migrations[version]); err != nil {
		return fmt.Errorf("apply migration %d: %w", version, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, version); err != nil {
		return fmt.Errorf("record migration %d: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", version, err)
	}
	return nil
}

func checkPayloadFormat(db *sql.DB) error {
	var stored string
	err := db.QueryRow(`SELECT value FROM cache_meta WHERE key = 'payload_format'`).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read payload format: %w", err)
	}
	if stored == PayloadFormat {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin payload reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(`DELETE FROM declarations`); err != nil {
		return fmt.Errorf("clear declarations: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO cache_meta(key, value) VALUES ('payload_format', ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value`, PayloadFormat); err != nil {
		return fmt.Errorf("record payload format: %w", err)
	}
	return tx.Commit()
}
