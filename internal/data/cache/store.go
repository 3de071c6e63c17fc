package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dwmm/internal/core/ports"
	"dwmm/internal/engine/parser"

	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Store is a sqlite-backed declaration cache keyed by file path. An entry is
// valid only while its hash matches the caller's.
type Store struct {
	path string
	db   *sql.DB
}

var _ ports.DeclarationCache = (*Store)(nil)

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("cache path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("cache path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite cache %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}
	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Get returns the cached declarations for path when the stored hash equals
// hash.
func (s *Store) Get(ctx context.Context, path, hash string) ([]parser.Declaration, bool, error) {
	var storedHash, payload string
	err := s.withRetry("get declarations", func() error {
		return s.db.QueryRowContext(ctx, `SELECT hash, payload FROM declarations WHERE path = ?`, path).Scan(&storedHash, &payload)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if storedHash != hash {
		return nil, false, nil
	}
	var decls []parser.Declaration
	if err := json.Unmarshal([]byte(payload), &decls); err != nil {
		return nil, false, fmt.Errorf("decode cached declarations for %s: %w", path, err)
	}
	return decls, true, nil
}

const upsertDeclarations = `
INSERT INTO declarations (path, hash, payload, updated_at_utc) VALUES (?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
  hash=excluded.hash,
  payload=excluded.payload,
  updated_at_utc=excluded.updated_at_utc
`

func (s *Store) Put(ctx context.Context, path, hash string, decls []parser.Declaration) error {
	payload, err := encodeDeclarations(path, decls)
	if err != nil {
		return err
	}
	return s.withRetry("put declarations", func() error {
		_, err := s.db.ExecContext(ctx, upsertDeclarations, path, hash, payload, time.Now().UTC().Format(time.RFC3339Nano))
		return err
	})
}

func (s *Store) Delete(ctx context.Context, path string) error {
	return s.withRetry("delete declarations", func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM declarations WHERE path = ?`, path)
		return err
	})
}

// Apply runs a batch of writes in one transaction, in order.
func (s *Store) Apply(ctx context.Context, batch []WriteRequest) error {
	payloads := make([]string, len(batch))
	for i, req := range batch {
		if req.Op != OpPut {
			continue
		}
		payload, err := encodeDeclarations(req.Path, req.Decls)
		if err != nil {
			return err
		}
		payloads[i] = payload
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.withRetry("apply cache writes", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		for i, req := range batch {
			switch req.Op {
			case OpPut:
				_, err = tx.ExecContext(ctx, upsertDeclarations, req.Path, req.Hash, payloads[i], now)
			case OpDelete:
				_, err = tx.ExecContext(ctx, `DELETE FROM declarations WHERE path = ?`, req.Path)
			}
			if err != nil {
				return fmt.Errorf("%s %s: %w", req.Op, req.Path, err)
			}
		}
		return tx.Commit()
	})
}

func encodeDeclarations(path string, decls []parser.Declaration) (string, error) {
	if decls == nil {
		decls = []parser.Declaration{}
	}
	payload, err := json.Marshal(decls)
	if err != nil {
		return "", fmt.Errorf("encode declarations for %s: %w", path, err)
	}
	return string(payload), nil
}

// Len returns the number of cached files.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM declarations`).Scan(&n)
	return n, err
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
