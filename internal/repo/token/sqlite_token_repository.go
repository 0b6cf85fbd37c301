package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Atrox/homedir"
	_ "modernc.org/sqlite"

	"github.com/mkrupp/homecase-console/internal/domain"
	"github.com/mkrupp/homecase-console/internal/infra/logging"
)

// SQLiteTokenRepositoryConfig holds configuration for the SQLite token repository.
type SQLiteTokenRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file; "~" is expanded
	DatabasePath string `env:"DATABASE_PATH" default:"~/.config/homecase/console.db"`
}

// SQLiteTokenRepository implements Repository using SQLite as the storage backend.
type SQLiteTokenRepository struct {
	db        *sql.DB
	log       logging.Logger
	now       func() time.Time
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteTokenRepository)(nil)

// SQLiteTokenRepositoryFactory creates a factory function that returns a new SQLiteTokenRepository.
// The factory function implements the RepositoryFactory type.
func SQLiteTokenRepositoryFactory(cfg SQLiteTokenRepositoryConfig) RepositoryFactory {
	return func(ctx context.Context) (Repository, error) {
		return NewSQLiteTokenRepository(ctx, cfg)
	}
}

// NewSQLiteTokenRepository creates a new SQLiteTokenRepository with the given configuration.
// It creates the database directory, opens the connection and creates the schema if needed.
func NewSQLiteTokenRepository(ctx context.Context, cfg SQLiteTokenRepositoryConfig) (*SQLiteTokenRepository, error) {
	path, err := homedir.Expand(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("expand database path: %w", err)
	}

	log := logging.GetLogger("repo.token.sqlite_token_repository").With(
		logging.Group("db", "path", path),
	)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("mkdir all: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := initializeDB(ctx, db); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("initialize db: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	log.DebugContext(ctx, "token database ready")

	return &SQLiteTokenRepository{
		db:        db,
		log:       log,
		now:       time.Now,
		writeLock: new(sync.Mutex),
	}, nil
}

func initializeDB(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tokens (
			name       TEXT    NOT NULL,
			domain     TEXT    NOT NULL,
			path       TEXT    NOT NULL,
			value      TEXT    NOT NULL,
			expires_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (name, domain, path)
		)
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Get implements Repository.Get using SQLite. Expired rows are deleted on read.
func (r *SQLiteTokenRepository) Get(
	ctx context.Context,
	name string,
	scope domain.TokenScope,
) (*domain.StoredToken, bool, error) {
	var (
		entry     domain.StoredToken
		expiresAt int64
		path      = normalizePath(scope.Path)
	)

	err := r.db.QueryRowContext(ctx,
		"SELECT name, domain, path, value, expires_at FROM tokens WHERE name = ? AND domain = ? AND path = ?",
		name,
		scope.Domain,
		path,
	).Scan(&entry.Name, &entry.Domain, &entry.Path, &entry.Value, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("query token: %w", err)
	}

	if expiresAt > 0 {
		entry.ExpiresAt = time.Unix(expiresAt, 0)
	}

	if entry.Expired(r.now()) {
		r.log.DebugContext(ctx, "token expired", "name", name)

		if err := r.Remove(ctx, name, scope); err != nil {
			return nil, false, errors.Join(domain.ErrTokenExpired, err)
		}

		return nil, false, nil
	}

	return &entry, true, nil
}

// Set implements Repository.Set using an upsert.
func (r *SQLiteTokenRepository) Set(ctx context.Context, name string, value string, scope domain.TokenScope) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	now := r.now()

	var expires int64
	if at := expiresAt(now, scope); !at.IsZero() {
		expires = at.Unix()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tokens (name, domain, path, value, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name, domain, path) DO UPDATE SET
			value      = excluded.value,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at
	`,
		name,
		scope.Domain,
		normalizePath(scope.Path),
		value,
		expires,
		now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}

	return nil
}

// Remove implements Repository.Remove using SQLite.
func (r *SQLiteTokenRepository) Remove(ctx context.Context, name string, scope domain.TokenScope) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM tokens WHERE name = ? AND domain = ? AND path = ?",
		name,
		scope.Domain,
		normalizePath(scope.Path),
	); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}

	return nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteTokenRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
