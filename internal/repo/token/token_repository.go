package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkrupp/homecase-console/internal/domain"
)

// ErrUnknownDriver is returned by RepositoryFactoryFor for unsupported drivers.
var ErrUnknownDriver = errors.New("unknown token store driver")

// Repository defines durable storage for named bearer tokens.
// Entries are keyed by name, domain and path, like cookies.
type Repository interface {
	// Get returns the unexpired entry stored under name within scope.
	// Returns the entry and true if found, or nil and false if absent or expired.
	Get(ctx context.Context, name string, scope domain.TokenScope) (*domain.StoredToken, bool, error)

	// Set stores value under name within scope, replacing any previous entry.
	// The entry expires after scope.MaxAge; a zero MaxAge never expires.
	Set(ctx context.Context, name string, value string, scope domain.TokenScope) error

	// Remove deletes the entry stored under name within scope.
	// Removing an absent entry is not an error.
	Remove(ctx context.Context, name string, scope domain.TokenScope) error

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func(ctx context.Context) (Repository, error)

// Config selects and configures a token repository backend.
type Config struct {
	// Driver is one of "sqlite", "cookiefile" or "memory"
	Driver string `env:"DRIVER" default:"sqlite"`

	SQLite     SQLiteTokenRepositoryConfig     `envPrefix:"SQLITE_"`
	CookieFile CookieFileTokenRepositoryConfig `envPrefix:"COOKIEFILE_"`
}

// RepositoryFactoryFor returns the factory for the configured driver.
func RepositoryFactoryFor(cfg Config) (RepositoryFactory, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return SQLiteTokenRepositoryFactory(cfg.SQLite), nil
	case "cookiefile":
		return CookieFileTokenRepositoryFactory(cfg.CookieFile), nil
	case "memory":
		return MemoryTokenRepositoryFactory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func expiresAt(now time.Time, scope domain.TokenScope) time.Time {
	if scope.MaxAge <= 0 {
		return time.Time{}
	}

	return now.Add(scope.MaxAge)
}

func normalizePath(path string) string {
	if path == "" {
		return "/"
	}

	return path
}
