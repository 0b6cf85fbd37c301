//go:build integration || all

package token

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mkrupp/homecase-console/internal/domain"
)

func TestSQLiteTokenRepository(t *testing.T) {
	t.Parallel()

	testRepositoryContract(t, func(t *testing.T, clock *fakeClock) Repository {
		t.Helper()

		repo, err := NewSQLiteTokenRepository(context.Background(), SQLiteTokenRepositoryConfig{
			DatabasePath: filepath.Join(t.TempDir(), "nested", "console.db"),
		})
		if err != nil {
			t.Fatalf("failed to create repository: %v", err)
		}

		t.Cleanup(func() { _ = repo.Close() })

		repo.now = clock.Now

		return repo
	})
}

func TestSQLiteTokenRepository_Persists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := SQLiteTokenRepositoryConfig{DatabasePath: filepath.Join(t.TempDir(), "console.db")}
	scope := domain.TokenScope{Domain: "localhost", Path: "/", MaxAge: domain.DefaultTokenMaxAge}

	repo, err := NewSQLiteTokenRepository(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}

	if err := repo.Set(ctx, "authToken", "abc", scope); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := repo.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewSQLiteTokenRepository(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to reopen repository: %v", err)
	}
	defer reopened.Close()

	entry, found, err := reopened.Get(ctx, "authToken", scope)
	if err != nil || !found || entry.Value != "abc" {
		t.Errorf("Get() after reopen = %+v, %v, %v", entry, found, err)
	}
}

func newCookieFileTestRepo(t *testing.T, dir string) *CookieFileTokenRepository {
	t.Helper()

	repo, err := NewCookieFileTokenRepository(context.Background(), CookieFileTokenRepositoryConfig{
		Path:    filepath.Join(dir, "cookies.json"),
		KeyFile: filepath.Join(dir, "cookies.key"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}

	return repo
}

func TestCookieFileTokenRepository(t *testing.T) {
	t.Parallel()

	testRepositoryContract(t, func(t *testing.T, clock *fakeClock) Repository {
		t.Helper()

		repo := newCookieFileTestRepo(t, t.TempDir())
		repo.now = clock.Now

		return repo
	})
}

func TestCookieFileTokenRepository_SharesKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	scope := domain.TokenScope{Domain: "localhost", Path: "/", MaxAge: domain.DefaultTokenMaxAge}

	if err := newCookieFileTestRepo(t, dir).Set(ctx, "authToken", "abc", scope); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	entry, found, err := newCookieFileTestRepo(t, dir).Get(ctx, "authToken", scope)
	if err != nil || !found || entry.Value != "abc" {
		t.Errorf("Get() from second instance = %+v, %v, %v", entry, found, err)
	}

	info, err := os.Stat(filepath.Join(dir, "cookies.key"))
	if err != nil {
		t.Fatalf("stat key file: %v", err)
	}

	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("key file mode = %o, want 600", perm)
	}
}

func TestCookieFileTokenRepository_RejectsTampering(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	scope := domain.TokenScope{Domain: "localhost", Path: "/"}
	repo := newCookieFileTestRepo(t, dir)

	if err := repo.Set(ctx, "authToken", "abc", scope); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// a value copied to another scope does not verify
	records, err := repo.load()
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	records[0].Domain = "evil.example.com"
	if err := repo.save(records); err != nil {
		t.Fatalf("save() error = %v", err)
	}

	if _, found, err := repo.Get(ctx, "authToken", domain.TokenScope{Domain: "evil.example.com"}); found || err != nil {
		t.Errorf("Get() of moved cookie = %v, %v", found, err)
	}
}

func TestGetCookieKeys_InvalidFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cookies.key")
	if err := os.WriteFile(path, []byte("short"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, _, err := GetCookieKeys(path); err == nil {
		t.Error("GetCookieKeys() accepted a truncated key file")
	}
}
