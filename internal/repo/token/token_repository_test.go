package token

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mkrupp/homecase-console/internal/domain"
)

type fakeClock struct {
	m   sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.m.Lock()
	defer c.m.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.m.Lock()
	defer c.m.Unlock()

	c.now = c.now.Add(d)
}

// testRepositoryContract exercises the behaviour every backend must share.
// newRepo returns a fresh, empty repository driven by the given clock.
func testRepositoryContract(t *testing.T, newRepo func(t *testing.T, clock *fakeClock) Repository) {
	t.Helper()

	scope := domain.TokenScope{Domain: "api.example.com", Path: "/", MaxAge: time.Hour}

	t.Run("get missing", func(t *testing.T) {
		repo := newRepo(t, newFakeClock())

		entry, found, err := repo.Get(context.Background(), "authToken", scope)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}

		if found || entry != nil {
			t.Errorf("Get() = %v, %v; want nil, false", entry, found)
		}
	})

	t.Run("set then get", func(t *testing.T) {
		clock := newFakeClock()
		repo := newRepo(t, clock)
		ctx := context.Background()

		if err := repo.Set(ctx, "authToken", "abc", scope); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		entry, found, err := repo.Get(ctx, "authToken", scope)
		if err != nil || !found {
			t.Fatalf("Get() = %v, %v, %v", entry, found, err)
		}

		if entry.Value != "abc" || entry.Domain != scope.Domain || entry.Path != "/" {
			t.Errorf("Get() = %+v", entry)
		}

		if want := clock.Now().Add(time.Hour); !entry.ExpiresAt.Equal(want) {
			t.Errorf("ExpiresAt = %v, want %v", entry.ExpiresAt, want)
		}
	})

	t.Run("set replaces", func(t *testing.T) {
		repo := newRepo(t, newFakeClock())
		ctx := context.Background()

		for _, v := range []string{"first", "second"} {
			if err := repo.Set(ctx, "authToken", v, scope); err != nil {
				t.Fatalf("Set(%q) error = %v", v, err)
			}
		}

		entry, _, err := repo.Get(ctx, "authToken", scope)
		if err != nil || entry == nil || entry.Value != "second" {
			t.Errorf("Get() = %+v, %v; want second", entry, err)
		}
	})

	t.Run("remove", func(t *testing.T) {
		repo := newRepo(t, newFakeClock())
		ctx := context.Background()

		if err := repo.Set(ctx, "authToken", "abc", scope); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		if err := repo.Remove(ctx, "authToken", scope); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}

		if _, found, _ := repo.Get(ctx, "authToken", scope); found {
			t.Error("token still present after Remove()")
		}

		if err := repo.Remove(ctx, "authToken", scope); err != nil {
			t.Errorf("second Remove() error = %v", err)
		}
	})

	t.Run("expiry", func(t *testing.T) {
		clock := newFakeClock()
		repo := newRepo(t, clock)
		ctx := context.Background()

		if err := repo.Set(ctx, "authToken", "abc", scope); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		clock.Advance(59 * time.Minute)

		if _, found, _ := repo.Get(ctx, "authToken", scope); !found {
			t.Fatal("token expired early")
		}

		clock.Advance(time.Minute)

		if _, found, err := repo.Get(ctx, "authToken", scope); found || err != nil {
			t.Errorf("Get() after expiry = %v, %v", found, err)
		}
	})

	t.Run("zero max age never expires", func(t *testing.T) {
		clock := newFakeClock()
		repo := newRepo(t, clock)
		ctx := context.Background()
		session := domain.TokenScope{Domain: scope.Domain}

		if err := repo.Set(ctx, "authToken", "abc", session); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		clock.Advance(10 * domain.DefaultTokenMaxAge)

		if _, found, _ := repo.Get(ctx, "authToken", session); !found {
			t.Error("token without max age expired")
		}
	})

	t.Run("scope isolation", func(t *testing.T) {
		repo := newRepo(t, newFakeClock())
		ctx := context.Background()

		if err := repo.Set(ctx, "authToken", "abc", scope); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		others := []domain.TokenScope{
			{Domain: "other.example.com", Path: "/"},
			{Domain: scope.Domain, Path: "/admin"},
		}

		for _, other := range others {
			if _, found, _ := repo.Get(ctx, "authToken", other); found {
				t.Errorf("token visible in scope %+v", other)
			}
		}

		if _, found, _ := repo.Get(ctx, "refreshToken", scope); found {
			t.Error("token visible under another name")
		}

		// empty path is the root path
		if _, found, _ := repo.Get(ctx, "authToken", domain.TokenScope{Domain: scope.Domain}); !found {
			t.Error("empty path did not match root path")
		}
	})
}

func TestMemoryTokenRepository(t *testing.T) {
	t.Parallel()

	testRepositoryContract(t, func(_ *testing.T, clock *fakeClock) Repository {
		return NewMemoryTokenRepository(clock.Now)
	})
}

func TestRepositoryFactoryFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		driver  string
		wantErr error
	}{
		{name: "sqlite", driver: "sqlite"},
		{name: "default", driver: ""},
		{name: "cookiefile", driver: "cookiefile"},
		{name: "memory", driver: "memory"},
		{name: "unknown", driver: "redis", wantErr: ErrUnknownDriver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			factory, err := RepositoryFactoryFor(Config{Driver: tt.driver})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("RepositoryFactoryFor() error = %v, want %v", err, tt.wantErr)
			}

			if tt.wantErr == nil && factory == nil {
				t.Error("RepositoryFactoryFor() returned nil factory")
			}
		})
	}
}
