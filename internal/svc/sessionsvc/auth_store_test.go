package sessionsvc_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mkrupp/homecase-console/internal/domain"
	"github.com/mkrupp/homecase-console/internal/repo/token"

	. "github.com/mkrupp/homecase-console/internal/svc/sessionsvc"
)

var testScope = domain.TokenScope{Domain: "api.example.com", Path: "/", MaxAge: domain.DefaultTokenMaxAge}

func newTestAuthStore(t *testing.T, repo token.Repository) *AuthStore {
	t.Helper()

	if repo == nil {
		repo = token.NewMemoryTokenRepository(nil)
	}

	store, err := NewAuthStore(context.Background(), repo, "authToken", testScope)
	if err != nil {
		t.Fatalf("NewAuthStore() error = %v", err)
	}

	return store
}

// failingRepo is a token repository whose writes fail.
type failingRepo struct {
	token.Repository
}

var errRepoDown = errors.New("repo down")

func (failingRepo) Set(context.Context, string, string, domain.TokenScope) error { return errRepoDown }
func (failingRepo) Remove(context.Context, string, domain.TokenScope) error      { return errRepoDown }

func TestAuthStore_LoadsPersistedToken(t *testing.T) {
	t.Parallel()

	repo := token.NewMemoryTokenRepository(nil)
	if err := repo.Set(context.Background(), "authToken", "T0", testScope); err != nil {
		t.Fatal(err)
	}

	store := newTestAuthStore(t, repo)

	if got, ok := store.Token(); !ok || got != "T0" {
		t.Errorf("Token() = %q, %v; want T0, true", got, ok)
	}
}

func TestAuthStore_SetTokenAndLogout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := token.NewMemoryTokenRepository(nil)
	store := newTestAuthStore(t, repo)

	var events []TokenState
	store.Subscribe(func(ts TokenState) { events = append(events, ts) })

	if store.Authenticated() {
		t.Fatal("new store is authenticated")
	}

	if err := store.SetToken(ctx, "T1"); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}

	// same token again does not notify
	if err := store.SetToken(ctx, "T1"); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}

	entry, found, err := repo.Get(ctx, "authToken", testScope)
	if err != nil || !found || entry.Value != "T1" {
		t.Fatalf("persisted entry = %+v, %v, %v", entry, found, err)
	}

	if want := time.Now().Add(domain.DefaultTokenMaxAge); entry.ExpiresAt.Before(want.Add(-time.Minute)) {
		t.Errorf("ExpiresAt = %v, want about %v", entry.ExpiresAt, want)
	}

	if err := store.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	// logging out twice does not notify
	if err := store.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if _, found, _ := repo.Get(ctx, "authToken", testScope); found {
		t.Error("token still persisted after Logout()")
	}

	want := []TokenState{{Token: "T1", Authenticated: true}, {}}
	if len(events) != len(want) || events[0] != want[0] || events[1] != want[1] {
		t.Errorf("events = %+v, want %+v", events, want)
	}
}

func TestAuthStore_SetTokenSpecialValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestAuthStore(t, nil)

	if err := store.SetToken(ctx, "T1"); err != nil {
		t.Fatal(err)
	}

	if err := store.SetToken(ctx, ""); err != nil {
		t.Fatalf("SetToken(\"\") error = %v", err)
	}

	if got, _ := store.Token(); got != "T1" {
		t.Errorf("empty SetToken changed token to %q", got)
	}

	if err := store.SetToken(ctx, domain.LogoutToken); err != nil {
		t.Fatalf("SetToken(none) error = %v", err)
	}

	if store.Authenticated() {
		t.Error("SetToken(none) did not log out")
	}
}

func TestAuthStore_Expire(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestAuthStore(t, nil)

	if err := store.SetToken(ctx, "T2"); err != nil {
		t.Fatal(err)
	}

	if err := store.Expire(ctx, "T1"); err != nil {
		t.Fatalf("Expire() error = %v", err)
	}

	if got, _ := store.Token(); got != "T2" {
		t.Errorf("Expire of an old token removed %q", got)
	}

	if err := store.Expire(ctx, "T2"); err != nil {
		t.Fatalf("Expire() error = %v", err)
	}

	if store.Authenticated() {
		t.Error("Expire of the current token kept it")
	}
}

func TestAuthStore_RepositoryFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestAuthStore(t, failingRepo{token.NewMemoryTokenRepository(nil)})

	if err := store.SetToken(ctx, "T1"); !errors.Is(err, errRepoDown) {
		t.Errorf("SetToken() error = %v, want %v", err, errRepoDown)
	}

	if store.Authenticated() {
		t.Error("token kept after failed persist")
	}
}

func TestAuthStore_Unsubscribe(t *testing.T) {
	t.Parallel()

	store := newTestAuthStore(t, nil)

	calls := 0
	unsubscribe := store.Subscribe(func(TokenState) { calls++ })
	unsubscribe()
	unsubscribe()

	if err := store.SetToken(context.Background(), "T1"); err != nil {
		t.Fatal(err)
	}

	if calls != 0 {
		t.Errorf("unsubscribed observer called %d times", calls)
	}
}

func TestAuthStoreConfig_Scope(t *testing.T) {
	t.Parallel()

	scope := AuthStoreConfig{MaxAge: time.Hour}.Scope("api.example.com")
	if scope.Domain != "api.example.com" || scope.Path != "/" || scope.MaxAge != time.Hour {
		t.Errorf("Scope() = %+v", scope)
	}

	scope = AuthStoreConfig{Domain: "example.com", Path: "/app"}.Scope("api.example.com")
	if scope.Domain != "example.com" || scope.Path != "/app" {
		t.Errorf("Scope() = %+v", scope)
	}
}
