package sessionsvc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mkrupp/homecase-console/internal/domain"
	"github.com/mkrupp/homecase-console/internal/infra/logging"
	"github.com/mkrupp/homecase-console/internal/repo/token"
)

// AuthStoreConfig describes where the bearer token is persisted.
type AuthStoreConfig struct {
	// CookieName is the name the token is stored under
	CookieName string `env:"COOKIE_NAME" default:"authToken"`

	// Domain scopes the token; empty means the host of the API base URL
	Domain string `env:"DOMAIN" default:""`

	// Path scopes the token
	Path string `env:"PATH" default:"/"`

	// MaxAge is how long a stored token stays valid
	MaxAge time.Duration `env:"MAX_AGE" default:"8760h"` // 365d
}

// Scope returns the token scope, using defaultDomain when no domain is configured.
func (cfg AuthStoreConfig) Scope(defaultDomain string) domain.TokenScope {
	scope := domain.TokenScope{
		Domain: cfg.Domain,
		Path:   cfg.Path,
		MaxAge: cfg.MaxAge,
	}

	if scope.Domain == "" {
		scope.Domain = defaultDomain
	}

	if scope.Path == "" {
		scope.Path = "/"
	}

	return scope
}

// TokenState is the value published to AuthStore subscribers.
type TokenState struct {
	Token         string
	Authenticated bool
}

// AuthStore holds the session's bearer token and keeps it in sync with a token repository.
// It is the only writer of the repository.
type AuthStore struct {
	repo      token.Repository
	name      string
	scope     domain.TokenScope
	log       logging.Logger
	observers observers[TokenState]

	m     sync.Mutex
	token string
}

// NewAuthStore creates an AuthStore and loads any persisted token from repo.
func NewAuthStore(
	ctx context.Context,
	repo token.Repository,
	name string,
	scope domain.TokenScope,
) (*AuthStore, error) {
	log := logging.GetLogger("svc.sessionsvc.auth_store").With(
		logging.Group("token", "name", name, "domain", scope.Domain, "path", scope.Path),
	)

	entry, found, err := repo.Get(ctx, name, scope)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}

	store := &AuthStore{
		repo:  repo,
		name:  name,
		scope: scope,
		log:   log,
	}

	if found {
		store.token = entry.Value
		log.DebugContext(ctx, "persisted token loaded", "expires", entry.ExpiresAt)
	}

	return store, nil
}

// Token returns the current token. It never touches the network.
func (s *AuthStore) Token() (string, bool) {
	s.m.Lock()
	defer s.m.Unlock()

	return s.token, s.token != ""
}

// Authenticated reports whether a token is present.
func (s *AuthStore) Authenticated() bool {
	_, ok := s.Token()

	return ok
}

// State returns the current token state.
func (s *AuthStore) State() TokenState {
	t, ok := s.Token()

	return TokenState{Token: t, Authenticated: ok}
}

// Scope returns the scope tokens are persisted under.
func (s *AuthStore) Scope() domain.TokenScope {
	return s.scope
}

// Subscribe registers fn to be called after every token change.
// The returned function removes the subscription.
func (s *AuthStore) Subscribe(fn func(TokenState)) (unsubscribe func()) {
	return s.observers.subscribe(fn)
}

// SetToken persists t and makes it the current token.
// An empty token is ignored and domain.LogoutToken logs out.
func (s *AuthStore) SetToken(ctx context.Context, t string) (err error) {
	switch t {
	case "":
		return nil
	case domain.LogoutToken:
		return s.Logout(ctx)
	}

	defer func() {
		if err != nil {
			s.log.ErrorContext(ctx, "set token failed", "error", err)
		}
	}()

	s.m.Lock()

	if s.token == t {
		s.m.Unlock()

		return nil
	}

	if err := s.repo.Set(ctx, s.name, t, s.scope); err != nil {
		s.m.Unlock()

		return fmt.Errorf("persist token: %w", err)
	}

	s.token = t
	s.m.Unlock()

	s.log.DebugContext(ctx, "token set")
	s.observers.notify(TokenState{Token: t, Authenticated: true})

	return nil
}

// Logout removes the current token. Subscribers are notified if a token was present.
// The in-memory token is cleared even when the repository fails.
func (s *AuthStore) Logout(ctx context.Context) error {
	return s.logout(ctx, "")
}

// Expire logs out only if t is still the current token.
// It lets a consumer drop a token it found rejected without racing a newer one.
func (s *AuthStore) Expire(ctx context.Context, t string) error {
	if t == "" {
		return nil
	}

	return s.logout(ctx, t)
}

func (s *AuthStore) logout(ctx context.Context, only string) (err error) {
	defer func() {
		if err != nil {
			s.log.ErrorContext(ctx, "logout failed", "error", err)
		}
	}()

	s.m.Lock()

	if only != "" && s.token != only {
		s.m.Unlock()

		return nil
	}

	had := s.token != ""
	s.token = ""

	if rmErr := s.repo.Remove(ctx, s.name, s.scope); rmErr != nil {
		err = fmt.Errorf("remove token: %w", rmErr)
	}

	s.m.Unlock()

	if had {
		s.log.DebugContext(ctx, "token removed")
		s.observers.notify(TokenState{})
	}

	return err
}
