package sessionsvc

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkrupp/homecase-console/internal/domain"
	context_ "github.com/mkrupp/homecase-console/internal/infra/context"
	"github.com/mkrupp/homecase-console/internal/infra/i18n"
	"github.com/mkrupp/homecase-console/internal/infra/logging"
	"github.com/mkrupp/homecase-console/internal/repo/token"
	"github.com/mkrupp/homecase-console/internal/svc/apiclient"
)

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("session closed")

// Session is the explicit application state handed to every command:
// the token, the current user and the locale, plus the API they talk to.
type Session struct {
	API    *apiclient.API
	Auth   *AuthStore
	User   *UserResolver
	Locale *LocaleStore

	repo token.Repository
	log  logging.Logger
}

// NewSession opens the token repository and wires the stores together.
// The user resolver is not started; call Start for background resolution.
func NewSession(
	ctx context.Context,
	api *apiclient.API,
	repoFactory token.RepositoryFactory,
	authCfg AuthStoreConfig,
	catalog *i18n.Catalog,
	locale domain.Locale,
) (*Session, error) {
	log := logging.GetLogger("svc.sessionsvc.session")

	repo, err := repoFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("new token repo: %w", err)
	}

	auth, err := NewAuthStore(ctx, repo, authCfg.CookieName, authCfg.Scope(api.Host()))
	if err != nil {
		_ = repo.Close()

		return nil, fmt.Errorf("new auth store: %w", err)
	}

	return &Session{
		API:    api,
		Auth:   auth,
		User:   NewUserResolver(auth, api),
		Locale: NewLocaleStore(catalog, locale),
		repo:   repo,
		log:    log,
	}, nil
}

// Start begins background user resolution bound to ctx.
func (s *Session) Start(ctx context.Context) error {
	return s.User.Start(s.Context(ctx))
}

// Context decorates ctx with a trace id and the active locale.
func (s *Session) Context(ctx context.Context) context.Context {
	return s.Locale.WithContext(context_.EnsureTraceID(ctx))
}

// Users returns a users service client bound to the current token.
func (s *Session) Users() (*apiclient.UsersClient, error) {
	t, _ := s.Auth.Token()

	return s.API.Users(t)
}

// AuthAPI returns an auth service client bound to the current token.
func (s *Session) AuthAPI() (*apiclient.AuthClient, error) {
	t, _ := s.Auth.Token()

	return s.API.Auth(t)
}

// RequireUser resolves the current user, failing with domain.ErrNoUser when
// the session is anonymous.
func (s *Session) RequireUser(ctx context.Context) (*domain.User, error) {
	user, err := s.User.Resolve(s.Context(ctx))
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, domain.ErrNoUser
	}

	return user, nil
}

// Close stops the resolver and closes the token repository.
func (s *Session) Close() error {
	s.User.Close()

	if err := s.repo.Close(); err != nil {
		s.log.Error("close token repo failed", "error", err)

		return fmt.Errorf("close token repo: %w", err)
	}

	return nil
}
