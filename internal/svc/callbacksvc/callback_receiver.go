// Package callbacksvc receives magic-link sign-ins on a local HTTP listener.
package callbacksvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/mkrupp/homecase-console/internal/domain"
	context_ "github.com/mkrupp/homecase-console/internal/infra/context"
	"github.com/mkrupp/homecase-console/internal/infra/i18n"
	"github.com/mkrupp/homecase-console/internal/infra/logging"
	http_ "github.com/mkrupp/homecase-console/internal/infra/transport/http"
)

// ErrNoCallback is returned by Wait when the context ends before a sign-in arrives.
var ErrNoCallback = errors.New("no sign-in callback received")

// Config contains configuration parameters for the callback listener.
type Config struct {
	http_.HTTPTransportConfig

	// Path is the route the magic link redirects to
	Path string `env:"PATH" default:"/callback"`

	// TokenParam is the query parameter carrying the token
	TokenParam string `env:"TOKEN_PARAM" default:"authToken"`
}

// TokenSink accepts tokens delivered by a sign-in link.
type TokenSink interface {
	SetToken(ctx context.Context, token string) error
}

// Receiver serves the sign-in callback and hands the delivered token to a TokenSink.
type Receiver struct {
	sink    TokenSink
	catalog *i18n.Catalog
	cfg     Config
	router  *mux.Router
	log     logging.Logger

	done     chan struct{}
	doneOnce sync.Once
	server   *http_.Server
}

// NewReceiver creates a Receiver routing cfg.Path to the callback handler.
func NewReceiver(sink TokenSink, catalog *i18n.Catalog, cfg Config) *Receiver {
	if cfg.Path == "" {
		cfg.Path = "/callback"
	}

	if cfg.TokenParam == "" {
		cfg.TokenParam = "authToken"
	}

	recv := &Receiver{
		sink:    sink,
		catalog: catalog,
		cfg:     cfg,
		router:  mux.NewRouter(),
		log:     logging.GetLogger("svc.callbacksvc.callback_receiver"),
		done:    make(chan struct{}),
	}

	recv.router.HandleFunc(cfg.Path, recv.handleCallback).Methods(http.MethodGet)
	recv.router.HandleFunc("/health", recv.handleHealth).Methods(http.MethodGet)

	return recv
}

// ServeHTTP implements http.Handler with locale resolution applied.
func (recv *Receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	http_.LocalizingMiddleware(recv.router, recv.catalog).ServeHTTP(w, r)
}

// Listen opens the callback listener. Requests are served by Wait.
func (recv *Receiver) Listen(ctx context.Context) error {
	server, err := http_.Listen(ctx, recv, recv.cfg.HTTPTransportConfig,
		"route", recv.cfg.Path,
		"token_param", recv.cfg.TokenParam,
	)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	recv.server = server

	return nil
}

// Close releases the listener. It is safe to call after Wait and when Listen
// was never called.
func (recv *Receiver) Close() error {
	if recv.server == nil {
		return nil
	}

	return recv.server.Close()
}

// CallbackURL returns the absolute URL a sign-in link must redirect to.
// It is only valid after Listen.
func (recv *Receiver) CallbackURL() string {
	if recv.server == nil {
		return ""
	}

	return recv.server.URL() + recv.cfg.Path
}

// Done is closed once a callback has delivered a token.
func (recv *Receiver) Done() <-chan struct{} {
	return recv.done
}

// Wait serves callbacks until one delivers a token or ctx ends.
// The listener is shut down before Wait returns.
func (recv *Receiver) Wait(ctx context.Context) error {
	if recv.server == nil {
		if err := recv.Listen(ctx); err != nil {
			return err
		}
	}

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)

	go func() {
		errCh <- recv.server.Serve(serveCtx)
	}()

	select {
	case <-recv.done:
		cancel()

		return <-errCh

	case err := <-errCh:
		if err != nil {
			return err
		}

		return fmt.Errorf("%w: %w", ErrNoCallback, ctx.Err())
	}
}

func (recv *Receiver) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	messages := recv.messages(ctx)

	token := r.URL.Query().Get(recv.cfg.TokenParam)
	if token == "" {
		recv.log.WarnContext(ctx, "callback without token")
		http.Error(w, messages.Format("callback.missing", nil), http.StatusBadRequest)

		return
	}

	if err := recv.sink.SetToken(ctx, token); err != nil {
		recv.log.ErrorContext(ctx, "store token failed", "error", err)
		http.Error(w, messages.Format("app.error.title", nil), http.StatusInternalServerError)

		return
	}

	id := "callback.success"
	if token == domain.LogoutToken {
		id = "login.logout"
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintln(w, messages.Format(id, nil))

	recv.doneOnce.Do(func() { close(recv.done) })
}

func (recv *Receiver) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_, _ = fmt.Fprintln(w, "OK")
}

func (recv *Receiver) messages(ctx context.Context) i18n.Messages {
	locale, ok := context_.LocaleFromContext(ctx)
	if !ok {
		locale = domain.DefaultLocale
	}

	return recv.catalog.Messages(locale)
}
