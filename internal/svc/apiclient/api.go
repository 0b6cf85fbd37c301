package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mkrupp/homecase-console/internal/domain"
)

// APIConfig holds the location of the remote API.
type APIConfig struct {
	// BaseURL is the origin every service base path is resolved against
	BaseURL string `env:"BASE_URL" default:"http://localhost:3000"`
	// UsersPath is the base path of the users service
	UsersPath string `env:"USERS_PATH" default:"/users/v1"`
	// AuthPath is the base path of the auth service
	AuthPath string `env:"AUTH_PATH" default:"/auth/v1"`
	// Timeout bounds a single request; zero leaves requests unbounded
	Timeout time.Duration `env:"TIMEOUT" default:"0s"`
}

// API builds token-bound clients for the users and auth services.
// All clients share one instrumented *http.Client.
type API struct {
	cfg        APIConfig
	httpClient *http.Client
}

// NewAPI creates an API for the configured services.
// If httpClient is nil, a client wrapping http.DefaultTransport is used.
// The transport is instrumented with OpenTelemetry client spans.
func NewAPI(cfg APIConfig, httpClient *http.Client) (*API, error) {
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	var transport http.RoundTripper = http.DefaultTransport

	if httpClient != nil && httpClient.Transport != nil {
		transport = httpClient.Transport
	}

	//nolint:exhaustruct
	client := &http.Client{
		Transport: otelhttp.NewTransport(transport),
		Timeout:   cfg.Timeout,
	}

	if httpClient != nil {
		client.Jar = httpClient.Jar
		client.CheckRedirect = httpClient.CheckRedirect

		if cfg.Timeout == 0 {
			client.Timeout = httpClient.Timeout
		}
	}

	return &API{cfg: cfg, httpClient: client}, nil
}

// Host returns the hostname of the API base URL.
func (a *API) Host() string {
	u, err := url.Parse(a.cfg.BaseURL)
	if err != nil {
		return ""
	}

	return u.Hostname()
}

// Base returns the absolute base path of a service path.
func (a *API) Base(servicePath string) string {
	return strings.TrimSuffix(a.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(servicePath, "/")
}

// JSON returns a JSONClient for servicePath bound to token.
func (a *API) JSON(servicePath, token string) (*JSONClient, error) {
	client, err := NewJSONClient(a.Base(servicePath), token, a.httpClient)
	if err != nil {
		return nil, fmt.Errorf("new json client: %w", err)
	}

	return client, nil
}

// Users returns a users service client bound to token.
func (a *API) Users(token string) (*UsersClient, error) {
	client, err := a.JSON(a.cfg.UsersPath, token)
	if err != nil {
		return nil, err
	}

	return &UsersClient{json: client}, nil
}

// Auth returns an auth service client bound to token.
func (a *API) Auth(token string) (*AuthClient, error) {
	client, err := a.JSON(a.cfg.AuthPath, token)
	if err != nil {
		return nil, err
	}

	return &AuthClient{json: client}, nil
}

// Me resolves the user behind token.
func (a *API) Me(ctx context.Context, token string) (*domain.User, error) {
	users, err := a.Users(token)
	if err != nil {
		return nil, err
	}

	return users.Me(ctx)
}
