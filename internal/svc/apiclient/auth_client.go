package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mkrupp/homecase-console/internal/domain"
)

var (
	// ErrNoLocation is returned when the authorize endpoint answers without a redirect target.
	ErrNoLocation = errors.New("authorize response has no location")
	// ErrMissingClientField is returned when a client is created without domain, redirect URL or scopes.
	ErrMissingClientField = errors.New("missing client field")
)

// AuthClient talks to the auth service: auth tokens, OAuth clients and authorization.
type AuthClient struct {
	json *JSONClient
}

// NewAuthClient wraps a JSONClient bound to the auth service base path.
func NewAuthClient(json *JSONClient) *AuthClient {
	return &AuthClient{json: json}
}

type removeCommand struct {
	ID string `json:"id"`
}

// ListUserTokens returns one page of auth tokens issued to userID.
func (c *AuthClient) ListUserTokens(ctx context.Context, userID string, page, limit int) (*domain.AuthTokenPage, error) {
	var tokens domain.AuthTokenPage

	path := "/users/" + url.PathEscape(userID) + "/tokens"
	if err := c.json.Do(ctx, http.MethodGet, path, pageParams(page, limit), nil, &tokens); err != nil {
		return nil, fmt.Errorf("list user tokens: %w", err)
	}

	return &tokens, nil
}

// RemoveAuthToken revokes the auth token with the given id.
func (c *AuthClient) RemoveAuthToken(ctx context.Context, id string) error {
	if err := c.json.Do(ctx, http.MethodPost, "/dispatch/token/remove-auth-token", nil, removeCommand{ID: id}, nil); err != nil {
		return fmt.Errorf("remove auth token: %w", err)
	}

	return nil
}

// ListClients returns one page of the caller's OAuth clients.
func (c *AuthClient) ListClients(ctx context.Context, page, limit int) (*domain.ClientPage, error) {
	var clients domain.ClientPage

	if err := c.json.Do(ctx, http.MethodGet, "/clients", pageParams(page, limit), nil, &clients); err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	return &clients, nil
}

// GetClient returns the OAuth client with the given id.
func (c *AuthClient) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	var client domain.Client

	if err := c.json.Do(ctx, http.MethodGet, "/clients/"+url.PathEscape(id), nil, nil, &client); err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}

	return &client, nil
}

// ListClientTokens returns one page of tokens issued to the OAuth client clientID.
func (c *AuthClient) ListClientTokens(ctx context.Context, clientID string, page, limit int) (*domain.ClientTokenPage, error) {
	var tokens domain.ClientTokenPage

	path := "/clients/" + url.PathEscape(clientID) + "/tokens"
	if err := c.json.Do(ctx, http.MethodGet, path, pageParams(page, limit), nil, &tokens); err != nil {
		return nil, fmt.Errorf("list client tokens: %w", err)
	}

	return &tokens, nil
}

type createClientCommand struct {
	Domain      string   `json:"domain"`
	RedirectURL string   `json:"redirect_url"`
	Scopes      []string `json:"scopes"`
}

// CreateClient registers new OAuth client credentials.
func (c *AuthClient) CreateClient(ctx context.Context, clientDomain, redirectURL string, scopes []string) error {
	switch {
	case clientDomain == "":
		return fmt.Errorf("%w: domain", ErrMissingClientField)
	case redirectURL == "":
		return fmt.Errorf("%w: redirect url", ErrMissingClientField)
	case len(scopes) == 0:
		return fmt.Errorf("%w: scopes", ErrMissingClientField)
	}

	cmd := createClientCommand{Domain: clientDomain, RedirectURL: redirectURL, Scopes: scopes}

	if err := c.json.Do(ctx, http.MethodPost, "/dispatch/client/client-create-credentials", nil, cmd, nil); err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	return nil
}

// RemoveClient deletes the OAuth client with the given id.
func (c *AuthClient) RemoveClient(ctx context.Context, id string) error {
	if err := c.json.Do(ctx, http.MethodPost, "/dispatch/client/client-remove-credentials", nil, removeCommand{ID: id}, nil); err != nil {
		return fmt.Errorf("remove client: %w", err)
	}

	return nil
}

// Authorize grants the OAuth request described by query (client_id, scope,
// redirect_uri, state, ...) and returns the location to redirect to.
func (c *AuthClient) Authorize(ctx context.Context, query url.Values) (string, error) {
	var resp domain.AuthorizeResponse

	if err := c.json.Do(ctx, http.MethodPost, "/authorize", query, nil, &resp); err != nil {
		return "", fmt.Errorf("authorize: %w", err)
	}

	if resp.Location == "" {
		return "", ErrNoLocation
	}

	return resp.Location, nil
}
