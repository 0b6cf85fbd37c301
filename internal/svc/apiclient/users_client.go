package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mkrupp/homecase-console/internal/domain"
)

// UsersClient talks to the users service.
type UsersClient struct {
	json *JSONClient
}

// NewUsersClient wraps a JSONClient bound to the users service base path.
func NewUsersClient(json *JSONClient) *UsersClient {
	return &UsersClient{json: json}
}

// Me returns the user owning the client's token.
// A null payload or one without an email is ErrMalformedJSON.
func (c *UsersClient) Me(ctx context.Context) (*domain.User, error) {
	var user *domain.User

	if err := c.json.Do(ctx, http.MethodGet, "/me", nil, nil, &user); err != nil {
		return nil, fmt.Errorf("get me: %w", err)
	}

	if user == nil || user.Email == "" {
		return nil, fmt.Errorf("get me: %w: no user in response", ErrMalformedJSON)
	}

	return user, nil
}

// List returns one page of users.
func (c *UsersClient) List(ctx context.Context, page, limit int) (*domain.UserPage, error) {
	var users domain.UserPage

	if err := c.json.Do(ctx, http.MethodGet, "/", pageParams(page, limit), nil, &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	if users.Page == 0 {
		users.Page = page
	}

	if users.Limit == 0 {
		users.Limit = limit
	}

	return &users, nil
}

type loginWithEmailCommand struct {
	Email        string  `json:"email"`
	RedirectPath *string `json:"redirect_path"`
}

// LoginWithEmail asks the users service to mail a magic link to email.
// redirectPath is where the link should land after login; "" and "/" mean the default.
func (c *UsersClient) LoginWithEmail(ctx context.Context, email, redirectPath string) error {
	cmd := loginWithEmailCommand{Email: email}

	if redirectPath != "" && redirectPath != "/" {
		cmd.RedirectPath = &redirectPath
	}

	if err := c.json.Do(ctx, http.MethodPost, "/dispatch/user/user-register-with-email", nil, cmd, nil); err != nil {
		return fmt.Errorf("login with email: %w", err)
	}

	return nil
}

func pageParams(page, limit int) url.Values {
	return url.Values{
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(limit)},
	}
}
