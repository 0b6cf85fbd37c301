package domain

import "errors"

var (
	// ErrNoAuthToken is returned when an authentication token is required but not present.
	ErrNoAuthToken = errors.New("no auth token")
	// ErrTokenExpired is returned by token repositories for entries past their expiry.
	ErrTokenExpired = errors.New("auth token expired")
)

// LogoutToken is the sentinel value a redirect carries to request a logout
// instead of a login.
const LogoutToken = "none"

// AuthTokenEntry is an issued access token as listed by the auth service.
type AuthTokenEntry struct {
	ID        string `json:"id"`
	Access    string `json:"access"`
	Refresh   string `json:"refresh,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// AuthTokenPage is one page of a user's auth tokens.
type AuthTokenPage struct {
	AuthTokens []AuthTokenEntry `json:"auth_tokens"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	Total      int              `json:"total"`
}

// ClientTokenPage is one page of tokens issued to an OAuth client.
type ClientTokenPage struct {
	Tokens []AuthTokenEntry `json:"tokens"`
	Page   int              `json:"page"`
	Limit  int              `json:"limit"`
	Total  int              `json:"total"`
}
