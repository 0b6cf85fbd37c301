package domain

// Client is a set of OAuth2 client credentials owned by a user.
type Client struct {
	ID          string   `json:"id"`
	UserID      string   `json:"user_id"`
	Secret      string   `json:"secret"`
	Domain      string   `json:"domain"`
	RedirectURL string   `json:"redirect_url"`
	Scopes      []string `json:"scopes"`
}

// ClientPage is one page of the client credentials listing.
type ClientPage struct {
	Clients []Client `json:"clients"`
	Page    int      `json:"page"`
	Limit   int      `json:"limit"`
	Total   int      `json:"total"`
}

// AuthorizeResponse carries the redirect target returned by the authorize endpoint.
type AuthorizeResponse struct {
	Location string `json:"location"`
}
