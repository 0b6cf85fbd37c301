package domain

import "errors"

// ErrNoUser is returned when an operation requires a resolved user but none is present.
var ErrNoUser = errors.New("no user")

// User represents the account behind a bearer token.
type User struct {
	ID    string `json:"id,omitempty"` // Identifier assigned by the users service
	Email string `json:"email"`        // Email address the magic link was sent to
}

// UserPage is one page of the users listing.
type UserPage struct {
	Users []User `json:"users"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Total int    `json:"total"`
}

// Count returns the number of users on this page.
func (p UserPage) Count() int {
	return len(p.Users)
}

// MaxPage returns the number of pages needed to list Total users limit at a time.
func (p UserPage) MaxPage(limit int) int {
	return MaxPage(p.Total, limit)
}

// MaxPage computes ceil(total/limit). A non-positive limit yields 0.
func MaxPage(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}

	return (total + limit - 1) / limit
}
