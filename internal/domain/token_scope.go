package domain

import "time"

// DefaultTokenMaxAge is how long a stored token stays valid: 365 days.
const DefaultTokenMaxAge = 365 * 24 * time.Hour

// TokenScope restricts where a stored token applies, like a cookie's domain,
// path and max-age attributes.
type TokenScope struct {
	Domain string
	Path   string
	MaxAge time.Duration
}

// StoredToken is a token entry as kept by a token repository.
type StoredToken struct {
	Name      string
	Value     string
	Domain    string
	Path      string
	ExpiresAt time.Time
}

// Expired reports whether the entry has expired at now.
func (t StoredToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}
