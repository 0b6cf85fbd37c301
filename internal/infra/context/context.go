// Package context holds the request-scoped values the console threads through
// outgoing API calls and the callback listener.
package context

type contextKey string
