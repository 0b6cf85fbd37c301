package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrHTTP matches every classified HTTP error regardless of its kind.
	ErrHTTP = errors.New("http error")
	// ErrUnauthorized matches HTTP errors of kind ErrorKindUnauthorized (401).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAccessDenied matches HTTP errors of kind ErrorKindAccessDenied (403).
	ErrAccessDenied = errors.New("access denied")
	// ErrNotFound matches HTTP errors of kind ErrorKindNotFound (404).
	ErrNotFound = errors.New("not found")
)

// ErrorKind classifies a failed HTTP response.
type ErrorKind int

const (
	ErrorKindGeneric ErrorKind = iota
	ErrorKindUnauthorized
	ErrorKindAccessDenied
	ErrorKindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindUnauthorized:
		return "unauthorized"
	case ErrorKindAccessDenied:
		return "access denied"
	case ErrorKindNotFound:
		return "not found"
	default:
		return "http error"
	}
}

// ClassifyStatus maps a non-2xx status code to exactly one ErrorKind.
func ClassifyStatus(statusCode int) ErrorKind {
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrorKindUnauthorized
	case http.StatusForbidden:
		return ErrorKindAccessDenied
	case http.StatusNotFound:
		return ErrorKindNotFound
	default:
		return ErrorKindGeneric
	}
}

// HTTPError is a classified error returned by the remote API.
type HTTPError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

var _ error = (*HTTPError)(nil)

// NewHTTPError classifies statusCode and returns the matching HTTPError.
// An unknown status code (<= 0) is reported as 500.
func NewHTTPError(statusCode int, message string) *HTTPError {
	if statusCode <= 0 {
		statusCode = http.StatusInternalServerError
	}

	if message == "" {
		message = http.StatusText(statusCode)
	}

	return &HTTPError{
		Kind:       ClassifyStatus(statusCode),
		StatusCode: statusCode,
		Message:    message,
	}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, e.Message)
}

// Is reports whether target is ErrHTTP or the sentinel of the error's kind.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrHTTP:
		return true
	case ErrUnauthorized:
		return e.Kind == ErrorKindUnauthorized
	case ErrAccessDenied:
		return e.Kind == ErrorKindAccessDenied
	case ErrNotFound:
		return e.Kind == ErrorKindNotFound
	default:
		return false
	}
}

// AsHTTPError unwraps err into an *HTTPError if it carries one.
func AsHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}

	return nil, false
}
