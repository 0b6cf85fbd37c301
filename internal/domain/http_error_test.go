package domain_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/mkrupp/homecase-console/internal/domain"
)

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   domain.ErrorKind
	}{
		{status: http.StatusUnauthorized, want: domain.ErrorKindUnauthorized},
		{status: http.StatusForbidden, want: domain.ErrorKindAccessDenied},
		{status: http.StatusNotFound, want: domain.ErrorKindNotFound},
		{status: http.StatusBadRequest, want: domain.ErrorKindGeneric},
		{status: http.StatusConflict, want: domain.ErrorKindGeneric},
		{status: http.StatusInternalServerError, want: domain.ErrorKindGeneric},
		{status: http.StatusBadGateway, want: domain.ErrorKindGeneric},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()

			if got := domain.ClassifyStatus(tt.status); got != tt.want {
				t.Errorf("ClassifyStatus(%d) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestNewHTTPError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		message    string
		wantStatus int
		wantMsg    string
		wantIs     error
		wantNotIs  []error
	}{
		{
			name:       "unauthorized",
			status:     401,
			message:    "Unauthorized",
			wantStatus: 401,
			wantMsg:    "Unauthorized",
			wantIs:     domain.ErrUnauthorized,
			wantNotIs:  []error{domain.ErrAccessDenied, domain.ErrNotFound},
		},
		{
			name:       "access denied",
			status:     403,
			message:    "Forbidden",
			wantStatus: 403,
			wantMsg:    "Forbidden",
			wantIs:     domain.ErrAccessDenied,
			wantNotIs:  []error{domain.ErrUnauthorized, domain.ErrNotFound},
		},
		{
			name:       "not found",
			status:     404,
			message:    "Not Found",
			wantStatus: 404,
			wantMsg:    "Not Found",
			wantIs:     domain.ErrNotFound,
			wantNotIs:  []error{domain.ErrUnauthorized, domain.ErrAccessDenied},
		},
		{
			name:       "generic keeps status",
			status:     422,
			message:    "Unprocessable Entity",
			wantStatus: 422,
			wantMsg:    "Unprocessable Entity",
			wantIs:     domain.ErrHTTP,
			wantNotIs:  []error{domain.ErrUnauthorized, domain.ErrAccessDenied, domain.ErrNotFound},
		},
		{
			name:       "unknown status defaults to 500",
			status:     0,
			message:    "",
			wantStatus: 500,
			wantMsg:    "Internal Server Error",
			wantIs:     domain.ErrHTTP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := domain.NewHTTPError(tt.status, tt.message)

			if err.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", err.StatusCode, tt.wantStatus)
			}
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}

			wrapped := fmt.Errorf("fetch: %w", err)
			if !errors.Is(wrapped, tt.wantIs) {
				t.Errorf("errors.Is(%v, %v) = false, want true", wrapped, tt.wantIs)
			}
			for _, notIs := range tt.wantNotIs {
				if errors.Is(wrapped, notIs) {
					t.Errorf("errors.Is(%v, %v) = true, want false", wrapped, notIs)
				}
			}

			httpErr, ok := domain.AsHTTPError(wrapped)
			if !ok || httpErr != err {
				t.Errorf("AsHTTPError() = %v, %v, want %v, true", httpErr, ok, err)
			}
		})
	}
}
