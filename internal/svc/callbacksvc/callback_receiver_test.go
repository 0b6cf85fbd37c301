package callbacksvc_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mkrupp/homecase-console/internal/infra/i18n"
	http_ "github.com/mkrupp/homecase-console/internal/infra/transport/http"

	. "github.com/mkrupp/homecase-console/internal/svc/callbacksvc"
)

type fakeSink struct {
	m      sync.Mutex
	tokens []string
	err    error
}

func (s *fakeSink) SetToken(_ context.Context, token string) error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.err != nil {
		return s.err
	}

	s.tokens = append(s.tokens, token)

	return nil
}

func (s *fakeSink) Tokens() []string {
	s.m.Lock()
	defer s.m.Unlock()

	return append([]string(nil), s.tokens...)
}

func newTestReceiver(t *testing.T, sink TokenSink) *Receiver {
	t.Helper()

	catalog, err := i18n.Load()
	if err != nil {
		t.Fatal(err)
	}

	return NewReceiver(sink, catalog, Config{
		HTTPTransportConfig: http_.HTTPTransportConfig{ServerAddr: "127.0.0.1:0"},
	})
}

func TestReceiver_HandleCallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		target     string
		header     string
		sinkErr    error
		wantStatus int
		wantBody   string
		wantTokens []string
		wantDone   bool
	}{
		{
			name:       "stores the token",
			target:     "/callback?authToken=T1",
			wantStatus: http.StatusOK,
			wantBody:   "You are signed in",
			wantTokens: []string{"T1"},
			wantDone:   true,
		},
		{
			name:       "answers in the requested language",
			target:     "/callback?authToken=T1",
			header:     "pl-PL,pl;q=0.9",
			wantStatus: http.StatusOK,
			wantBody:   "Zalogowano",
			wantTokens: []string{"T1"},
			wantDone:   true,
		},
		{
			name:       "logout token",
			target:     "/callback?authToken=none",
			wantStatus: http.StatusOK,
			wantBody:   "Signed out",
			wantTokens: []string{"none"},
			wantDone:   true,
		},
		{
			name:       "missing token",
			target:     "/callback",
			wantStatus: http.StatusBadRequest,
			wantBody:   "no token",
		},
		{
			name:       "sink failure",
			target:     "/callback?authToken=T1",
			sinkErr:    errors.New("disk full"),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "unknown route",
			target:     "/elsewhere?authToken=T1",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sink := &fakeSink{err: tt.sinkErr}
			recv := newTestReceiver(t, sink)

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Accept-Language", tt.header)
			}

			rec := httptest.NewRecorder()
			recv.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}

			if got := sink.Tokens(); strings.Join(got, ",") != strings.Join(tt.wantTokens, ",") {
				t.Errorf("tokens = %v, want %v", got, tt.wantTokens)
			}

			select {
			case <-recv.Done():
				if !tt.wantDone {
					t.Error("receiver done without a token")
				}
			default:
				if tt.wantDone {
					t.Error("receiver not done")
				}
			}
		})
	}
}

func TestReceiver_Wait(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sink := &fakeSink{}
	recv := newTestReceiver(t, sink)

	if err := recv.Listen(ctx); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	if !strings.HasSuffix(recv.CallbackURL(), "/callback") {
		t.Errorf("CallbackURL() = %q", recv.CallbackURL())
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- recv.Wait(ctx) }()

	resp, err := http.Get(recv.CallbackURL() + "?authToken=T1")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if err := <-waitErr; err != nil {
		t.Errorf("Wait() error = %v", err)
	}

	if got := sink.Tokens(); len(got) != 1 || got[0] != "T1" {
		t.Errorf("tokens = %v", got)
	}

	if err := recv.Close(); err != nil {
		t.Errorf("Close() after Wait() error = %v", err)
	}
}

func TestReceiver_CloseReleasesListener(t *testing.T) {
	t.Parallel()

	recv := newTestReceiver(t, &fakeSink{})

	if err := recv.Close(); err != nil {
		t.Errorf("Close() before Listen() error = %v", err)
	}

	if err := recv.Listen(context.Background()); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	addr := strings.TrimSuffix(strings.TrimPrefix(recv.CallbackURL(), "http://"), "/callback")

	if err := recv.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if conn, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		conn.Close()
		t.Errorf("%s still accepts connections after Close()", addr)
	}
}

func TestReceiver_WaitCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	recv := newTestReceiver(t, &fakeSink{})

	go cancel()

	if err := recv.Wait(ctx); !errors.Is(err, ErrNoCallback) || !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v", err)
	}
}
