package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mkrupp/homecase-console/internal/infra/logging"
)

const defaultShutdownTimeout = 5 * time.Second

// HTTPTransportConfig contains configuration parameters for HTTP servers.
type HTTPTransportConfig struct {
	// ServerAddr is the network address to listen on; port 0 picks a free port
	ServerAddr string `env:"SERVER_ADDR" default:"127.0.0.1:8765"`
	// ReadHeaderTimeout is the timeout for reading request headers
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" default:"5s"`

	ReadTimeout  time.Duration `env:"READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" default:"5s"`

	// ShutdownTimeout bounds the graceful shutdown once the context ends
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"5s"`
}

// HTTPTransport defines the interface for HTTP handlers that can serve requests.
type HTTPTransport interface {
	http.Handler
}

// Server is a listening HTTP server with the standard middleware applied.
type Server struct {
	server *http.Server
	sock   net.Listener
	cfg    HTTPTransportConfig
	log    logging.Logger
}

// Listen opens the listening socket and wraps handler with the standard
// middleware for logging, tracing and panic recovery. logAttrs are added to
// every log record of the server.
// Requests are not served until Serve is called.
func Listen(ctx context.Context, handler HTTPTransport, cfg HTTPTransportConfig, logAttrs ...any) (*Server, error) {
	log := logging.GetLogger("infra.transport.http").With(logAttrs...)

	handler = RescueingMiddleware(handler, log)
	handler = LoggingMiddleware(handler, log)
	handler = TracingMiddleware(handler)

	sock, err := net.Listen("tcp", cfg.ServerAddr)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	log = log.With("addr", sock.Addr().String())
	log.DebugContext(ctx, "listening")

	//nolint:exhaustruct
	server := &http.Server{
		Handler:           handler,
		ErrorLog:          logging.GetLogLogger(log, logging.LevelError),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	return &Server{server: server, sock: sock, cfg: cfg, log: log}, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() net.Addr {
	return s.sock.Addr()
}

// URL returns the base URL of the server.
func (s *Server) URL() string {
	return "http://" + s.sock.Addr().String()
}

// Serve handles requests until ctx ends, then shuts the server down gracefully.
// Returns nil after a shutdown triggered by ctx.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- s.server.Serve(s.sock)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serve: %w", err)

	case <-ctx.Done():
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			_ = s.server.Close()

			return fmt.Errorf("shutdown: %w", err)
		}

		<-errCh
		s.log.DebugContext(ctx, "server stopped")

		return nil
	}
}

// Close stops the server immediately and releases the socket, whether or not
// Serve was called.
func (s *Server) Close() error {
	err := s.server.Close()

	if sockErr := s.sock.Close(); sockErr != nil && !errors.Is(sockErr, net.ErrClosed) {
		err = errors.Join(err, sockErr)
	}

	if err != nil {
		return fmt.Errorf("close: %w", err)
	}

	return nil
}
