package server

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Timeouts for the HTTP listener. Writes get a generous window because
// media uploads and on-demand thumbnail renders can be slow.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 2 * time.Minute
)

// Server is the HTTP listener with graceful shutdown.
type Server struct {
	inner http.Server
}

// New builds a Server for the given address and handler.
func New(addr string, handler http.Handler) *Server {
	return &Server{
		inner: http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
		},
	}
}

// Start serves until Shutdown is called, returning nil on a clean close.
func (s *Server) Start() error {
	if err := s.inner.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests,
// bounded by the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
