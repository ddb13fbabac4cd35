package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mediafetch/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an http.Handler that knows the patterns it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the mux patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Server couples an [http.Server] with the API it serves.
type Server struct {
	http   *http.Server
	api    *API
	grace  time.Duration
	logger *log.Logger
}

// New builds a server listening on cfg's address with the standard middleware stack.
func New(cfg shared.ServerConfig, api *API, logger *log.Logger) *Server {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "component", "http")

	router := NewBasicRouter()
	router.Use(RequestID(), Recovery(logger), Logging(logger))
	api.Register(router)
	logger.Debug("routes registered", "routes", router.Routes())

	return &Server{
		http: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		api:    api,
		grace:  cfg.ShutdownGrace(),
		logger: logger,
	}
}

// Addr is the configured listen address.
func (s *Server) Addr() string { return s.http.Addr }

// Handler is the fully wrapped router.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Run serves on ln until ctx ends, then drains connections and running downloads.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "grace", s.grace)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()

	// Downloads are stopped first so open event streams receive their terminal frame.
	serviceErr := s.api.service.Shutdown(shutdownCtx)
	httpErr := s.http.Shutdown(shutdownCtx)
	return errors.Join(serviceErr, httpErr)
}

// ListenAndServe listens on the configured address and calls [Server.Run].
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Run(ctx, ln)
}
