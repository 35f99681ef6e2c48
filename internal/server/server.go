package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/polyglot-connectors/internal/auth"
)

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
	hub    *auth.Verifier
	http   *http.Server
}

// Options tune the middleware stack.
type Options struct {
	// Verifier authenticates hub requests on protected routes. Nil disables
	// hub authentication.
	Verifier *auth.Verifier

	// RequestTimeout cancels request contexts after the given duration.
	// Zero leaves requests unbounded.
	RequestTimeout time.Duration

	// ServiceName labels inbound spans.
	ServiceName string
}

func New(port int, logger *slog.Logger, opts Options) *Server {
	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(RateLimitPassthroughMiddleware)

	if opts.RequestTimeout > 0 {
		r.Use(TimeoutMiddleware(opts.RequestTimeout))
	}
	r.Use(middleware.Recoverer)

	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "hub-connector"
	}
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return &Server{
		Router: r,
		Port:   port,
		logger: logger,
		hub:    opts.Verifier,
	}
}

// Protected registers routes that require a verified hub token.
func (s *Server) Protected(fn func(r chi.Router)) {
	s.Router.Group(func(r chi.Router) {
		if s.hub != nil {
			r.Use(HubAuthMiddleware(s.hub))
		}
		fn(r)
	})
}

func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
