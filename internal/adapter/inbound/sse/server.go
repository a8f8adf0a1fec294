package sse

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Relay-Gate/Relaygate/internal/domain/auth"
	"github.com/Relay-Gate/Relaygate/internal/domain/session"
	"github.com/Relay-Gate/Relaygate/internal/domain/transport"
)

// Server hosts the SSE duplex endpoint pair: a GET stream path that
// establishes sessions and a POST message path that carries the inbound
// direction. Each accepted stream becomes one transport, handed to the
// connection handler for the upper layer to wire up.
type Server struct {
	addr           string
	ssePath        string
	postPath       string
	allowedOrigins []string
	certFile       string
	keyFile        string
	variant        Variant
	gate           *auth.Gate
	registry       *session.Registry
	connHandler    func(transport.Transport)
	logger         *slog.Logger
	metrics        *Metrics
	server         *http.Server
}

// Option is a functional option for configuring Server.
type Option func(*Server)

// WithAddr sets the listen address.
// Default is "127.0.0.1:8080" (localhost only).
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithPaths sets the stream and message endpoint paths.
// Defaults are "/sse" and "/message".
func WithPaths(ssePath, postPath string) Option {
	return func(s *Server) {
		s.ssePath = ssePath
		s.postPath = postPath
	}
}

// WithTLS enables TLS with the provided certificate and key files.
// If not set, the server runs without TLS (plain HTTP).
func WithTLS(certFile, keyFile string) Option {
	return func(s *Server) {
		s.certFile = certFile
		s.keyFile = keyFile
	}
}

// WithAllowedOrigins sets the allowed origins for DNS rebinding protection.
// If empty, all requests with an Origin header are blocked (local-only mode).
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithVariant selects the SSE transport implementation.
func WithVariant(v Variant) Option {
	return func(s *Server) {
		s.variant = v
	}
}

// WithClientGate requires client credentials on the message endpoint.
// When nil (the default) the endpoint is open.
func WithClientGate(gate *auth.Gate) Option {
	return func(s *Server) {
		s.gate = gate
	}
}

// WithConnectionHandler sets the callback invoked for every new transport,
// before the transport starts. The upper layer registers its message and
// close callbacks here.
func WithConnectionHandler(fn func(transport.Transport)) Option {
	return func(s *Server) {
		s.connHandler = fn
	}
}

// WithLogger sets the logger for the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates an SSE transport server.
func NewServer(opts ...Option) *Server {
	s := &Server{
		addr:           "127.0.0.1:8080",
		ssePath:        "/sse",
		postPath:       "/message",
		allowedOrigins: []string{},
		registry:       session.NewRegistry(),
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Registry exposes the session registry so hosting code can address
// sessions directly.
func (s *Server) Registry() *session.Registry { return s.registry }

// buildHandler assembles the middleware chain and route table. Metrics are
// created here, against a fresh Prometheus registry exposed on /metrics.
func (s *Server) buildHandler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = NewMetrics(reg)

	// Middleware order (outermost first):
	// 1. MetricsMiddleware - record duration and status for the full request
	// 2. RequestID - extract/generate request ID and enrich logger
	// 3. OriginAllowlist - DNS rebinding protection
	// 4. RequireClientAuth - message endpoint only, when a gate is set
	streamHandler := http.Handler(http.HandlerFunc(s.handleStream))
	postHandler := http.Handler(http.HandlerFunc(s.handlePost))
	if s.gate != nil {
		postHandler = RequireClientAuth(s.gate, s.metrics)(postHandler)
	}
	streamHandler = OriginAllowlist(s.allowedOrigins)(streamHandler)
	postHandler = OriginAllowlist(s.allowedOrigins)(postHandler)
	streamHandler = RequestIDMiddleware(s.logger)(streamHandler)
	postHandler = RequestIDMiddleware(s.logger)(postHandler)
	streamHandler = MetricsMiddleware(s.metrics)(streamHandler)
	postHandler = MetricsMiddleware(s.metrics)(postHandler)

	mux := http.NewServeMux()
	mux.Handle(s.ssePath, streamHandler)
	mux.Handle(s.postPath, postHandler)
	mux.Handle("/healthz", healthHandler())
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		Registry: reg,
	}))

	return mux
}

// Start begins accepting connections and blocks until the context is
// cancelled or the server fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.buildHandler(),
	}

	if s.certFile != "" && s.keyFile != "" {
		s.server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	errCh := make(chan error, 1)

	go func() {
		var err error
		if s.certFile != "" && s.keyFile != "" {
			s.logger.Info("starting HTTPS server", "addr", s.addr)
			err = s.server.ListenAndServeTLS(s.certFile, s.keyFile)
		} else {
			s.logger.Info("starting HTTP server", "addr", s.addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down server")
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown performs graceful shutdown of the server.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close live sessions first so their stream handlers return and the
	// connections drain.
	s.registry.CloseAll()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return err
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	return s.shutdown()
}
