package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/config"
	derrors "git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	handlers "git.home.luguber.info/inful/docpublish/internal/server/handlers"
	smw "git.home.luguber.info/inful/docpublish/internal/server/middleware"
)

const readHeaderTimeout = 10 * time.Second

// Server serves the upload, health, history and metrics endpoints.
type Server struct {
	srv          *http.Server
	ln           net.Listener
	cfg          config.ServerConfig
	opts         Options
	errorAdapter *derrors.HTTPErrorAdapter

	// Handler modules
	uploadHandlers     *handlers.UploadHandlers
	monitoringHandlers *handlers.MonitoringHandlers

	// middleware chain
	mchain func(http.Handler) http.Handler
}

// New constructs a new HTTP server wiring instance.
func New(cfg config.ServerConfig, opts Options) (*Server, error) {
	if opts.Publisher == nil || opts.Gate == nil {
		return nil, errors.New("http server requires a publisher and an upload gate")
	}

	s := &Server{
		cfg:          cfg,
		opts:         opts,
		errorAdapter: derrors.NewHTTPErrorAdapter(slog.Default()),
	}

	s.uploadHandlers = handlers.NewUploadHandlers(opts.Publisher, opts.Gate)
	s.monitoringHandlers = handlers.NewMonitoringHandlers(opts.Staging, opts.Gate, opts.History)

	s.mchain = smw.Chain(slog.Default(), s.errorAdapter)
	return s, nil
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", s.uploadHandlers.HandleUpload)
	mux.HandleFunc("/healthz", s.monitoringHandlers.HandleHealthCheck)
	mux.HandleFunc("/history", s.monitoringHandlers.HandleHistory)
	if s.opts.PrometheusHandler != nil {
		mux.Handle("/metrics", s.opts.PrometheusHandler)
	}
	return s.mchain(mux)
}

// Start binds the configured address and serves in the background. Bind
// failures are returned synchronously.
func (s *Server) Start(ctx context.Context) error {
	if s.srv != nil {
		return errors.New("http server already started")
	}

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("http startup failed: listen %s: %w", s.cfg.Address, err)
	}

	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeoutDuration(),
		WriteTimeout:      s.cfg.WriteTimeoutDuration(),
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.startServerWithListener("upload", s.srv, ln)

	slog.Info("HTTP server started",
		slog.String("address", ln.Addr().String()),
		slog.Bool("metrics", s.opts.PrometheusHandler != nil),
		slog.Bool("history", s.opts.History != nil))
	return nil
}

// Addr reports the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Stop gracefully shuts down the HTTP server, waiting for in-flight uploads.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("upload server shutdown: %w", err)
	}
	slog.Info("HTTP server stopped")
	return nil
}

// startServerWithListener launches srv on a pre-bound listener.
func (s *Server) startServerWithListener(kind string, srv *http.Server, ln net.Listener) {
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error(fmt.Sprintf("%s server error", kind), logfields.Error(err))
		}
	}()
}
