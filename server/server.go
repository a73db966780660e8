// Package server exposes the provider catalog over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/casualjim/aviary/catalog"
	"github.com/casualjim/aviary/config"
	"github.com/casualjim/aviary/internal/metrics"
	"github.com/casualjim/aviary/middleware"
	"github.com/casualjim/aviary/pkg/slogx"
	"github.com/casualjim/aviary/registry"
	"github.com/fogfish/opts"
	"golang.org/x/sync/errgroup"
)

// Catalog is the read side of the provider registry used by the handlers.
type Catalog interface {
	All() []catalog.Provider
	ByID(id string) (catalog.Provider, bool)
	Model(providerID, modelID string) (catalog.Model, bool)
	Count() int
	ModelCount() int
	Diagnostics() []registry.Diagnostic
}

var _ Catalog = (*registry.Registry)(nil)

// Server serves the catalog. It is safe for concurrent use.
type Server struct {
	catalog  Catalog
	cfg      config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	pipeline middleware.Pipeline
	handler  http.Handler
}

// WithLogger sets the server logger.
var WithLogger = opts.ForName[Server, *slog.Logger]("logger")

// New builds the server for the given catalog and configuration. The
// configuration is expected to be valid.
func New(cat Catalog, cfg config.Config, options ...opts.Option[Server]) *Server {
	s := &Server{
		catalog: cat,
		cfg:     cfg,
		logger:  slog.Default(),
	}
	if err := opts.Apply(s, options); err != nil {
		panic(err)
	}
	s.logger = slogx.Named(s.logger, "aviary.server", cfg.Logging.ShowTarget)

	if cfg.Metrics.Enabled {
		s.metrics = metrics.New(true)
		s.metrics.SetCatalog(cat.Count(), cat.ModelCount(), len(cat.Diagnostics()))
	}

	s.pipeline = middleware.Compose(cfg.Middleware(),
		middleware.WithLogger(s.logger),
		middleware.OnReject(func(r *http.Request) {
			s.metrics.RateLimitedRequest()
			s.logger.Debug("rate limited", slog.String("client", s.pipeline.Limiter().Key(r)), slogx.RequestID(RequestID(r.Context())))
		}),
	)

	s.handler = middleware.Chain(
		s.pipeline.Then(s.routes()),
		s.requestID,
		s.accessLog,
		s.recoverPanics,
	)
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Stages returns the names of the installed middleware stages.
func (s *Server) Stages() []string {
	return s.pipeline.Stages()
}

// Metrics returns the server metrics, or nil when metrics are disabled.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully, waiting for in-flight requests up to the shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	timeout := s.cfg.Server.Timeout()
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: timeout,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
		IdleTimeout:       2 * timeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("serving provider catalog",
			slog.String("addr", ln.Addr().String()),
			slog.Int("providers", s.catalog.Count()),
			slog.Int("models", s.catalog.ModelCount()),
			slog.Any("middleware", s.pipeline.Stages()),
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")

		grace := s.cfg.Server.ShutdownTimeout()
		if grace <= 0 {
			return srv.Close()
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	})

	if limiter := s.pipeline.Limiter(); limiter != nil {
		g.Go(func() error {
			return limiter.Run(gctx, s.logger)
		})
	}

	return g.Wait()
}
