package site

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cuemby/sheetsite/pkg/content"
	"github.com/cuemby/sheetsite/pkg/health"
	"github.com/cuemby/sheetsite/pkg/log"
	"github.com/cuemby/sheetsite/pkg/metrics"
	"github.com/cuemby/sheetsite/pkg/render"
	"github.com/cuemby/sheetsite/pkg/signals"
	"github.com/cuemby/sheetsite/pkg/types"
)

// Store is the write side of the storage gateway used by the site
type Store interface {
	InsertLead(ctx context.Context, lead types.Lead) error
	UpdatePageLayout(ctx context.Context, m types.PageMutation) error
}

// Options configures a Server
type Options struct {
	Listen     string
	AdminToken string
	// LeadsPerMinute is the per-client lead submission limit
	LeadsPerMinute int
	// MockFallback makes the store non-critical for readiness
	MockFallback bool
	// ShutdownTimeout bounds graceful shutdown including the final signal flush
	ShutdownTimeout time.Duration
	// LeadTimeout bounds one background lead write
	LeadTimeout time.Duration
	// Probes run alongside the server until shutdown
	Probes []*health.Monitor
}

// Server serves the marketing site and its small JSON API
type Server struct {
	opts     Options
	resolver *content.Resolver
	store    Store
	agent    *signals.Agent
	registry *render.Registry
	limiter  *clientLimiter
	router   chi.Router
	logger   zerolog.Logger

	background sync.WaitGroup
}

// New creates a server. A nil registry uses the built-in renderers.
func New(opts Options, resolver *content.Resolver, store Store, agent *signals.Agent, registry *render.Registry) *Server {
	if registry == nil {
		registry = render.DefaultRegistry()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}
	if opts.LeadTimeout <= 0 {
		opts.LeadTimeout = time.Minute
	}
	s := &Server{
		opts:     opts,
		resolver: resolver,
		store:    store,
		agent:    agent,
		registry: registry,
		limiter:  newClientLimiter(opts.LeadsPerMinute),
		logger:   log.WithComponent("site"),
	}
	s.router = s.routes()

	if opts.MockFallback {
		metrics.SetCritical("site")
	} else {
		metrics.SetCritical("site", "store")
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/health", metrics.HealthHandler())
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/leads", s.handleLead)
		r.Post("/signals", s.handleSignals)
		r.Get("/pages/suggestions", s.handleSuggestions)
		r.Post("/pages/mutations", s.handleMutation)
	})

	r.Get("/*", s.handlePage)
	return r
}

// Handler returns the HTTP handler for embedding in other servers
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully and
// flushes the signal agent
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.opts.Listen,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	metrics.RegisterComponent("site", true, "serving")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info().Str("addr", s.opts.Listen).Msg("Site listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return s.limiter.runCleanup(ctx, time.Hour, s.logger)
	})
	for _, probe := range s.opts.Probes {
		probe := probe
		g.Go(func() error {
			return probe.Run(ctx)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		metrics.UpdateComponent("site", false, "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		s.waitBackground(shutdownCtx)
		if s.agent != nil {
			if ferr := s.agent.Close(shutdownCtx); ferr != nil {
				s.logger.Error().Err(ferr).Msg("Final signal flush failed")
			}
		}
		s.logger.Info().Msg("Site stopped")
		return err
	})
	return g.Wait()
}

// waitBackground waits for fire-and-forget writes until ctx is done
func (s *Server) waitBackground(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("Background writes still running at shutdown")
	}
}
