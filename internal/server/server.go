// internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"eventfeeds/internal/database"
	"eventfeeds/internal/feed"
)

const shutdownTimeout = 10 * time.Second

type Config struct {
	// EventSlug is the path segment the feed routes hang off, e.g. "events".
	EventSlug string
	// SiteURL prefixes self links; when empty it is derived from the request.
	SiteURL        string
	ProductionMode bool
}

type Server struct {
	db          *database.DB
	logger      *zap.Logger
	feedService *feed.Service
	config      Config
	registry    *prometheus.Registry
	metrics     *metrics
}

func NewServer(db *database.DB, logger *zap.Logger, feedService *feed.Service, config Config) *Server {
	if config.EventSlug == "" {
		config.EventSlug = "events"
	}

	registry := prometheus.NewRegistry()
	s := &Server{
		db:          db,
		logger:      logger,
		feedService: feedService,
		config:      config,
		registry:    registry,
		metrics:     newMetrics(registry),
	}

	if !s.config.ProductionMode {
		s.logger.Debug("server initialized", zap.String("event_slug", config.EventSlug))
	}
	return s
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	base := "/" + s.config.EventSlug

	mux.HandleFunc("GET "+base+"/feeds/locations/{$}", s.handleLocations)
	mux.HandleFunc("GET "+base+"/feeds/{format}/{$}", s.handleFeed)
	mux.HandleFunc("GET "+base+"/tag/{tag}/feeds/{format}/{$}", s.handleFeed)
	mux.HandleFunc("GET "+base+"/location/{location}/feeds/{format}/{$}", s.handleFeed)
	mux.HandleFunc("GET "+base+"/author/{username}/feeds/{format}/{$}", s.handleFeed)

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", s.handle404)

	return s.requestLogger(gzipMiddleware(mux))
}

func (s *Server) handle404(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("no route", zap.String("path", r.URL.Path))
	http.NotFound(w, r)
}

// Start serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}
	return nil
}
