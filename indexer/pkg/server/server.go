package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/malbeclabs/airdrop/api/handlers"
	apimetrics "github.com/malbeclabs/airdrop/api/metrics"
	"github.com/malbeclabs/airdrop/indexer/pkg/indexer"
)

type Server struct {
	log     *slog.Logger
	cfg     Config
	indexer *indexer.Indexer
	limiter *handlers.RateLimiter
	router  chi.Router
	httpSrv *http.Server
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	indexer, err := indexer.New(cfg.IndexerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexer: %w", err)
	}

	s := &Server{
		log:     cfg.IndexerConfig.Logger,
		cfg:     cfg,
		indexer: indexer,
		limiter: handlers.NewRateLimiter(cfg.IndexerConfig.Clock, cfg.RateLimit, cfg.RateBurst),
	}
	s.router = s.routes()

	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		// Set MaxHeaderBytes to prevent abuse
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(requestLogger(s.log))
	r.Use(apimetrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, "Retry-After"},
		MaxAge:         300,
	}))

	// Probes are not rate limited.
	r.Get("/healthz", s.healthzHandler)
	r.Get("/readyz", s.readyzHandler)
	r.Get("/version", s.versionHandler)

	key := handlers.GlobalKey
	if s.cfg.RateLimitPerIP {
		key = handlers.GetIPFromRequest
	}
	r.Group(func(r chi.Router) {
		r.Use(handlers.RateLimitMiddleware(s.limiter, key))
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		handlers.New(s.log, s.indexer).Mount(r)
	})
	return r
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Indexer returns the indexer the server reads from.
func (s *Server) Indexer() *indexer.Indexer {
	return s.indexer
}

func (s *Server) Run(ctx context.Context) error {
	s.indexer.Start(ctx)
	defer func() {
		s.indexer.Unsubscribe()
		if err := s.indexer.Wait(); err != nil {
			s.log.Warn("server: indexer stopped with failed feeds", "error", err)
		}
	}()

	limiterCtx, cancelLimiter := context.WithCancel(ctx)
	defer cancelLimiter()
	go s.limiter.Run(limiterCtx)

	serveErrCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server: http server error", "error", err)
			serveErrCh <- fmt.Errorf("failed to listen and serve: %w", err)
		}
	}()

	s.log.Info("server: http listening", "address", s.cfg.ListenAddr)

	select {
	case <-ctx.Done():
		s.log.Info("server: stopping", "reason", ctx.Err(), "address", s.cfg.ListenAddr)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		s.log.Info("server: http server shutdown complete")
		return nil
	case err := <-serveErrCh:
		s.log.Error("server: http server error causing shutdown", "error", err, "address", s.cfg.ListenAddr)
		return err
	}
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		s.log.Error("failed to write healthz response", "error", err)
	}
}

func (s *Server) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if !s.indexer.Ready() {
		s.log.Debug("readyz: indexer not ready")
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte("indexer not ready\n")); err != nil {
			s.log.Error("failed to write readyz response", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		s.log.Error("failed to write readyz response", "error", err)
	}
}

func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(s.cfg.VersionInfo); err != nil {
		s.log.Error("failed to write version response", "error", err)
	}
}
