// Package gateway exposes the REST API: start a comparison, poll its
// state, health. The gateway validates and enqueues; all real work
// happens in the orchestrator.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aleister1102/envdrift/internal/config"
	"github.com/aleister1102/envdrift/internal/datastore"
	"github.com/aleister1102/envdrift/internal/orchestrator"
)

// ComparisonRunner starts one comparison workflow. Satisfied by
// orchestrator.Orchestrator.
type ComparisonRunner interface {
	Run(ctx context.Context, req orchestrator.CompareRequest) error
}

// Server is the HTTP gateway.
type Server struct {
	config     config.ServerConfig
	stores     *datastore.Manager
	runner     ComparisonRunner
	logger     zerolog.Logger
	httpServer *http.Server
}

// NewServer wires the gateway routes.
func NewServer(cfg config.ServerConfig, stores *datastore.Manager, runner ComparisonRunner, logger zerolog.Logger) *Server {
	s := &Server{
		config: cfg,
		stores: stores,
		runner: runner,
		logger: logger.With().Str("component", "Gateway").Logger(),
	}

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.Routes(),
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSecs) * time.Second,
	}
	return s
}

// Routes builds the router. Exposed separately so tests can drive the
// handler stack without a listener.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Preflights never get here (the CORS handler terminates them);
	// any other OPTIONS request gets an empty 204 regardless of path.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/compare", s.handleStartCompare)
		r.Get("/compare/{comparisonID}", s.handlePollCompare)
	})

	return r
}

// Start serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Gateway listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(s.config.ShutdownTimeoutSecs)*time.Second)
	defer cancel()

	s.logger.Info().Msg("Gateway shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

// requestLogger emits one structured line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request handled")
	})
}
