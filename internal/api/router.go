package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/savegress/basewatch/internal/alerts"
	"github.com/savegress/basewatch/internal/baseline"
	"github.com/savegress/basewatch/internal/config"
	"github.com/savegress/basewatch/internal/storage"
)

// Server represents the API server
type Server struct {
	config   *config.Config
	router   chi.Router
	handlers *Handlers
	logger   *zap.Logger
}

// NewServer creates a new API server. store may be nil, in which case posted
// samples only update the baseline.
func NewServer(cfg *config.Config, b *baseline.Baseline, alertLog *alerts.Log, store storage.SampleStore, logger *zap.Logger) (*Server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		logger: logger,
		handlers: &Handlers{
			baseline:  b,
			alerts:    alertLog,
			storage:   store,
			threshold: cfg.Baseline.Threshold,
			location:  loc,
			logger:    logger,
		},
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handlers.HealthCheck)

	s.router.Route("/api/v1/baseline", func(r chi.Router) {
		r.Get("/", s.handlers.GetBaseline)
		r.Get("/buckets", s.handlers.GetBuckets)
		r.Post("/check", s.handlers.Check)
		r.Get("/samples", s.handlers.GetSamples)
		r.Post("/samples", s.handlers.AddSamples)

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", s.handlers.ListAlerts)
			r.Get("/summary", s.handlers.AlertSummary)
			r.Get("/{id}", s.handlers.GetAlert)
			r.Post("/{id}/acknowledge", s.handlers.AcknowledgeAlert)
			r.Post("/{id}/resolve", s.handlers.ResolveAlert)
		})
	})
}

// Router returns the chi router
func (s *Server) Router() http.Handler {
	return s.router
}

// requestLogger logs one line per request with zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.Info("request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
