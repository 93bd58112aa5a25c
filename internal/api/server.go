// Package api provides the local HTTP API for the pasteV daemon.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Mopip77/pasteV/internal/ratelimit"
	"github.com/Mopip77/pasteV/internal/service"
	"github.com/Mopip77/pasteV/internal/sse"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// InFlightReporter reports how many enrichment chains are running.
type InFlightReporter interface {
	InFlight() int
}

// Services groups the services used by the API server.
type Services struct {
	History  *service.HistoryService
	Settings *service.SettingsService
	Enrich   InFlightReporter // optional
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services   *Services
	sseHandler *sse.Handler
	sseManager *sse.Manager
	metrics    http.Handler
	router     *chi.Mux
	api        huma.API
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
// metrics may be nil, in which case /metrics is not served.
func NewServer(services *Services, sseManager *sse.Manager, metrics http.Handler, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		services:   services,
		sseManager: sseManager,
		metrics:    metrics,
		router:     router,
		logger:     logger,
	}
	if sseManager != nil {
		s.sseHandler = sse.NewHandler(sseManager, logger)
	}

	// Middleware must be registered before humachi adds its own routes.
	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("pasteV API", Version)
	humaConfig.Info.Description = "Local clipboard history daemon"
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for tests.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger(s.logger))

	// The renderer is served from a local dev server or a file:// origin.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*", "app://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.router.Use(writeLimitMiddleware(ratelimit.New(writeRatePerSecond, writeBurst), s.logger))
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerClipRoutes()
	s.registerTagRoutes()
	s.registerRetentionRoutes()
	s.registerSettingsRoutes()

	// Streaming and scrape endpoints bypass huma.
	if s.sseHandler != nil {
		s.router.Get("/api/v1/events", s.sseHandler.ServeHTTP)
	}
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics)
	}
}
