// Package mgmt exposes the tracker over a small management REST API. The
// host front end drives every tracker operation through it and polls the
// status snapshot for results.
package mgmt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/kyokaz/trackd/internal/health"
	"github.com/kyokaz/trackd/internal/metrics"
	"github.com/kyokaz/trackd/internal/requestid"
	"github.com/kyokaz/trackd/internal/store"
	"github.com/kyokaz/trackd/internal/tracker"
)

// ServerConfig holds configuration for the management API server.
type ServerConfig struct {
	ListenAddr string
	APIKey     string
}

// Server is the management API Fiber application.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	logger   zerolog.Logger
	config   ServerConfig
}

// NewServer creates and configures a new management API server.
func NewServer(
	cfg ServerConfig,
	tr *tracker.Tracker,
	checker *health.Checker,
	db *store.Store,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	s := &Server{
		app:      app,
		handlers: NewHandlers(tr, db, logger),
		logger:   logger.With().Str("component", "mgmt_server").Logger(),
		config:   cfg,
	}

	s.setupMiddleware(cfg, m, logger)
	s.setupRoutes(checker, m)
	return s
}

func (s *Server) setupMiddleware(cfg ServerConfig, m *metrics.Metrics, logger zerolog.Logger) {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(func(c *fiber.Ctx) error {
		_, reqID := requestid.Ensure(c.Context(), c.Get("X-Request-ID"))
		c.Set("X-Request-ID", reqID)
		c.Locals("request_id", reqID)
		return c.Next()
	})

	s.app.Use(NewAuthMiddleware(cfg.APIKey, logger))

	if m != nil {
		s.app.Use(func(c *fiber.Ctx) error {
			if isProbePath(c.Path()) {
				return c.Next()
			}
			start := time.Now()
			err := c.Next()
			m.ObserveDuration(c.Route().Path, time.Since(start).Seconds())
			return err
		})
	}

	s.app.Use(func(c *fiber.Ctx) error {
		if isProbePath(c.Path()) {
			return c.Next()
		}
		logger.Info().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("request_id", fmt.Sprintf("%v", c.Locals("request_id"))).
			Msg("mgmt api request")
		return c.Next()
	})
}

func (s *Server) setupRoutes(checker *health.Checker, m *metrics.Metrics) {
	h := s.handlers

	// Probe endpoints, exempt from auth.
	s.app.Get("/healthz", adaptor.HTTPHandler(health.LivenessHandler()))
	s.app.Get("/readyz", adaptor.HTTPHandler(checker.ReadinessHandler()))
	if m != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	v1 := s.app.Group("/api/v1")

	v1.Get("/status", h.Status)

	v1.Post("/timer/start", h.StartTimer)
	v1.Post("/timer/stop", h.StopTimer)
	v1.Post("/timer/check", h.CheckTimer)
	v1.Post("/timer/confirm-reset", h.ConfirmReset)

	v1.Get("/clients", h.ListClients)
	v1.Post("/clients", h.CreateClient)
	v1.Post("/clients/refresh", h.RefreshClients)

	v1.Get("/projects", h.ListProjects)
	v1.Post("/projects", h.CreateProject)
	v1.Post("/projects/refresh", h.RefreshProjects)
	v1.Get("/projects/:id/summary", h.ProjectSummary)
	v1.Get("/projects/:id/totals", h.ProjectTotals)

	v1.Put("/selection", h.UpdateSelection)

	v1.Get("/sessions", h.ListSessions)

	v1.Get("/documents/:id/description", h.GetDescription)
	v1.Put("/documents/:id/description", h.PutDescription)

	v1.Post("/credentials/verify", h.VerifyCredentials)
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8390"
	}
	s.logger.Info().Str("addr", addr).Msg("management API server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("management API server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func errorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("unhandled error")

		detail := err.Error()
		if code == fiber.StatusInternalServerError {
			detail = "An internal error occurred"
		}

		return c.Status(code).JSON(ProblemDetail{
			Type:     "internal_error",
			Title:    "Internal Server Error",
			Status:   code,
			Detail:   detail,
			Instance: c.Path(),
		})
	}
}
