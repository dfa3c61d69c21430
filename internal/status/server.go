// Package status serves the console's local inspection API: probes,
// metrics, the current session and the pending-ingest journal.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/pullquest/console/internal/health"
	"github.com/pullquest/console/internal/metrics"
	"github.com/pullquest/console/internal/models"
	"github.com/pullquest/console/internal/requestid"
)

// SessionSource yields the current session.
type SessionSource interface {
	Current() (models.Session, bool)
	Loading() bool
}

// PendingSource lists journaled submissions awaiting ingestion.
type PendingSource interface {
	Pending(ctx context.Context) ([]models.PendingIngest, error)
}

// Server is the status API Fiber application.
type Server struct {
	app      *fiber.App
	addr     string
	sessions SessionSource
	pending  PendingSource
	checker  *health.Checker
	logger   zerolog.Logger
}

// NewServer creates the status server. pending may be nil.
func NewServer(addr string, sessions SessionSource, pending PendingSource, checker *health.Checker, m *metrics.Metrics, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	s := &Server{
		app:      app,
		addr:     addr,
		sessions: sessions,
		pending:  pending,
		checker:  checker,
		logger:   logger.With().Str("component", "status_server").Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes(m)
	return s
}

func (s *Server) setupMiddleware() {
	s.app.Use(recover.New())

	s.app.Use(func(c *fiber.Ctx) error {
		reqID := c.Get(requestid.Header)
		if reqID == "" {
			_, reqID = requestid.New(c.Context())
		}
		c.Set(requestid.Header, reqID)
		c.Locals("request_id", reqID)
		return c.Next()
	})

	s.app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}
		s.logger.Debug().
			Str("method", c.Method()).
			Str("path", path).
			Str("request_id", fmt.Sprintf("%v", c.Locals("request_id"))).
			Msg("status api request")
		return c.Next()
	})
}

func (s *Server) setupRoutes(m *metrics.Metrics) {
	s.app.Get("/healthz", s.liveness)
	s.app.Get("/readyz", s.readiness)

	if m != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	v1 := s.app.Group("/api/v1")
	v1.Get("/session", s.session)
	v1.Get("/pending-ingests", s.pendingIngests)
}

func (s *Server) liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) readiness(c *fiber.Ctx) error {
	if s.checker == nil {
		return c.JSON(fiber.Map{"status": "ready"})
	}
	results := s.checker.RunAll(c.UserContext())
	if !health.Ready(results) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not_ready",
			"checks": results,
		})
	}
	return c.JSON(fiber.Map{"status": "ready", "checks": results})
}

type sessionView struct {
	Authenticated  bool        `json:"authenticated"`
	Loading        bool        `json:"loading"`
	ID             string      `json:"id,omitempty"`
	Role           models.Role `json:"role,omitempty"`
	GitHubUsername string      `json:"githubUsername,omitempty"`
}

// session never exposes tokens.
func (s *Server) session(c *fiber.Ctx) error {
	view := sessionView{Loading: s.sessions.Loading()}
	if sess, ok := s.sessions.Current(); ok {
		view.Authenticated = true
		view.ID = sess.ID
		view.Role = sess.Role
		view.GitHubUsername = sess.GitHubUsername
	}
	return c.JSON(view)
}

type pendingView struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Repo        string    `json:"repo"`
	IssueNumber int       `json:"issueNumber"`
	CreatedAt   time.Time `json:"createdAt"`
}

// pendingIngests lists journal entries without their payloads, which carry
// the user's access token.
func (s *Server) pendingIngests(c *fiber.Ctx) error {
	views := []pendingView{}
	if s.pending != nil {
		items, err := s.pending.Pending(c.UserContext())
		if err != nil {
			return fmt.Errorf("listing pending ingests: %w", err)
		}
		for _, p := range items {
			views = append(views, pendingView{
				ID:          p.ID,
				Owner:       p.Owner,
				Repo:        p.Repo,
				IssueNumber: p.IssueNumber,
				CreatedAt:   p.CreatedAt,
			})
		}
	}
	return c.JSON(fiber.Map{"data": views, "total": len(views)})
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.addr).Msg("status API starting")
	return s.app.Listen(s.addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("status API shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app.
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
			Msg("status api error")

		msg := err.Error()
		if code == fiber.StatusInternalServerError {
			msg = "An internal error occurred"
		}
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
}
