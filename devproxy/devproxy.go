// Package devproxy serves the development time API proxy. In development
// mode the client calls <dev origin>/api/... and this server forwards those
// requests to the backend unchanged.
package devproxy

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	library "github.com/goliatone/go-library-client"
)

// Config holds the proxy settings
type Config struct {
	Listen  string
	Target  string
	Timeout time.Duration
}

// Server forwards /api/* to Target
type Server struct {
	app    *fiber.App
	config Config
	target string
	logger library.Logger
}

// New builds the proxy app. Target must be an absolute URL.
func New(cfg Config, logger library.Logger) (*Server, error) {
	target, err := url.Parse(strings.TrimRight(cfg.Target, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid proxy target %q: %w", cfg.Target, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid proxy target %q: scheme and host required", cfg.Target)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	if logger == nil {
		logger = library.NopLogger{}
	}

	s := &Server{
		config: cfg,
		target: target.String(),
		logger: logger,
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
			ReadTimeout:           cfg.Timeout,
			WriteTimeout:          cfg.Timeout,
		}),
	}

	s.app.All("/api", s.forward)
	s.app.All("/api/*", s.forward)
	s.app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).SendString("not found")
	})

	return s, nil
}

// App exposes the fiber app, mostly for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving on the configured address
func (s *Server) Listen() error {
	s.logger.Info("Dev proxy listening on %s, forwarding /api to %s", s.config.Listen, s.target)
	return s.app.Listen(s.config.Listen)
}

// Shutdown stops the server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) forward(c *fiber.Ctx) error {
	dest := s.target + c.OriginalURL()
	s.logger.Debug("proxy %s %s -> %s", c.Method(), c.OriginalURL(), dest)

	if err := proxy.DoTimeout(c, dest, s.config.Timeout); err != nil {
		s.logger.Error("proxy %s %s failed: %v", c.Method(), dest, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "Bad Gateway",
			"message": "backend unreachable",
		})
	}

	c.Response().Header.Del(fiber.HeaderServer)
	return nil
}
