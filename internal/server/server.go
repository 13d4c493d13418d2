package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"

	"insightai/internal/domain"
	"insightai/internal/pipeline"
	"insightai/internal/session"
)

// Config configures the HTTP surface.
type Config struct {
	Port               string
	CorsAllowedOrigins string
	BodyLimitMB        int
}

// Server exposes the upload/chat/delete-session HTTP API.
type Server struct {
	app      *fiber.App
	cfg      Config
	log      *zap.Logger
	sessions *session.Manager
	ingester *pipeline.Ingester
	answerer *pipeline.Answerer
}

// New wires the Fiber app, middleware and routes.
func New(cfg Config, log *zap.Logger, sessions *session.Manager, ingester *pipeline.Ingester, answerer *pipeline.Answerer) *Server {
	if cfg.BodyLimitMB <= 0 {
		cfg.BodyLimitMB = 10
	}
	s := &Server{
		cfg:      cfg,
		log:      log,
		sessions: sessions,
		ingester: ingester,
		answerer: answerer,
	}
	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.BodyLimitMB * 1024 * 1024,
		ErrorHandler: s.errorHandler,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CorsAllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))

	app.Get("/", s.handleRoot)
	app.Post("/upload", s.handleUpload)
	app.Post("/chat", s.handleChat)
	app.Delete("/delete-session", s.handleDeleteSession)

	s.app = app
	return s
}

// App exposes the underlying Fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run blocks serving HTTP on the configured port.
func (s *Server) Run() error {
	s.log.Info("server listening", zap.String("port", s.cfg.Port))
	return s.app.Listen(":" + s.cfg.Port)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// errorHandler maps the domain error taxonomy onto HTTP statuses.
func (s *Server) errorHandler(ctx *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrSessionExpired):
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Session expired. Please upload again.",
		})
	case errors.Is(err, domain.ErrInvalidSource), errors.Is(err, domain.ErrUnsupportedContent):
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return ctx.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}
	s.log.Error("request failed",
		zap.String("path", ctx.Path()),
		zap.Error(err))
	return ctx.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error": "upstream failure, please retry",
	})
}
