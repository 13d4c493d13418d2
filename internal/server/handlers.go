package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"insightai/internal/loader"
)

var validate = validator.New()

type chatRequest struct {
	Prompt    string `json:"prompt" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
}

func (s *Server) handleRoot(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"message": "InsightAI backend is running"})
}

// handleUpload accepts a multipart form with exactly one of file, url or
// text, ingests it into a fresh collection and registers the session only
// once ingestion succeeded.
func (s *Server) handleUpload(ctx *fiber.Ctx) error {
	src, cleanup, err := s.resolveSource(ctx)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	pending, err := s.sessions.Begin(ctx.Context())
	if err != nil {
		return fmt.Errorf("allocate session: %w", err)
	}
	count, err := s.ingester.Ingest(ctx.Context(), src, pending.Collection)
	if err != nil {
		s.sessions.Abort(ctx.Context(), pending)
		return err
	}
	if err := s.sessions.Activate(pending); err != nil {
		s.sessions.Abort(ctx.Context(), pending)
		return err
	}
	s.log.Info("upload complete",
		zap.String("session_id", pending.ID),
		zap.Int("chunks", count))
	return ctx.JSON(fiber.Map{
		"message":    "Document ingested",
		"session_id": pending.ID,
		"chunks":     count,
		"expires_in": int(s.sessions.IdleTimeout().Seconds()),
	})
}

// resolveSource extracts the single content source from the form. An
// uploaded file is spooled to a temp path keeping its extension so the
// loader can dispatch on it; cleanup removes the spool file.
func (s *Server) resolveSource(ctx *fiber.Ctx) (loader.Source, func(), error) {
	var src loader.Source
	supplied := 0

	fileHeader, err := ctx.FormFile("file")
	if err == nil && fileHeader != nil {
		supplied++
	}
	if v := ctx.FormValue("url"); v != "" {
		src.URL = v
		supplied++
	}
	if v := ctx.FormValue("text"); v != "" {
		src.Text = v
		supplied++
	}
	if supplied != 1 {
		return loader.Source{}, nil, fiber.NewError(fiber.StatusBadRequest,
			"exactly one of file, url or text must be provided")
	}
	if fileHeader == nil {
		return src, nil, nil
	}

	path := filepath.Join(os.TempDir(), uuid.NewString()+filepath.Ext(fileHeader.Filename))
	if err := ctx.SaveFile(fileHeader, path); err != nil {
		return loader.Source{}, nil, fmt.Errorf("save upload: %w", err)
	}
	src.FilePath = path
	return src, func() { os.Remove(path) }, nil
}

// handleChat validates and touches the session, then answers the prompt
// against its collection.
func (s *Server) handleChat(ctx *fiber.Ctx) error {
	var req chatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "prompt and session_id are required")
	}

	collection, err := s.sessions.Validate(req.SessionID)
	if err != nil {
		return err
	}
	s.sessions.Touch(req.SessionID)

	answer, err := s.answerer.Answer(ctx.Context(), req.Prompt, collection)
	if err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{"response": answer})
}

// handleDeleteSession tears a session down; it reports success even when
// the session was already gone.
func (s *Server) handleDeleteSession(ctx *fiber.Ctx) error {
	sessionID := ctx.Query("session_id")
	if sessionID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "session_id query parameter is required")
	}
	if err := s.sessions.DeleteSession(ctx.Context(), sessionID); err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{"message": "Session deleted"})
}
