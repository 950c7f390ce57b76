// Package transcriptionapi exposes the transcription context over HTTP.
package transcriptionapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/Abraxas-365/auralis/pkg/fsx/fsxlocal"
	"github.com/Abraxas-365/auralis/pkg/iam/auth"
	"github.com/Abraxas-365/auralis/pkg/kernel"
	"github.com/Abraxas-365/auralis/pkg/transcription/transcriptionsrv"
)

// TranscriptHandlers serves the /api/v1/transcriptions endpoints.
type TranscriptHandlers struct {
	service *transcriptionsrv.Service
}

// NewTranscriptHandlers creates the handlers.
func NewTranscriptHandlers(service *transcriptionsrv.Service) *TranscriptHandlers {
	return &TranscriptHandlers{service: service}
}

// RegisterRoutes mounts the endpoints. All routes require authentication.
func (h *TranscriptHandlers) RegisterRoutes(app *fiber.App, middleware *auth.TokenMiddleware) {
	grp := app.Group("/api/v1/transcriptions", middleware.Authenticate())
	grp.Post("/", h.handleUpload)
	grp.Get("/", h.handleList)
	grp.Get("/stats", h.handleStats)
	grp.Get("/:id", h.handleGet)
	grp.Get("/:id/text", h.handleText)
	grp.Delete("/:id", h.handleDelete)
}

func (h *TranscriptHandlers) handleUpload(c *fiber.Ctx) error {
	authCtx, err := auth.AuthFromLocals(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("audio")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "audio file is required")
	}

	src, err := file.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not read uploaded file")
	}
	defer src.Close()

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = fsxlocal.DetectContentType(file.Filename)
	}

	t, err := h.service.Upload(c.Context(), authCtx.UserID, transcriptionsrv.UploadRequest{
		Filename:    file.Filename,
		ContentType: contentType,
		Size:        file.Size,
		Language:    c.FormValue("language"),
		Provider:    c.FormValue("provider"),
		Data:        src,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(t)
}

func (h *TranscriptHandlers) handleList(c *fiber.Ctx) error {
	authCtx, err := auth.AuthFromLocals(c)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))

	result, err := h.service.List(c.Context(), authCtx.UserID, kernel.PaginationOptions{
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *TranscriptHandlers) handleStats(c *fiber.Ctx) error {
	authCtx, err := auth.AuthFromLocals(c)
	if err != nil {
		return err
	}

	counts, err := h.service.Stats(c.Context(), authCtx.UserID)
	if err != nil {
		return err
	}

	pool := h.service.QueueStats()
	return c.JSON(fiber.Map{
		"by_status": counts,
		"queue": fiber.Map{
			"length":      pool.QueueLength,
			"processing":  pool.Processing,
			"running":     pool.IsRunning,
			"concurrency": pool.Concurrency,
			"workers":     pool.Workers,
		},
	})
}

func (h *TranscriptHandlers) handleGet(c *fiber.Ctx) error {
	authCtx, err := auth.AuthFromLocals(c)
	if err != nil {
		return err
	}

	t, err := h.service.Get(c.Context(), authCtx.UserID, kernel.NewTranscriptID(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(t)
}

func (h *TranscriptHandlers) handleText(c *fiber.Ctx) error {
	authCtx, err := auth.AuthFromLocals(c)
	if err != nil {
		return err
	}

	text, err := h.service.Text(c.Context(), authCtx.UserID, kernel.NewTranscriptID(c.Params("id")))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(text)
}

func (h *TranscriptHandlers) handleDelete(c *fiber.Ctx) error {
	authCtx, err := auth.AuthFromLocals(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.Context(), authCtx.UserID, kernel.NewTranscriptID(c.Params("id"))); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
