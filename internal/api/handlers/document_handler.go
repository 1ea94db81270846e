package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ramez-101/doc-ingestion/internal/ingestion"
	"github.com/Ramez-101/doc-ingestion/pkg/logger"
)

type DocumentHandler struct {
	pipeline          *ingestion.Pipeline
	defaultCollection string
}

func NewDocumentHandler(pipeline *ingestion.Pipeline, defaultCollection string) *DocumentHandler {
	return &DocumentHandler{
		pipeline:          pipeline,
		defaultCollection: defaultCollection,
	}
}

func (h *DocumentHandler) IngestDocument(c *fiber.Ctx) error {
	var req struct {
		DocumentID   string `json:"document_id"`
		Text         string `json:"text"`
		SourceFormat string `json:"source_format"`
		Collection   string `json:"collection"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Document text is required",
		})
	}

	if req.DocumentID == "" {
		req.DocumentID = uuid.New().String()
	}
	if req.SourceFormat == "" {
		req.SourceFormat = "text"
	}
	if req.Collection == "" {
		req.Collection = h.defaultCollection
	}

	manifest, err := h.pipeline.Ingest(c.Context(), req.DocumentID, req.Text, req.SourceFormat, req.Collection)
	if err != nil {
		logger.Error("Failed to ingest document", zap.Error(err))

		status := fiber.StatusInternalServerError
		if errors.Is(err, ingestion.ErrDocumentTooLarge) || errors.Is(err, ingestion.ErrEmptyDocument) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	response := fiber.Map{"manifest": manifest}
	if manifest.Degraded {
		response["warning"] = "embedding model unavailable, hash fallback was used; consider re-ingesting later"
	}

	return c.JSON(response)
}
