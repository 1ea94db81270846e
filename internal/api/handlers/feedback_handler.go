package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ramez-101/doc-ingestion/internal/feedback"
	"github.com/Ramez-101/doc-ingestion/internal/storage/models"
	"github.com/Ramez-101/doc-ingestion/pkg/logger"
)

type FeedbackHandler struct {
	manager *feedback.Manager
}

func NewFeedbackHandler(manager *feedback.Manager) *FeedbackHandler {
	return &FeedbackHandler{manager: manager}
}

func (h *FeedbackHandler) SubmitFeedback(c *fiber.Ctx) error {
	var req struct {
		Question     string `json:"question"`
		Answer       string `json:"answer"`
		FeedbackType string `json:"feedback_type"`
		Comment      string `json:"comment"`
		SessionID    string `json:"session_id"`
		Metadata     struct {
			SimilarityScore float64 `json:"similarity_score"`
			ResponseID      string  `json:"response_id"`
		} `json:"metadata"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Question == "" || req.Answer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question and answer are required",
		})
	}

	meta := models.FeedbackMetadata{
		SimilarityScore: req.Metadata.SimilarityScore,
		ResponseID:      req.Metadata.ResponseID,
	}

	err := h.manager.Submit(req.Question, req.Answer, req.FeedbackType, req.Comment, meta, req.SessionID)
	if err != nil {
		if errors.Is(err, feedback.ErrInvalidFeedbackType) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Error("Failed to record feedback", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record feedback",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Thank you for your feedback!",
	})
}

func (h *FeedbackHandler) GetSummary(c *fiber.Ctx) error {
	return c.JSON(h.manager.Summary())
}

func (h *FeedbackHandler) GetRecent(c *fiber.Ctx) error {
	feedbackType := c.Query("type", feedback.TypeAll)
	limit := c.QueryInt("limit", 10)

	entries, err := h.manager.Recent(feedbackType, limit)
	if err != nil {
		if errors.Is(err, feedback.ErrInvalidFeedbackType) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Error("Failed to load recent feedback", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load feedback",
		})
	}

	return c.JSON(fiber.Map{
		"type":    feedbackType,
		"entries": entries,
	})
}

func (h *FeedbackHandler) ExportFeedback(c *fiber.Ctx) error {
	var req struct {
		Path  string `json:"path"`
		Type  string `json:"type"`
		Limit int    `json:"limit"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Path == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Export path is required",
		})
	}
	if req.Type == "" {
		req.Type = feedback.TypeAll
	}
	if req.Limit <= 0 {
		req.Limit = 1000
	}

	count, err := h.manager.Export(req.Path, req.Type, req.Limit)
	if err != nil {
		if errors.Is(err, feedback.ErrInvalidFeedbackType) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Error("Failed to export feedback", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to export feedback",
		})
	}

	return c.JSON(fiber.Map{
		"path":    req.Path,
		"entries": count,
	})
}
