package validation

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var (
	sqlInjectionPattern = regexp.MustCompile(`(?i)(union|select|insert|update|delete|drop|create|alter|exec|script|javascript|onerror|onload)`)
	xssPattern          = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)
)

type Config struct {
	MaxQuestionLength int
	MaxDocumentSize   int
	MaxCommentLength  int
	Logger            *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQuestionLength == 0 {
		cfg.MaxQuestionLength = 5000
	}
	if cfg.MaxDocumentSize == 0 {
		cfg.MaxDocumentSize = 100 * 1024 * 1024
	}
	if cfg.MaxCommentLength == 0 {
		cfg.MaxCommentLength = 2000
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != "POST" {
			return c.Next()
		}

		path := c.Path()

		switch {
		case strings.HasSuffix(path, "/ask"):
			return validateAsk(c, cfg)
		case strings.HasSuffix(path, "/documents"):
			return validateDocument(c, cfg)
		case strings.HasSuffix(path, "/feedback"):
			return validateFeedback(c, cfg)
		}

		return c.Next()
	}
}

func validateAsk(c *fiber.Ctx, cfg Config) error {
	var req map[string]interface{}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid JSON format",
		})
	}

	question, ok := req["question"].(string)
	if !ok || question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required and must be a string",
		})
	}

	if len(question) > cfg.MaxQuestionLength {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question exceeds maximum length",
		})
	}

	if suspicious(question) {
		cfg.Logger.Warn("Suspicious question content rejected",
			zap.String("ip", c.IP()),
		)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid question content",
		})
	}

	return c.Next()
}

func validateDocument(c *fiber.Ctx, cfg Config) error {
	var req map[string]interface{}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid JSON format",
		})
	}

	text, ok := req["text"].(string)
	if !ok || text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Document text is required and must be a string",
		})
	}

	if len(text) > cfg.MaxDocumentSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "Document text exceeds maximum size",
		})
	}

	if format, ok := req["source_format"].(string); ok && format != "" {
		switch format {
		case "text", "html", "markdown", "ocr":
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unsupported source format",
			})
		}
	}

	return c.Next()
}

func validateFeedback(c *fiber.Ctx, cfg Config) error {
	var req map[string]interface{}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid JSON format",
		})
	}

	if comment, ok := req["comment"].(string); ok {
		if len(comment) > cfg.MaxCommentLength {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Comment exceeds maximum length",
			})
		}
		if suspicious(comment) {
			cfg.Logger.Warn("Suspicious feedback comment rejected",
				zap.String("ip", c.IP()),
			)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid comment content",
			})
		}
	}

	return c.Next()
}

func suspicious(input string) bool {
	return sqlInjectionPattern.MatchString(input) || xssPattern.MatchString(input)
}
