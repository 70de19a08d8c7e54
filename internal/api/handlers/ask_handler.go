package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/travel-rag/backend/internal/answer"
	"github.com/travel-rag/backend/internal/retrieval"
	"github.com/travel-rag/backend/pkg/logger"
)

type AskHandler struct {
	pipeline *answer.Pipeline
}

func NewAskHandler(pipeline *answer.Pipeline) *AskHandler {
	return &AskHandler{pipeline: pipeline}
}

// HandleAsk answers one question within a session. A missing session id
// starts a fresh session whose id is echoed back so the caller can
// continue the conversation.
func (h *AskHandler) HandleAsk(c *fiber.Ctx) error {
	var req struct {
		Question  string `json:"question"`
		SessionID string `json:"session_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required",
		})
	}

	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	outcome, err := h.pipeline.Answer(c.Context(), req.Question, req.SessionID)
	if err != nil {
		logger.Error("Failed to answer question",
			zap.String("session_id", req.SessionID),
			zap.Error(err),
		)
		if errors.Is(err, retrieval.ErrIndexUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Attraction index is unavailable",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to answer question",
		})
	}

	sources := make([]fiber.Map, len(outcome.SourceRecords))
	for i, rec := range outcome.SourceRecords {
		sources[i] = fiber.Map{
			"place_id":   rec.Metadata.PlaceID,
			"name":       rec.Metadata.Name,
			"city":       rec.Metadata.City,
			"state":      rec.Metadata.State,
			"country":    rec.Metadata.Country,
			"categories": rec.Metadata.Categories,
			"content":    rec.Content,
		}
	}

	return c.JSON(fiber.Map{
		"session_id": req.SessionID,
		"question":   req.Question,
		"answer":     outcome.AnswerText,
		"sources":    sources,
	})
}
