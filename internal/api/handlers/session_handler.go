package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/travel-rag/backend/internal/answer"
)

type SessionHandler struct {
	pipeline *answer.Pipeline
}

func NewSessionHandler(pipeline *answer.Pipeline) *SessionHandler {
	return &SessionHandler{pipeline: pipeline}
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"sessions": h.pipeline.Sessions(),
	})
}

func (h *SessionHandler) GetHistory(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	turns := h.pipeline.History(sessionID)
	history := make([]fiber.Map, len(turns))
	for i, t := range turns {
		history[i] = fiber.Map{
			"role":    t.Role,
			"content": t.Content,
		}
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"history":    history,
	})
}

// ClearSession resets one session's history. Clearing an unknown
// session is not an error, cleared just reports whether it existed.
func (h *SessionHandler) ClearSession(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	existed := h.pipeline.ClearSession(sessionID)

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"cleared":    existed,
	})
}

func (h *SessionHandler) ClearAllSessions(c *fiber.Ctx) error {
	h.pipeline.ClearAllSessions()

	return c.JSON(fiber.Map{
		"cleared": true,
	})
}
