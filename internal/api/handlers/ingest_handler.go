package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/travel-rag/backend/internal/ingestion"
	"github.com/travel-rag/backend/pkg/logger"
)

type IngestHandler struct {
	processor *ingestion.Processor
}

func NewIngestHandler(processor *ingestion.Processor) *IngestHandler {
	return &IngestHandler{processor: processor}
}

// HandleIngest runs a full collect-enrich-index pass for one city.
// This is a long call: Wikipedia enrichment is rate limited, so a city
// with hundreds of attractions takes minutes.
func (h *IngestHandler) HandleIngest(c *fiber.Ctx) error {
	var req struct {
		City string `json:"city"`
		BBox struct {
			LonMin float64 `json:"lon_min"`
			LatMin float64 `json:"lat_min"`
			LonMax float64 `json:"lon_max"`
			LatMax float64 `json:"lat_max"`
		} `json:"bbox"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.City == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "City is required",
		})
	}

	run, err := h.processor.IngestCity(c.Context(), req.City, ingestion.BBox{
		LonMin: req.BBox.LonMin,
		LatMin: req.BBox.LatMin,
		LonMax: req.BBox.LonMax,
		LatMax: req.BBox.LatMax,
	})
	if err != nil {
		logger.Error("Ingestion failed", zap.String("city", req.City), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Ingestion failed",
		})
	}

	return c.JSON(fiber.Map{
		"run_id":         run.ID,
		"city":           run.City,
		"fetched":        run.Fetched,
		"with_wikipedia": run.WithWikipedia,
		"enriched":       run.Enriched,
		"missing_pages":  run.MissingPages,
		"fetch_failures": run.FetchFailures,
		"indexed":        run.Indexed,
	})
}
