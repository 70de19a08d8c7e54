package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/travel-rag/backend/internal/metrics"
	"github.com/travel-rag/backend/internal/storage/models"
	"github.com/travel-rag/backend/internal/storage/sqlite"
	"github.com/travel-rag/backend/internal/vector/milvus"
	"github.com/travel-rag/backend/pkg/logger"
)

// embedBatchSize caps how many documents go into one embedding request.
const embedBatchSize = 100

// Embedder turns document texts into vectors for indexing.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Processor runs the collect, enrich, build and index stages for one
// city and records the run in SQLite.
type Processor struct {
	geoapify  *GeoapifyClient
	wikipedia *WikipediaClient
	embedder  Embedder
	index     *milvus.Client
	store     *sqlite.Client
	dataDir   string
}

func NewProcessor(geoapify *GeoapifyClient, wikipedia *WikipediaClient, embedder Embedder, index *milvus.Client, store *sqlite.Client, dataDir string) *Processor {
	return &Processor{
		geoapify:  geoapify,
		wikipedia: wikipedia,
		embedder:  embedder,
		index:     index,
		store:     store,
		dataDir:   dataDir,
	}
}

// DocumentFile is one entry of the per-city documents artifact written
// to disk after a run. It carries the exact text that was embedded so a
// run can be inspected or re-indexed without refetching.
type DocumentFile struct {
	PlaceID  string            `json:"place_id"`
	Name     string            `json:"name"`
	Document string            `json:"document"`
	Metadata map[string]string `json:"metadata"`
}

// IngestCity runs the full pipeline for one city. Attractions without a
// Wikipedia reference are dropped before enrichment, duplicates are
// dropped by place id, and every surviving attraction is upserted,
// embedded and indexed. Returns the recorded run.
func (p *Processor) IngestCity(ctx context.Context, city string, bbox BBox) (*models.IngestionRun, error) {
	run := &models.IngestionRun{
		ID:        uuid.New().String(),
		City:      city,
		StartedAt: time.Now(),
	}

	features, err := p.geoapify.FetchAttractions(ctx, city, bbox)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attractions for %s: %w", city, err)
	}
	run.Fetched = len(features)

	features = FilterWithWikipedia(features)
	features = DedupeByPlaceID(features)
	run.WithWikipedia = len(features)

	logger.Info("Starting enrichment",
		zap.String("city", city),
		zap.Int("candidates", len(features)),
	)

	attractions := make([]models.Attraction, 0, len(features))
	for _, f := range features {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		a := ExtractAttraction(f)

		description, err := p.wikipedia.FetchDescription(ctx, a.WikiCode)
		switch {
		case err == nil:
			a.Description = description
			a.HasDescription = true
			a.Summary = Summarize(description)
			run.Enriched++
		case errors.Is(err, ErrPageMissing), errors.Is(err, ErrBadWikiCode):
			run.MissingPages++
		default:
			logger.Warn("Wikipedia fetch failed",
				zap.String("place_id", a.PlaceID),
				zap.String("wiki_code", a.WikiCode),
				zap.Error(err),
			)
			run.FetchFailures++
		}

		a.Document = BuildDocument(&a)
		attractions = append(attractions, a)
	}

	stats := ValidateQuality(attractions)
	stats.MissingPages = run.MissingPages
	stats.FetchFailures = run.FetchFailures
	logger.Info("Enrichment finished",
		zap.String("city", city),
		zap.Int("total", stats.Total),
		zap.Int("with_description", stats.WithDescription),
		zap.Int("missing_pages", stats.MissingPages),
		zap.Int("fetch_failures", stats.FetchFailures),
		zap.String("completeness", stats.CompletenessRate()),
	)

	if err := p.writeDocuments(city, attractions); err != nil {
		logger.Warn("Failed to write documents artifact", zap.Error(err))
	}

	for i := range attractions {
		if err := p.store.UpsertAttraction(&attractions[i]); err != nil {
			return nil, fmt.Errorf("failed to store attraction %s: %w", attractions[i].PlaceID, err)
		}
	}

	indexed, err := p.indexAttractions(ctx, attractions)
	if err != nil {
		return nil, err
	}
	run.Indexed = indexed
	metrics.AttractionsIngested.Add(float64(indexed))

	run.FinishedAt = time.Now()
	if err := p.store.InsertIngestionRun(run); err != nil {
		return nil, fmt.Errorf("failed to record ingestion run: %w", err)
	}

	logger.Info("Ingestion complete",
		zap.String("city", city),
		zap.Int("fetched", run.Fetched),
		zap.Int("indexed", run.Indexed),
		zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)),
	)

	return run, nil
}

func (p *Processor) indexAttractions(ctx context.Context, attractions []models.Attraction) (int, error) {
	indexed := 0

	for start := 0; start < len(attractions); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(attractions) {
			end = len(attractions)
		}
		batch := attractions[start:end]

		texts := make([]string, len(batch))
		for i, a := range batch {
			texts[i] = a.Document
		}

		embeddings, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return indexed, fmt.Errorf("failed to embed batch at %d: %w", start, err)
		}

		entries := make([]milvus.Entry, len(batch))
		for i, a := range batch {
			entries[i] = milvus.Entry{
				PlaceID:        a.PlaceID,
				Embedding:      embeddings[i],
				Document:       a.Document,
				Name:           a.Name,
				City:           a.City,
				State:          a.State,
				Country:        a.Country,
				Categories:     a.Categories,
				Lat:            a.Lat,
				Lon:            a.Lon,
				HasDescription: a.HasDescription,
			}
		}

		if err := p.index.Insert(ctx, entries); err != nil {
			return indexed, fmt.Errorf("failed to index batch at %d: %w", start, err)
		}
		indexed += len(entries)
	}

	return indexed, nil
}

func (p *Processor) writeDocuments(city string, attractions []models.Attraction) error {
	docs := make([]DocumentFile, len(attractions))
	for i, a := range attractions {
		docs[i] = DocumentFile{
			PlaceID:  a.PlaceID,
			Name:     a.Name,
			Document: a.Document,
			Metadata: map[string]string{
				"city":       a.City,
				"state":      a.State,
				"country":    a.Country,
				"categories": a.Categories,
			},
		}
	}

	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(p.dataDir, fmt.Sprintf("%s_attractions_documents.json", city))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}

	logger.Info("Documents artifact saved", zap.String("path", path), zap.Int("count", len(docs)))
	return nil
}
