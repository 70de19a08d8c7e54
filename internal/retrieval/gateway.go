// Package retrieval wraps vector similarity search behind a small
// gateway. The rest of the system never talks to the index directly: it
// asks the gateway for the k records closest to a question and gets them
// back best first.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/travel-rag/backend/internal/metrics"
	"github.com/travel-rag/backend/internal/vector/milvus"
	"github.com/travel-rag/backend/pkg/logger"
	"github.com/travel-rag/backend/pkg/utils"
)

// ErrIndexUnavailable reports that the vector index could not be reached
// or could not answer. It is deliberately distinct from an empty result:
// "nothing matched" is a valid outcome, "index down" is a failure.
var ErrIndexUnavailable = errors.New("vector index unavailable")

// Metadata is the structured half of a record, validated at the
// ingestion boundary. Lat and Lon are nil when the source feature had no
// geometry.
type Metadata struct {
	PlaceID        string
	Name           string
	City           string
	State          string
	Country        string
	Categories     string
	Lat            *float64
	Lon            *float64
	HasDescription bool
}

// Record is one retrievable unit of knowledge: the formatted document
// body plus its metadata. Records are immutable once indexed.
type Record struct {
	Content  string
	Metadata Metadata
}

// Gateway is the search capability the answer pipeline consumes.
type Gateway interface {
	// Search returns up to k records ranked best first. An empty slice
	// with a nil error means no relevant matches.
	Search(ctx context.Context, query string, k int) ([]Record, error)
}

// Embedder maps text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingCache is optional; cache failures degrade to a miss.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32) error
}

// Index is the similarity-search half of the Milvus client.
type Index interface {
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]milvus.Hit, error)
}

type VectorGateway struct {
	embedder Embedder
	index    Index
	cache    EmbeddingCache
}

func NewVectorGateway(embedder Embedder, index Index, cache EmbeddingCache) *VectorGateway {
	return &VectorGateway{
		embedder: embedder,
		index:    index,
		cache:    cache,
	}
}

// Search embeds the query verbatim and searches the index. Milvus L2
// scores rank ascending (closer first), so hit order is already
// best-first and is preserved as is.
func (g *VectorGateway) Search(ctx context.Context, query string, k int) ([]Record, error) {
	if k <= 0 {
		return nil, fmt.Errorf("search fan-out must be positive, got %d", k)
	}

	embedding, err := g.queryEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := g.index.Search(ctx, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	records := make([]Record, 0, len(hits))
	for _, hit := range hits {
		records = append(records, Record{
			Content: hit.Document,
			Metadata: Metadata{
				PlaceID:        hit.PlaceID,
				Name:           hit.Name,
				City:           hit.City,
				State:          hit.State,
				Country:        hit.Country,
				Categories:     hit.Categories,
				Lat:            hit.Lat,
				Lon:            hit.Lon,
				HasDescription: hit.HasDescription,
			},
		})
	}

	metrics.RetrievalResults.Observe(float64(len(records)))

	logger.Debug("Retrieval completed",
		zap.Int("k", k),
		zap.Int("records", len(records)),
	)

	return records, nil
}

func (g *VectorGateway) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if g.cache == nil {
		return g.embedder.Embed(ctx, query)
	}

	key := utils.HashString(query)

	cached, ok, err := g.cache.GetEmbedding(ctx, key)
	if err != nil {
		logger.Warn("Embedding cache read failed", zap.Error(err))
	}
	if ok {
		metrics.CacheHits.WithLabelValues("embedding").Inc()
		return cached, nil
	}
	metrics.CacheMisses.WithLabelValues("embedding").Inc()

	embedding, err := g.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	if err := g.cache.SetEmbedding(ctx, key, embedding); err != nil {
		logger.Warn("Embedding cache write failed", zap.Error(err))
	}

	return embedding, nil
}
