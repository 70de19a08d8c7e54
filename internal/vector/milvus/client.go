package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/travel-rag/backend/pkg/logger"
)

// nullCoordinate marks an absent lat/lon in the collection; Milvus has no
// nullable scalar fields.
const nullCoordinate = -999.0

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

// Entry is one attraction document as stored in the collection.
type Entry struct {
	PlaceID        string
	Embedding      []float32
	Document       string
	Name           string
	City           string
	State          string
	Country        string
	Categories     string
	Lat            *float64
	Lon            *float64
	HasDescription bool
}

// Hit is one search result. Score is L2 distance: smaller is closer, and
// Milvus returns hits already sorted ascending, so hits arrive best first.
type Hit struct {
	Entry
	Score float32
}

func NewClient(endpoint, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(
		context.Background(),
		endpoint,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Travel attraction documents",
		Fields: []*entity.Field{
			{
				Name:       "place_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "document",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "8192",
				},
			},
			{
				Name:     "name",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "256",
				},
			},
			{
				Name:     "city",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     "state",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     "country",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     "categories",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "1024",
				},
			},
			{
				Name:     "lat",
				DataType: entity.FieldTypeDouble,
			},
			{
				Name:     "lon",
				DataType: entity.FieldTypeDouble,
			},
			{
				Name:     "has_description",
				DataType: entity.FieldTypeBool,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

func (m *Client) Insert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	placeIDs := make([]string, len(entries))
	embeddings := make([][]float32, len(entries))
	documents := make([]string, len(entries))
	names := make([]string, len(entries))
	cities := make([]string, len(entries))
	states := make([]string, len(entries))
	countries := make([]string, len(entries))
	categories := make([]string, len(entries))
	lats := make([]float64, len(entries))
	lons := make([]float64, len(entries))
	hasDescriptions := make([]bool, len(entries))

	for i, e := range entries {
		placeIDs[i] = e.PlaceID
		embeddings[i] = e.Embedding
		documents[i] = e.Document
		names[i] = e.Name
		cities[i] = e.City
		states[i] = e.State
		countries[i] = e.Country
		categories[i] = e.Categories
		lats[i] = flattenCoordinate(e.Lat)
		lons[i] = flattenCoordinate(e.Lon)
		hasDescriptions[i] = e.HasDescription
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("place_id", placeIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("document", documents),
		entity.NewColumnVarChar("name", names),
		entity.NewColumnVarChar("city", cities),
		entity.NewColumnVarChar("state", states),
		entity.NewColumnVarChar("country", countries),
		entity.NewColumnVarChar("categories", categories),
		entity.NewColumnDouble("lat", lats),
		entity.NewColumnDouble("lon", lons),
		entity.NewColumnBool("has_description", hasDescriptions),
	)

	if err != nil {
		return fmt.Errorf("failed to insert entries: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Entries inserted into vector DB", zap.Int("count", len(entries)))

	return nil
}

func (m *Client) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Hit, error) {
	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		"",
		[]string{"place_id", "document", "name", "city", "state", "country", "categories", "lat", "lon", "has_description"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]Hit, 0)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			hit := Hit{Score: sr.Scores[i]}

			hit.PlaceID = columnString(sr.Fields.GetColumn("place_id"), i)
			hit.Document = columnString(sr.Fields.GetColumn("document"), i)
			hit.Name = columnString(sr.Fields.GetColumn("name"), i)
			hit.City = columnString(sr.Fields.GetColumn("city"), i)
			hit.State = columnString(sr.Fields.GetColumn("state"), i)
			hit.Country = columnString(sr.Fields.GetColumn("country"), i)
			hit.Categories = columnString(sr.Fields.GetColumn("categories"), i)
			hit.Lat = restoreCoordinate(columnFloat(sr.Fields.GetColumn("lat"), i))
			hit.Lon = restoreCoordinate(columnFloat(sr.Fields.GetColumn("lon"), i))
			hit.HasDescription = columnBool(sr.Fields.GetColumn("has_description"), i)

			hits = append(hits, hit)
		}
	}

	logger.Debug("Vector search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(hits)),
	)

	return hits, nil
}

// Drop removes the whole collection. Index-wide deletion is the only
// delete operation the corpus supports.
func (m *Client) Drop(ctx context.Context) error {
	err := m.client.DropCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}

	logger.Info("Collection dropped", zap.String("collection", m.collectionName))
	return nil
}

func flattenCoordinate(v *float64) float64 {
	if v == nil {
		return nullCoordinate
	}
	return *v
}

func restoreCoordinate(v float64) *float64 {
	if v == nullCoordinate {
		return nil
	}
	return &v
}

func columnString(col entity.Column, i int) string {
	if col == nil {
		return ""
	}
	v, err := col.Get(i)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func columnFloat(col entity.Column, i int) float64 {
	if col == nil {
		return nullCoordinate
	}
	v, err := col.Get(i)
	if err != nil {
		return nullCoordinate
	}
	f, _ := v.(float64)
	return f
}

func columnBool(col entity.Column, i int) bool {
	if col == nil {
		return false
	}
	v, err := col.Get(i)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}
