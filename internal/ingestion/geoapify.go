package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/travel-rag/backend/pkg/logger"
	"github.com/travel-rag/backend/pkg/retry"
)

// BBox is the bounding box a city's attractions are fetched from.
type BBox struct {
	LonMin float64
	LatMin float64
	LonMax float64
	LatMax float64
}

// Feature is one GeoJSON feature from the Geoapify Places API, reduced
// to the fields the builder consumes.
type Feature struct {
	Properties struct {
		PlaceID      string   `json:"place_id"`
		Name         string   `json:"name"`
		Categories   []string `json:"categories"`
		Formatted    string   `json:"formatted"`
		AddressLine1 string   `json:"address_line1"`
		AddressLine2 string   `json:"address_line2"`
		City         string   `json:"city"`
		State        string   `json:"state"`
		Postcode     string   `json:"postcode"`
		Datasource   struct {
			Sourcename string `json:"sourcename"`
		} `json:"datasource"`
		WikiAndMedia struct {
			Wikipedia string `json:"wikipedia"`
		} `json:"wiki_and_media"`
	} `json:"properties"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

type GeoapifyClient struct {
	baseURL    string
	apiKey     string
	categories string
	limit      int
	rawDir     string
	httpClient *http.Client
	retryCfg   retry.Config
}

func NewGeoapifyClient(baseURL, apiKey, categories string, limit, timeoutSec int, rawDir string) *GeoapifyClient {
	if categories == "" {
		categories = "tourism"
	}
	if limit <= 0 {
		limit = 500
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.Logger = logger.GetLogger()

	return &GeoapifyClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		categories: categories,
		limit:      limit,
		rawDir:     rawDir,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
		},
		retryCfg: retryCfg,
	}
}

// FetchAttractions returns all features inside the bounding box. The raw
// API response is cached on disk per city; an existing cache file is
// loaded instead of calling the API again.
func (c *GeoapifyClient) FetchAttractions(ctx context.Context, city string, bbox BBox) ([]Feature, error) {
	rawPath := filepath.Join(c.rawDir, fmt.Sprintf("%s_attractions_raw.json", city))

	if data, err := os.ReadFile(rawPath); err == nil {
		var features []Feature
		if err := json.Unmarshal(data, &features); err != nil {
			return nil, fmt.Errorf("failed to parse cached raw data %s: %w", rawPath, err)
		}
		logger.Info("Loaded attractions from raw cache",
			zap.String("city", city),
			zap.Int("count", len(features)),
		)
		return features, nil
	}

	features, err := retry.DoWithResult(ctx, c.retryCfg, func() ([]Feature, error) {
		return c.fetch(ctx, bbox)
	})
	if err != nil {
		return nil, fmt.Errorf("geoapify fetch failed: %w", err)
	}

	if len(features) == 0 {
		logger.Warn("No attractions found in bounding box", zap.String("city", city))
		return nil, nil
	}

	if err := c.saveRaw(rawPath, features); err != nil {
		logger.Warn("Failed to save raw data", zap.Error(err))
	}

	logger.Info("Fetched attractions from Geoapify",
		zap.String("city", city),
		zap.Int("count", len(features)),
	)

	return features, nil
}

func (c *GeoapifyClient) fetch(ctx context.Context, bbox BBox) ([]Feature, error) {
	params := url.Values{}
	params.Set("apiKey", c.apiKey)
	params.Set("categories", c.categories)
	params.Set("filter", fmt.Sprintf("rect:%g,%g,%g,%g", bbox.LonMin, bbox.LatMin, bbox.LonMax, bbox.LatMax))
	params.Set("limit", fmt.Sprintf("%d", c.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?%s", c.baseURL, params.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("geoapify returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Features []Feature `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return payload.Features, nil
}

func (c *GeoapifyClient) saveRaw(path string, features []Feature) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(features, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}

	logger.Info("Raw data saved", zap.String("path", path))
	return nil
}
