package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/travel-rag/backend/internal/metrics"
	"github.com/travel-rag/backend/pkg/logger"
	"github.com/travel-rag/backend/pkg/retry"
)

// ErrPageMissing reports that Wikipedia has no article for the code.
// A missing page is a valid absent-enrichment outcome; it must not be
// confused with a fetch failure, which is transient and retried.
var ErrPageMissing = errors.New("wikipedia page missing")

// ErrBadWikiCode reports a wiki code not in "language:Title" form.
var ErrBadWikiCode = errors.New("malformed wiki code")

type WikipediaClient struct {
	apiBase    string // format string taking the language subdomain
	userAgent  string
	limiter    *time.Ticker
	httpClient *http.Client
	retryCfg   retry.Config
}

func NewWikipediaClient(apiBase, contactEmail string, rateLimitMS, timeoutSec int) *WikipediaClient {
	if rateLimitMS <= 0 {
		rateLimitMS = 500
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.Logger = logger.GetLogger()

	return &WikipediaClient{
		apiBase:   apiBase,
		userAgent: fmt.Sprintf("TravelRAG/1.0 (%s)", contactEmail),
		limiter:   time.NewTicker(time.Duration(rateLimitMS) * time.Millisecond),
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
		},
		retryCfg: retryCfg,
	}
}

func (c *WikipediaClient) Stop() {
	c.limiter.Stop()
}

// FetchDescription resolves a "language:Title" wiki code to the plain
// text of the article's introduction. Calls are rate limited against the
// shared ticker. Transport failures are retried; a missing or empty page
// is ErrPageMissing and is never retried.
func (c *WikipediaClient) FetchDescription(ctx context.Context, wikiCode string) (string, error) {
	language, title, ok := strings.Cut(wikiCode, ":")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrBadWikiCode, wikiCode)
	}
	language = strings.TrimSpace(language)
	title = strings.TrimSpace(title)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.limiter.C:
	}

	cfg := c.retryCfg
	cfg.PermanentErrors = []error{ErrPageMissing}

	extract, err := retry.DoWithResult(ctx, cfg, func() (string, error) {
		return c.fetchExtract(ctx, language, title)
	})
	if err != nil {
		if errors.Is(err, ErrPageMissing) {
			metrics.WikipediaFetches.WithLabelValues("missing").Inc()
		} else {
			metrics.WikipediaFetches.WithLabelValues("error").Inc()
		}
		return "", err
	}

	metrics.WikipediaFetches.WithLabelValues("ok").Inc()
	return extract, nil
}

func (c *WikipediaClient) fetchExtract(ctx context.Context, language, title string) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("titles", title)
	params.Set("prop", "extracts")
	params.Set("exintro", "1")
	params.Set("redirects", "1")

	apiURL := fmt.Sprintf(c.apiBase, language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?%s", apiURL, params.Encode()), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("wikipedia returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Query struct {
			Pages map[string]struct {
				Extract string          `json:"extract"`
				Missing json.RawMessage `json:"missing"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	for _, page := range payload.Query.Pages {
		if page.Missing != nil || page.Extract == "" {
			continue
		}
		// The extract arrives as intro HTML; strip the markup down to text.
		return stripHTML(page.Extract), nil
	}

	return "", ErrPageMissing
}

func stripHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}

	return strings.TrimSpace(doc.Text())
}
