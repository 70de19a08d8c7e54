package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func wikipediaServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *WikipediaClient) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewWikipediaClient(server.URL+"/%s/w/api.php", "test@example.com", 1, 5)
	t.Cleanup(client.Stop)

	return server, client
}

func TestFetchDescriptionStripsHTML(t *testing.T) {
	_, client := wikipediaServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("titles"); got != "Space Needle" {
			t.Errorf("titles = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got == "" {
			t.Error("request must carry a User-Agent")
		}
		fmt.Fprint(w, `{"query":{"pages":{"1234":{"extract":"<p>The <b>Space Needle</b> is an observation tower.</p>"}}}}`)
	})

	got, err := client.FetchDescription(context.Background(), "en:Space Needle")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "The Space Needle is an observation tower." {
		t.Errorf("description = %q", got)
	}
}

func TestFetchDescriptionMissingPage(t *testing.T) {
	_, client := wikipediaServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query":{"pages":{"-1":{"missing":""}}}}`)
	})

	_, err := client.FetchDescription(context.Background(), "en:Nonexistent Page")
	if !errors.Is(err, ErrPageMissing) {
		t.Fatalf("expected ErrPageMissing, got %v", err)
	}
}

func TestFetchDescriptionMissingPageNotRetried(t *testing.T) {
	requests := 0
	_, client := wikipediaServer(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, `{"query":{"pages":{"-1":{"missing":""}}}}`)
	})

	_, err := client.FetchDescription(context.Background(), "en:Gone")
	if !errors.Is(err, ErrPageMissing) {
		t.Fatalf("expected ErrPageMissing, got %v", err)
	}
	if requests != 1 {
		t.Errorf("a missing page was retried %d times", requests)
	}
}

func TestFetchDescriptionRetriesTransportErrors(t *testing.T) {
	requests := 0
	_, client := wikipediaServer(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"query":{"pages":{"1":{"extract":"Recovered."}}}}`)
	})

	got, err := client.FetchDescription(context.Background(), "en:Flaky")
	if err != nil {
		t.Fatalf("expected recovery after retries, got %v", err)
	}
	if got != "Recovered." {
		t.Errorf("description = %q", got)
	}
	if requests != 3 {
		t.Errorf("expected 3 attempts, got %d", requests)
	}
}

func TestFetchDescriptionBadWikiCode(t *testing.T) {
	_, client := wikipediaServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made for a malformed code")
	})

	_, err := client.FetchDescription(context.Background(), "no-language-prefix")
	if !errors.Is(err, ErrBadWikiCode) {
		t.Fatalf("expected ErrBadWikiCode, got %v", err)
	}
}

func TestFetchDescriptionEmptyExtractIsMissing(t *testing.T) {
	_, client := wikipediaServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query":{"pages":{"1":{"extract":""}}}}`)
	})

	_, err := client.FetchDescription(context.Background(), "en:Blank")
	if !errors.Is(err, ErrPageMissing) {
		t.Fatalf("expected ErrPageMissing for an empty extract, got %v", err)
	}
}
