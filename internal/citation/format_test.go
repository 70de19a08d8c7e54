package citation

import (
	"strings"
	"testing"

	"github.com/travel-rag/backend/internal/retrieval"
)

func ptr(v float64) *float64 { return &v }

func seattleRecords() []retrieval.Record {
	return []retrieval.Record{
		{
			Content: "Name: Space Needle\nLocation: Seattle\nDescription: Observation tower",
			Metadata: retrieval.Metadata{
				PlaceID: "p1",
				Name:    "Space Needle",
				City:    "Seattle",
				State:   "Washington",
				Country: "United States",
				Lat:     ptr(47.62),
				Lon:     ptr(-122.349),
			},
		},
		{
			Content: "Name: Pike Place Market\nDescription: Public market overlooking Elliott Bay",
			Metadata: retrieval.Metadata{
				PlaceID: "p2",
				Name:    "Pike Place Market",
				City:    "Seattle",
				State:   "Washington",
				Country: "United States",
			},
		},
	}
}

func TestFormatDetailed(t *testing.T) {
	out := FormatDetailed(seattleRecords())

	for _, want := range []string{
		"Source 1: Space Needle",
		"Location: Seattle, Washington, United States",
		"Coordinates: (47.62, -122.349)",
		"Content:\nName: Space Needle",
		"Source 2: Pike Place Market",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("detailed output missing %q\n%s", want, out)
		}
	}

	// The second record has no coordinates, so only one coordinate line.
	if strings.Count(out, "Coordinates:") != 1 {
		t.Errorf("expected exactly one coordinate line\n%s", out)
	}

	if strings.Index(out, "Source 1:") > strings.Index(out, "Source 2:") {
		t.Error("sources must keep retrieval order")
	}
}

func TestFormatDetailedUnknownPlaceholders(t *testing.T) {
	records := []retrieval.Record{
		{Content: "bare content", Metadata: retrieval.Metadata{PlaceID: "p1"}},
	}

	out := FormatDetailed(records)

	if !strings.Contains(out, "Source 1: Unknown") {
		t.Errorf("missing name placeholder\n%s", out)
	}
	if !strings.Contains(out, "Location: Unknown, Unknown, Unknown") {
		t.Errorf("missing location placeholders\n%s", out)
	}
	if strings.Contains(out, "Coordinates:") {
		t.Errorf("coordinates must be omitted when absent\n%s", out)
	}
}

func TestFormatCompact(t *testing.T) {
	out := FormatCompact(seattleRecords())

	if !strings.Contains(out, "[1] Space Needle (Seattle, Washington)") {
		t.Errorf("compact output wrong\n%s", out)
	}
	if !strings.Contains(out, "[2] Pike Place Market (Seattle, Washington)") {
		t.Errorf("compact output wrong\n%s", out)
	}

	// Multi-line content collapses to one indented line.
	if !strings.Contains(out, "    Name: Space Needle Location: Seattle Description: Observation tower") {
		t.Errorf("content not flattened\n%s", out)
	}
}

func TestFormatCompactKeepsDuplicates(t *testing.T) {
	records := seattleRecords()
	records = append(records, records[0])

	out := FormatCompact(records)

	if strings.Count(out, "Space Needle (") != 2 {
		t.Errorf("duplicate records must not be merged\n%s", out)
	}
	if !strings.Contains(out, "[3] Space Needle") {
		t.Errorf("third entry missing\n%s", out)
	}
}

func TestFormatEmpty(t *testing.T) {
	if got := FormatDetailed(nil); got != "No sources available" {
		t.Errorf("FormatDetailed(nil) = %q", got)
	}
	if got := FormatCompact(nil); got != "No sources available" {
		t.Errorf("FormatCompact(nil) = %q", got)
	}
}
