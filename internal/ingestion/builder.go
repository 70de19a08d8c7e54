package ingestion

import (
	"fmt"
	"strings"
	"time"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/travel-rag/backend/internal/storage/models"
	"github.com/travel-rag/backend/pkg/logger"
)

const noDescription = "No description available"

// summarySentences is how many leading sentences of a description make
// up the stored summary.
const summarySentences = 2

// ExtractAttraction maps a raw Geoapify feature onto the typed
// attraction record. This is the ingestion boundary: everything past
// here works with named, validated fields instead of loose JSON.
func ExtractAttraction(f Feature) models.Attraction {
	a := models.Attraction{
		PlaceID:    f.Properties.PlaceID,
		Name:       f.Properties.Name,
		Address:    f.Properties.Formatted,
		City:       f.Properties.City,
		State:      f.Properties.State,
		Categories: strings.Join(f.Properties.Categories, ", "),
		WikiCode:   f.Properties.WikiAndMedia.Wikipedia,
		Country:    countryFromAddress(f.Properties.Formatted),
		CreatedAt:  time.Now(),
	}

	if len(f.Geometry.Coordinates) >= 2 {
		lon := f.Geometry.Coordinates[0]
		lat := f.Geometry.Coordinates[1]
		a.Lon = &lon
		a.Lat = &lat
	}

	return a
}

// FilterWithWikipedia keeps features that carry a Wikipedia reference,
// since only those can be enriched with a description.
func FilterWithWikipedia(features []Feature) []Feature {
	filtered := make([]Feature, 0, len(features))
	for _, f := range features {
		if f.Properties.WikiAndMedia.Wikipedia != "" {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// DedupeByPlaceID drops later features sharing a place id with an
// earlier one, preserving first-seen order.
func DedupeByPlaceID(features []Feature) []Feature {
	seen := make(map[string]struct{}, len(features))
	deduped := make([]Feature, 0, len(features))

	for _, f := range features {
		id := f.Properties.PlaceID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		deduped = append(deduped, f)
	}

	if dropped := len(features) - len(deduped); dropped > 0 {
		logger.Info("Dropped duplicate features", zap.Int("count", dropped))
	}

	return deduped
}

// BuildDocument renders the flat document text that gets embedded:
// name, location, coordinates and description, one labelled line each.
func BuildDocument(a *models.Attraction) string {
	address := a.Address
	if address == "" {
		address = "N/A"
	}

	coordinates := "N/A"
	if a.Lat != nil && a.Lon != nil {
		coordinates = fmt.Sprintf("%v, %v", *a.Lat, *a.Lon)
	}

	description := a.Description
	if description == "" {
		description = noDescription
	}

	return fmt.Sprintf("Name: %s\nLocation: %s\nCoordinates: %s\nDescription: %s\n",
		a.Name, address, coordinates, description)
}

// Summarize keeps the leading sentences of a description. Falls back to
// the full text if sentence segmentation fails.
func Summarize(description string) string {
	if description == "" {
		return ""
	}

	doc, err := prose.NewDocument(description,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		logger.Warn("Sentence segmentation failed", zap.Error(err))
		return description
	}

	sentences := doc.Sentences()
	if len(sentences) <= summarySentences {
		return description
	}

	parts := make([]string, 0, summarySentences)
	for _, s := range sentences[:summarySentences] {
		parts = append(parts, strings.TrimSpace(s.Text))
	}

	return strings.Join(parts, " ")
}

// countryFromAddress takes the segment after the last comma of a
// formatted address, which is where Geoapify puts the country.
func countryFromAddress(address string) string {
	if address == "" {
		return "Unknown"
	}

	parts := strings.Split(address, ",")
	country := strings.TrimSpace(parts[len(parts)-1])
	if country == "" {
		return "Unknown"
	}
	return country
}

// QualityStats summarizes one enrichment pass. MissingPages and
// FetchFailures are separate on purpose: an article that does not exist
// is a data fact, a fetch that kept failing is an operational problem.
type QualityStats struct {
	Total           int
	WithDescription int
	Complete        int
	MissingPages    int
	FetchFailures   int
}

func (s QualityStats) CompletenessRate() string {
	if s.Total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(s.Complete)/float64(s.Total)*100)
}

// ValidateQuality recomputes the per-record counters over the final set.
func ValidateQuality(attractions []models.Attraction) QualityStats {
	stats := QualityStats{Total: len(attractions)}

	for _, a := range attractions {
		if a.HasDescription {
			stats.WithDescription++
		}
		if a.Name != "" && a.HasDescription && a.Lon != nil {
			stats.Complete++
		}
	}

	return stats
}
