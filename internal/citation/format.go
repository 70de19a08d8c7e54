// Package citation renders retrieved records into human-readable source
// attributions. Formatters are pure functions: they preserve retrieval
// rank order, never deduplicate, and substitute "Unknown" for missing
// metadata instead of failing.
package citation

import (
	"fmt"
	"strings"

	"github.com/travel-rag/backend/internal/retrieval"
)

const noSources = "No sources available"

const divider = "======================================================================"

// FormatDetailed renders one block per record: ordinal and name, the
// location line, the coordinate line (omitted when either coordinate is
// absent) and the full content.
func FormatDetailed(records []retrieval.Record) string {
	if len(records) == 0 {
		return noSources
	}

	var b strings.Builder

	for i, r := range records {
		md := r.Metadata

		b.WriteString("\n")
		b.WriteString(divider)
		b.WriteString(fmt.Sprintf("\nSource %d: %s\n", i+1, orUnknown(md.Name)))
		b.WriteString(divider)
		b.WriteString(fmt.Sprintf("\nLocation: %s, %s, %s\n",
			orUnknown(md.City), orUnknown(md.State), orUnknown(md.Country)))

		if md.Lat != nil && md.Lon != nil {
			b.WriteString(fmt.Sprintf("Coordinates: (%v, %v)\n", *md.Lat, *md.Lon))
		}

		b.WriteString(fmt.Sprintf("Content:\n%s\n", r.Content))
	}

	return b.String()
}

// FormatCompact renders one short entry per record: ordinal, name,
// location and the content flattened to a single indented line.
func FormatCompact(records []retrieval.Record) string {
	if len(records) == 0 {
		return noSources
	}

	entries := make([]string, 0, len(records))

	for i, r := range records {
		md := r.Metadata
		entries = append(entries, fmt.Sprintf("[%d] %s (%s, %s)\n    %s",
			i+1,
			orUnknown(md.Name),
			orUnknown(md.City),
			orUnknown(md.State),
			singleLine(r.Content),
		))
	}

	return strings.Join(entries, "\n\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
