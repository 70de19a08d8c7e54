// Package models holds the rows persisted in SQLite. The Milvus
// collection owns the searchable copy of each document; these tables keep
// the ingestion provenance and the answer audit trail.
package models

import "time"

// Attraction is one enriched point of interest after the ingestion
// boundary has validated it. Lat/Lon are pointers because Geoapify
// features occasionally arrive without geometry.
type Attraction struct {
	PlaceID        string
	Name           string
	Address        string
	City           string
	State          string
	Country        string
	Categories     string
	Lat            *float64
	Lon            *float64
	Description    string
	HasDescription bool
	Summary        string
	WikiCode       string
	Document       string
	CreatedAt      time.Time
}

// IngestionRun records one collect-enrich-index pass for a city.
type IngestionRun struct {
	ID             string
	City           string
	Fetched        int
	WithWikipedia  int
	Enriched       int
	MissingPages   int
	FetchFailures  int
	Indexed        int
	StartedAt      time.Time
	FinishedAt     time.Time
}

// AnswerRecord is the audit row written for every answer attempt,
// including failed ones. Failed attempts live only here; they never
// become session turns.
type AnswerRecord struct {
	ID           string
	SessionID    string
	Question     string
	Answer       string
	Status       string // answered, short_circuit, error
	SourceCount  int
	ErrorMessage string
	LatencyMS    int
	CreatedAt    time.Time
}

// AnswerSource links an audit row to the place ids it cited, in rank order.
type AnswerSource struct {
	AnswerID string
	Rank     int
	PlaceID  string
	Name     string
}
