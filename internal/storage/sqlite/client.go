package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/travel-rag/backend/internal/storage/models"
	"github.com/travel-rag/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attractions (
		place_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT,
		city TEXT,
		state TEXT,
		country TEXT,
		categories TEXT,
		lat REAL,
		lon REAL,
		description TEXT,
		has_description INTEGER NOT NULL DEFAULT 0,
		summary TEXT,
		wiki_code TEXT,
		document TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_attractions_city ON attractions(city);
	CREATE INDEX IF NOT EXISTS idx_attractions_country ON attractions(country);

	CREATE TABLE IF NOT EXISTS ingestion_runs (
		id TEXT PRIMARY KEY,
		city TEXT NOT NULL,
		fetched INTEGER,
		with_wikipedia INTEGER,
		enriched INTEGER,
		missing_pages INTEGER,
		fetch_failures INTEGER,
		indexed INTEGER,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_runs_city ON ingestion_runs(city);

	CREATE TABLE IF NOT EXISTS answer_audit (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT,
		status TEXT NOT NULL,
		source_count INTEGER,
		error_message TEXT,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_session ON answer_audit(session_id);
	CREATE INDEX IF NOT EXISTS idx_audit_created ON answer_audit(created_at);

	CREATE TABLE IF NOT EXISTS answer_sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		answer_id TEXT NOT NULL,
		rank INTEGER NOT NULL,
		place_id TEXT,
		name TEXT,
		FOREIGN KEY (answer_id) REFERENCES answer_audit(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_sources_answer ON answer_sources(answer_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) UpsertAttraction(a *models.Attraction) error {
	query := `
		INSERT INTO attractions (place_id, name, address, city, state, country, categories,
			lat, lon, description, has_description, summary, wiki_code, document, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(place_id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			description = excluded.description,
			has_description = excluded.has_description,
			summary = excluded.summary,
			document = excluded.document
	`

	hasDescription := 0
	if a.HasDescription {
		hasDescription = 1
	}

	_, err := c.db.Exec(
		query,
		a.PlaceID,
		a.Name,
		a.Address,
		a.City,
		a.State,
		a.Country,
		a.Categories,
		a.Lat,
		a.Lon,
		a.Description,
		hasDescription,
		a.Summary,
		a.WikiCode,
		a.Document,
		a.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert attraction: %w", err)
	}

	logger.Debug("Attraction stored", zap.String("place_id", a.PlaceID), zap.String("name", a.Name))
	return nil
}

func (c *Client) GetAttraction(placeID string) (*models.Attraction, error) {
	query := `SELECT place_id, name, address, city, state, country, categories, lat, lon,
		description, has_description, summary, wiki_code, document, created_at
		FROM attractions WHERE place_id = ?`

	var a models.Attraction
	var hasDescription int
	var createdAt int64

	err := c.db.QueryRow(query, placeID).Scan(
		&a.PlaceID,
		&a.Name,
		&a.Address,
		&a.City,
		&a.State,
		&a.Country,
		&a.Categories,
		&a.Lat,
		&a.Lon,
		&a.Description,
		&hasDescription,
		&a.Summary,
		&a.WikiCode,
		&a.Document,
		&createdAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to get attraction: %w", err)
	}

	a.HasDescription = hasDescription != 0
	a.CreatedAt = time.Unix(createdAt, 0)

	return &a, nil
}

func (c *Client) CountAttractions(city string) (int, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM attractions WHERE city = ?`, city).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count attractions: %w", err)
	}
	return count, nil
}

func (c *Client) InsertIngestionRun(run *models.IngestionRun) error {
	query := `
		INSERT INTO ingestion_runs (id, city, fetched, with_wikipedia, enriched,
			missing_pages, fetch_failures, indexed, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		run.ID,
		run.City,
		run.Fetched,
		run.WithWikipedia,
		run.Enriched,
		run.MissingPages,
		run.FetchFailures,
		run.Indexed,
		run.StartedAt.Unix(),
		run.FinishedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert ingestion run: %w", err)
	}

	logger.Info("Ingestion run recorded",
		zap.String("run_id", run.ID),
		zap.String("city", run.City),
		zap.Int("indexed", run.Indexed),
	)

	return nil
}

func (c *Client) InsertAnswerRecord(record *models.AnswerRecord) error {
	query := `
		INSERT INTO answer_audit (id, session_id, question, answer, status,
			source_count, error_message, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		record.ID,
		record.SessionID,
		record.Question,
		record.Answer,
		record.Status,
		record.SourceCount,
		record.ErrorMessage,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert answer record: %w", err)
	}

	return nil
}

func (c *Client) InsertAnswerSource(source *models.AnswerSource) error {
	query := `INSERT INTO answer_sources (answer_id, rank, place_id, name) VALUES (?, ?, ?, ?)`

	_, err := c.db.Exec(query, source.AnswerID, source.Rank, source.PlaceID, source.Name)
	if err != nil {
		return fmt.Errorf("failed to insert answer source: %w", err)
	}

	return nil
}

func (c *Client) GetAnswerHistory(sessionID string, limit int) ([]models.AnswerRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, session_id, question, answer, status, source_count,
		error_message, latency_ms, created_at
		FROM answer_audit WHERE session_id = ? ORDER BY created_at DESC LIMIT ?`

	rows, err := c.db.Query(query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query answer history: %w", err)
	}
	defer rows.Close()

	var records []models.AnswerRecord
	for rows.Next() {
		var r models.AnswerRecord
		var createdAt int64

		err := rows.Scan(
			&r.ID,
			&r.SessionID,
			&r.Question,
			&r.Answer,
			&r.Status,
			&r.SourceCount,
			&r.ErrorMessage,
			&r.LatencyMS,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan answer record: %w", err)
		}

		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}
