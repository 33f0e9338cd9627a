package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Store wraps the Postgres connection used for search history, computed
// estimates and the provider response cache.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// ─── Models ──────────────────────────────────────────────────────────────────

type Search struct {
	ID               string    `json:"id"`
	Origin           string    `json:"origin"`
	StartDate        string    `json:"start_date"`
	EndDate          string    `json:"end_date"`
	DestinationsJSON string    `json:"destinations_json"`
	TravelersJSON    string    `json:"travelers_json"`
	CreatedAt        time.Time `json:"created_at"`
}

type Estimate struct {
	ID              string    `json:"id"`
	SearchID        string    `json:"search_id"`
	ResultsJSON     string    `json:"results_json"`
	InsightsJSON    string    `json:"insights_json"`
	ItinerariesJSON string    `json:"itineraries_json"`
	PDFData         []byte    `json:"pdf_data,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ─── Open ────────────────────────────────────────────────────────────────────

// Open connects to Postgres and runs the idempotent migrations. The DSN
// comes from DATABASE_URL or the individual DB_* variables.
func Open(logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", buildDSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// The managed Postgres may take a moment to accept connections.
	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		logger.Info("waiting for database", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	logger.Info("database connected and migrated")
	return s, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping reports database reachability for the health endpoint.
func (s *Store) Ping() error { return s.db.Ping() }

func buildDSN() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	pass := getEnv("DB_PASSWORD", "postgres")
	name := getEnv("DB_NAME", "tripgenie")
	sslmode := getEnv("DB_SSLMODE", "disable")

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, pass, name, sslmode)
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS searches (
			id                TEXT PRIMARY KEY,
			origin            TEXT,
			start_date        TEXT NOT NULL,
			end_date          TEXT NOT NULL,
			destinations_json TEXT NOT NULL,
			travelers_json    TEXT NOT NULL,
			created_at        TIMESTAMPTZ DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS estimates (
			id               TEXT PRIMARY KEY,
			search_id        TEXT NOT NULL REFERENCES searches(id),
			results_json     TEXT NOT NULL,
			insights_json    TEXT,
			itineraries_json TEXT,
			pdf_data         BYTEA,
			created_at       TIMESTAMPTZ DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS provider_cache (
			cache_key  TEXT PRIMARY KEY,
			payload    TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_estimates_search_id
			ON estimates(search_id)`,

		`CREATE INDEX IF NOT EXISTS idx_searches_created_at
			ON searches(created_at DESC)`,

		`CREATE INDEX IF NOT EXISTS idx_provider_cache_expires
			ON provider_cache(expires_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// ─── Searches & estimates ────────────────────────────────────────────────────

func (s *Store) SaveSearch(ctx context.Context, sr *Search) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO searches (id, origin, start_date, end_date, destinations_json, travelers_json)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		sr.ID, sr.Origin, sr.StartDate, sr.EndDate, sr.DestinationsJSON, sr.TravelersJSON)
	return err
}

func (s *Store) GetSearch(ctx context.Context, id string) (*Search, error) {
	sr := &Search{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, origin, start_date, end_date, destinations_json, travelers_json, created_at
		FROM searches WHERE id = $1`, id).
		Scan(&sr.ID, &sr.Origin, &sr.StartDate, &sr.EndDate,
			&sr.DestinationsJSON, &sr.TravelersJSON, &sr.CreatedAt)
	if err != nil {
		return nil, err
	}
	return sr, nil
}

func (s *Store) SaveEstimate(ctx context.Context, e *Estimate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO estimates (id, search_id, results_json, insights_json, itineraries_json, pdf_data)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.SearchID, e.ResultsJSON, e.InsightsJSON, e.ItinerariesJSON, e.PDFData)
	return err
}

func (s *Store) GetEstimate(ctx context.Context, id string) (*Estimate, error) {
	e := &Estimate{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, search_id, results_json, insights_json, itineraries_json, pdf_data, created_at
		FROM estimates WHERE id = $1`, id).
		Scan(&e.ID, &e.SearchID, &e.ResultsJSON, &e.InsightsJSON,
			&e.ItinerariesJSON, &e.PDFData, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) GetEstimateBySearchID(ctx context.Context, searchID string) (*Estimate, error) {
	e := &Estimate{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, search_id, results_json, insights_json, itineraries_json, pdf_data, created_at
		FROM estimates WHERE search_id = $1
		ORDER BY created_at DESC LIMIT 1`, searchID).
		Scan(&e.ID, &e.SearchID, &e.ResultsJSON, &e.InsightsJSON,
			&e.ItinerariesJSON, &e.PDFData, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) UpdateEstimatePDF(ctx context.Context, id string, pdfData []byte) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE estimates SET pdf_data = $1 WHERE id = $2`, pdfData, id)
	return err
}

// ─── Provider cache ──────────────────────────────────────────────────────────

// GetCache returns the cached payload for a key if it has not expired.
func (s *Store) GetCache(ctx context.Context, key string) ([]byte, bool) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM provider_cache
		WHERE cache_key = $1 AND expires_at > NOW()`, key).
		Scan(&payload)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Warn("provider cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return []byte(payload), true
}

// PutCache upserts a payload with the given time-to-live.
func (s *Store) PutCache(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_cache (cache_key, payload, expires_at)
		VALUES ($1, $2, NOW() + $3::interval)
		ON CONFLICT (cache_key)
		DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at`,
		key, string(payload), fmt.Sprintf("%d seconds", int(ttl.Seconds())))
	return err
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
