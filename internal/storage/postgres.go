/**
 * PostgreSQL Client
 *
 * Audit log of verification attempts. One row per /upload request,
 * successful or not.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// VerificationRecord is one audit row
type VerificationRecord struct {
	RequestID       string
	Filename        string
	ClaimedName     string
	ExtractedName   string
	Box             []int64 // flattened x,y pairs TL,TR,BR,BL
	SimilarityScore int
	ErrorCode       string
	ErrorDetails    map[string]interface{}
	Duration        time.Duration
}

const schemaDDL = `
CREATE SCHEMA IF NOT EXISTS idverify;
CREATE TABLE IF NOT EXISTS idverify.verifications (
	request_id       UUID PRIMARY KEY,
	filename         TEXT NOT NULL,
	claimed_name     TEXT NOT NULL,
	extracted_name   TEXT,
	box              INTEGER[],
	similarity_score SMALLINT,
	error_code       TEXT,
	error_details    JSONB,
	duration_ms      BIGINT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// EnsureSchema creates the audit table if it does not exist
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// RecordVerification inserts one audit row
func (p *PostgresClient) RecordVerification(ctx context.Context, rec *VerificationRecord) error {
	if rec == nil || rec.RequestID == "" {
		return fmt.Errorf("request ID is required")
	}

	var details []byte
	if len(rec.ErrorDetails) > 0 {
		var err error
		details, err = json.Marshal(rec.ErrorDetails)
		if err != nil {
			return fmt.Errorf("failed to marshal error details: %w", err)
		}
	}

	query := `
		INSERT INTO idverify.verifications (
			request_id,
			filename,
			claimed_name,
			extracted_name,
			box,
			similarity_score,
			error_code,
			error_details,
			duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := p.db.ExecContext(
		ctx,
		query,
		rec.RequestID,
		rec.Filename,
		rec.ClaimedName,
		nullString(rec.ExtractedName),
		pq.Array(rec.Box),
		nullScore(rec),
		nullString(rec.ErrorCode),
		details,
		rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert verification: %w", err)
	}

	return nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// a failed verification has no score
func nullScore(rec *VerificationRecord) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(rec.SimilarityScore), Valid: rec.ErrorCode == ""}
}
