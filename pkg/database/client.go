// Copyright 2025 Certen Protocol
//
// Database Client for Verification Audit Trail
// Optional Postgres-backed record of verification verdicts. The verifier
// core is stateless; this is service-level bookkeeping for operators and
// auditors, enabled only when a database URL is configured.

package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/certen/eigenda-cert-validator/pkg/config"
)

// Client represents a database client with connection pooling.
type Client struct {
	db     *sql.DB
	logger *log.Logger
}

// NewClient creates a new database client with connection pooling.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database URL cannot be empty")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.DatabaseMaxConns)
	db.SetMaxIdleConns(cfg.DatabaseMinConns)
	db.SetConnMaxIdleTime(cfg.DatabaseMaxIdleTime)

	client := &Client{
		db:     db,
		logger: log.New(log.Writer(), "[Database] ", log.LstdFlags),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := client.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	client.logger.Printf("Connected to database (max_conns=%d)", cfg.DatabaseMaxConns)
	return client, nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// Health checks database connectivity.
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// VerificationResults returns the verification results repository.
func (c *Client) VerificationResults() *VerificationResultRepository {
	return &VerificationResultRepository{db: c.db}
}

func (c *Client) createSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS verification_results (
	request_id       UUID PRIMARY KEY,
	validator_id     TEXT NOT NULL,
	cert_version     SMALLINT NOT NULL,
	reference_block  BIGINT NOT NULL,
	current_block    BIGINT NOT NULL,
	verdict          TEXT NOT NULL,
	failure_rule     TEXT,
	verified_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_verification_results_verified_at
	ON verification_results (verified_at);
`
	_, err := c.db.ExecContext(ctx, schema)
	return err
}
