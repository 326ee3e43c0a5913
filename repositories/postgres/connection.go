package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// PoolConfig configures the connection pool.
type PoolConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewDB creates a new database connection pool
func NewDB(cfg PoolConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("audit database connection established")

	return &DB{DB: db, logger: logger}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing audit database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// InitSchema creates the audit table when it does not exist yet.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS audit_records (
			id UUID PRIMARY KEY,
			request_id VARCHAR(64) NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			tenant_id VARCHAR(255) NOT NULL,
			route VARCHAR(255) NOT NULL,
			decision VARCHAR(16) NOT NULL,
			reason VARCHAR(255),
			provider VARCHAR(64),
			model VARCHAR(128),
			units_consumed BIGINT NOT NULL DEFAULT 0,
			redaction_count INT NOT NULL DEFAULT 0,
			upstream_status INT,
			degraded BOOLEAN NOT NULL DEFAULT FALSE,
			latency_ms INT NOT NULL DEFAULT 0,
			error_message TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_audit_records_tenant_ts
			ON audit_records (tenant_id, timestamp DESC);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to init audit schema: %w", err)
	}
	return nil
}
