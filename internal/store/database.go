package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Database is the scoring journal's PostgreSQL connection
type Database struct {
	conn   *sql.DB
	logger *log.Logger
}

// NewDatabase opens and pings the journal database
func NewDatabase(dsn string) (*Database, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewDatabaseFromDB(db), nil
}

// NewDatabaseFromDB wraps an already opened *sql.DB.
func NewDatabaseFromDB(db *sql.DB) *Database {
	return &Database{
		conn:   db,
		logger: log.New(log.Writer(), "[journal] ", log.LstdFlags),
	}
}

// Close closes the database connection
func (db *Database) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// DB returns the underlying *sql.DB for queries
func (db *Database) DB() *sql.DB {
	return db.conn
}

type migration struct {
	version string
	sql     string
}

var migrations = []migration{
	{
		version: "001_create_score_events",
		sql: `
			CREATE TABLE IF NOT EXISTS score_events (
				id          BIGSERIAL PRIMARY KEY,
				match_id    TEXT NOT NULL,
				sport       TEXT NOT NULL,
				session_id  TEXT NOT NULL DEFAULT '',
				action      TEXT NOT NULL,
				payload     JSONB NOT NULL,
				status      TEXT NOT NULL CHECK (status IN ('success', 'failed')),
				error       TEXT,
				latency_ms  INTEGER NOT NULL DEFAULT 0,
				created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_score_events_match ON score_events (match_id, created_at DESC);
		`,
	},
	{
		version: "002_create_status_transitions",
		sql: `
			CREATE TABLE IF NOT EXISTS status_transitions (
				id           BIGSERIAL PRIMARY KEY,
				match_id     TEXT NOT NULL,
				sport        TEXT NOT NULL,
				session_id   TEXT NOT NULL DEFAULT '',
				from_status  TEXT NOT NULL,
				to_status    TEXT NOT NULL,
				toss_winner  TEXT,
				toss_choice  TEXT,
				status       TEXT NOT NULL CHECK (status IN ('success', 'failed')),
				error        TEXT,
				created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_status_transitions_match ON status_transitions (match_id, created_at DESC);
		`,
	},
}

// RunMigrations applies every journal migration not yet recorded
func (db *Database) RunMigrations(ctx context.Context) error {
	db.logger.Println("Running database migrations...")

	if err := db.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		if err := db.runMigration(ctx, m); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", m.version, err)
		}
	}

	db.logger.Println("✓ All migrations completed successfully")
	return nil
}

// createMigrationsTable creates a table to track which migrations have been run
func (db *Database) createMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	_, err := db.conn.ExecContext(ctx, query)
	return err
}

// runMigration runs a single migration if it hasn't been applied yet
func (db *Database) runMigration(ctx context.Context, m migration) error {
	var exists bool
	err := db.conn.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", m.version).Scan(&exists)
	if err != nil {
		return err
	}

	if exists {
		db.logger.Printf("  ⊘ Skipping %s (already applied)", m.version)
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.version); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	db.logger.Printf("  ✓ Applied %s", m.version)
	return nil
}

// HealthCheck performs a health check on the database
func (db *Database) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return db.conn.PingContext(ctx)
}
