package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresDB struct {
	Pool *pgxpool.Pool
}

// NewPostgresDB creates a new PostgreSQL connection pool
func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30
	config.HealthCheckPeriod = time.Minute
	config.ConnConfig.ConnectTimeout = time.Second * 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *PostgresDB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Health checks the database connection
func (db *PostgresDB) Health(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// EnsureSchema creates the user_documents table and its change-notification
// trigger. The trigger is what powers the live document subscription.
func (db *PostgresDB) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS user_documents (
			uid          text PRIMARY KEY,
			email        text NOT NULL DEFAULT '',
			display_name text NOT NULL DEFAULT '',
			photo_url    text NOT NULL DEFAULT '',
			orders       jsonb NOT NULL DEFAULT '[]',
			cart         jsonb NOT NULL DEFAULT '[]',
			created_at   timestamptz NOT NULL DEFAULT now(),
			last_login   timestamptz NOT NULL DEFAULT now(),
			last_updated timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE OR REPLACE FUNCTION notify_user_document_change() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify('user_documents', NEW.uid);
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS user_documents_notify ON user_documents`,
		`CREATE TRIGGER user_documents_notify
			AFTER INSERT OR UPDATE ON user_documents
			FOR EACH ROW EXECUTE FUNCTION notify_user_document_change()`,
	}

	for _, stmt := range statements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
