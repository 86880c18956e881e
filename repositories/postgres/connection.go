package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/upb/coffee-shop/config"
)

const drinksSchema = `
	CREATE TABLE IF NOT EXISTS drinks (
		id BIGSERIAL PRIMARY KEY,
		title VARCHAR(80) NOT NULL UNIQUE,
		recipe JSONB NOT NULL DEFAULT '[]'::jsonb
	);
`

const seedDrink = `
	INSERT INTO drinks (title, recipe)
	VALUES ('water', '[{"name": "water", "color": "blue", "parts": 1}]')
	ON CONFLICT (title) DO NOTHING;
`

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB opens a connection pool and verifies it with a ping
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// NewDBFromConn wraps an already opened pool
func NewDBFromConn(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: db, logger: logger}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck pings the database and runs a trivial query
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// InitSchema creates the drinks table if it does not exist
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, drinksSchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized")
	return nil
}

// Seed inserts the sample drink unless a drink with its title already exists
func (db *DB) Seed(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, seedDrink); err != nil {
		return fmt.Errorf("failed to seed drinks table: %w", err)
	}
	return nil
}

// ResetSchema drops and recreates the drinks table, optionally seeding one sample drink
func (db *DB) ResetSchema(ctx context.Context, seed bool) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reset: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS drinks;`); err != nil {
		return fmt.Errorf("failed to drop drinks table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, drinksSchema); err != nil {
		return fmt.Errorf("failed to create drinks table: %w", err)
	}
	if seed {
		if _, err := tx.ExecContext(ctx, seedDrink); err != nil {
			return fmt.Errorf("failed to seed drinks table: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}

	db.logger.Warn("database schema reset", zap.Bool("seeded", seed))
	return nil
}
