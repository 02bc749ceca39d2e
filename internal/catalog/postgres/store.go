// Package postgres implements catalog.Catalog backed by PostgreSQL:
// a pgxpool connection pool, hand-written SQL (no ORM), and
// golang-migrate for schema management.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marmos91/ditto-upload/internal/apperror"
	"github.com/marmos91/ditto-upload/internal/catalog"
	"github.com/marmos91/ditto-upload/internal/logger"
)

// Config configures the PostgreSQL connection pool.
type Config struct {
	// URI is a full PostgreSQL connection string (the POSTGRES_URI
	// environment value).
	URI string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// AutoMigrate runs the embedded schema migrations on startup when true.
	AutoMigrate bool
}

func (c *Config) applyDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MinConns == 0 {
		c.MinConns = 2
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = time.Hour
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = 30 * time.Minute
	}
}

// Store implements catalog.Catalog over a pgxpool.Pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a connection pool, optionally runs migrations, and returns
// a ready Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.applyDefaults()

	poolConfig, err := pgxpool.ParseConfig(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("parse postgres uri: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if cfg.AutoMigrate {
		if err := runMigrations(cfg.URI); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run catalog migrations: %w", err)
		}
	}

	logger.Info("catalog store connected", "max_conns", cfg.MaxConns, "auto_migrate", cfg.AutoMigrate)

	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies the connection is healthy.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return apperror.Wrap(apperror.Backend, "postgres ping failed", err)
	}
	return nil
}

var _ catalog.Catalog = (*Store)(nil)
