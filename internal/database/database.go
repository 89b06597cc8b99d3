// Package database opens the PostgreSQL pool and owns the coverage schema.
package database

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hexfog/hexfog/internal/config"
)

// Config holds connection pool settings. URL, when set, wins over the
// individual connection fields.
type Config struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxConns          int
	MinConns          int
	ConnMaxLifetime   time.Duration
	ConnMaxIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// ConfigFromEnv reads DATABASE_URL or the DB_* variables.
func ConfigFromEnv() Config {
	return Config{
		URL:               config.String("DATABASE_URL", ""),
		Host:              config.String("DB_HOST", "localhost"),
		Port:              config.Int("DB_PORT", 5432),
		User:              config.String("DB_USER", "hexfog"),
		Password:          config.String("DB_PASSWORD", "localdev"),
		Database:          config.String("DB_NAME", "hexfog"),
		SSLMode:           config.String("DB_SSL_MODE", "disable"),
		MaxConns:          config.Int("DB_MAX_CONNS", 10),
		MinConns:          config.Int("DB_MIN_CONNS", 2),
		ConnMaxLifetime:   config.Duration("DB_CONN_MAX_LIFETIME", time.Hour),
		ConnMaxIdleTime:   config.Duration("DB_CONN_MAX_IDLE_TIME", 10*time.Minute),
		HealthCheckPeriod: config.Duration("DB_HEALTH_CHECK_PERIOD", time.Minute),
	}
}

// DSN returns the connection URL with user credentials escaped.
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// PoolConfig parses the DSN and applies the pool limits. Zero limits keep
// the pgx defaults.
func (c Config) PoolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if c.MaxConns > 0 {
		pc.MaxConns = int32(min(c.MaxConns, math.MaxInt32)) //nolint:gosec // clamped
	}
	if c.MinConns > 0 {
		pc.MinConns = int32(min(c.MinConns, int(pc.MaxConns))) //nolint:gosec // clamped
	}
	if c.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = c.ConnMaxLifetime
	}
	if c.ConnMaxIdleTime > 0 {
		pc.MaxConnIdleTime = c.ConnMaxIdleTime
	}
	if c.HealthCheckPeriod > 0 {
		pc.HealthCheckPeriod = c.HealthCheckPeriod
	}
	return pc, nil
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pc, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Schema creates the coverage tables when they do not exist yet.
const Schema = `
CREATE TABLE IF NOT EXISTS grid_cells (
	region_id TEXT NOT NULL,
	h3_index  TEXT NOT NULL,
	PRIMARY KEY (region_id, h3_index)
);

CREATE TABLE IF NOT EXISTS user_cleared_cells (
	user_id    TEXT NOT NULL,
	h3_index   TEXT NOT NULL,
	cleared_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, h3_index)
);

CREATE INDEX IF NOT EXISTS grid_cells_h3_index_idx ON grid_cells (h3_index);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
