package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/leafcheck/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	applicationName = "leafcheck"
	connectTimeout  = 10 * time.Second
	pingTimeout     = 2 * time.Second
)

// DB is the credential store's Postgres handle. Every repository shares its
// pool.
type DB struct {
	Pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewConnection opens the pool described by cfg and refuses to return until
// the server has answered a ping. Sessions are tagged with the service name
// so they can be told apart in pg_stat_activity.
func NewConnection(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open credential store pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("credential store unreachable at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	logger.Info("credential store connected",
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Name),
		slog.Int("max_conns", int(cfg.MaxConns)),
	)

	return &DB{Pool: pool, logger: logger}, nil
}

// NewFromPool wraps a pool created elsewhere, such as by a test container.
func NewFromPool(pool *pgxpool.Pool, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.Default()
	}
	return &DB{Pool: pool, logger: logger}
}

func (db *DB) Close() {
	db.logger.Info("closing credential store pool")
	db.Pool.Close()
}

// Health is the database section of the /health response.
type Health struct {
	Database  string `json:"database"`
	OpenConns int32  `json:"open_conns"`
	IdleConns int32  `json:"idle_conns"`
}

// HealthCheck pings the server within a short bound.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("credential store health check failed: %w", err)
	}
	return nil
}

// Health reports reachability alongside the pool's connection counts.
func (db *DB) Health(ctx context.Context) (Health, error) {
	stat := db.Pool.Stat()
	h := Health{
		Database:  "up",
		OpenConns: stat.TotalConns(),
		IdleConns: stat.IdleConns(),
	}
	if err := db.HealthCheck(ctx); err != nil {
		h.Database = "down"
		return h, err
	}
	return h, nil
}
