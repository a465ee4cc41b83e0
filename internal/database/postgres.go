package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stemsi/listening-survey/internal/config"
	"github.com/stemsi/listening-survey/internal/storeerr"
)

// NewPostgresPool creates and validates the connection pool backing the
// postgres workbook.
func NewPostgresPool(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse database URL: %v", storeerr.ErrConfiguration, err)
	}

	if cfg.MaxDBConns > 0 {
		poolCfg.MaxConns = cfg.MaxDBConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping database: %v", storeerr.ErrStorageRead, err)
	}

	log.Info().
		Int32("max_conns", poolCfg.MaxConns).
		Str("workbook", cfg.WorkbookName).
		Msg("PostgreSQL connected")

	return pool, nil
}
