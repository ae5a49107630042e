package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	poolMaxConns        = 5
	poolMaxConnIdleTime = 5 * time.Minute
	poolConnectTimeout  = 3 * time.Second
)

// NewPool builds the pool without requiring the database to be up.
// pgxpool dials lazily, so callers ping separately and decide what an
// unreachable database means for them.
func NewPool(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = poolMaxConns
	cfg.MaxConnIdleTime = poolMaxConnIdleTime
	cfg.ConnConfig.ConnectTimeout = poolConnectTimeout

	if cfg.ConnConfig.RuntimeParams == nil {
		cfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	cfg.ConnConfig.RuntimeParams["application_name"] = "collegehub-api"

	return pgxpool.NewWithConfig(ctx, cfg)
}
