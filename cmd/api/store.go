package main

import (
	"context"
	"fmt"

	"github.com/geocoder89/collegehub/internal/config"
	"github.com/geocoder89/collegehub/internal/db"
	"github.com/geocoder89/collegehub/internal/observability"
	"github.com/geocoder89/collegehub/internal/repo/memory"
	"github.com/geocoder89/collegehub/internal/repo/mongostore"
	"github.com/geocoder89/collegehub/internal/repo/postgres"
	"github.com/geocoder89/collegehub/internal/repo/protected"
)

type backend struct {
	users protected.UserStore
	// schema brings indexes or tables up to date. Nil when there is nothing to do.
	schema func(ctx context.Context) error
	close  func() error
}

func openBackend(ctx context.Context, cfg config.Config, prom *observability.Prom) (backend, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, err := db.NewMongo(cfg.MongoURI)
		if err != nil {
			return backend{}, fmt.Errorf("mongo client: %w", err)
		}

		repo := mongostore.NewUsersRepo(client, cfg.MongoDB, prom)

		return backend{
			users:  repo,
			schema: repo.EnsureIndexes,
			close:  func() error { return db.CloseMongo(client) },
		}, nil

	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return backend{}, fmt.Errorf("postgres pool: %w", err)
		}

		return backend{
			users:  postgres.NewUsersRepo(pool, prom),
			schema: func(ctx context.Context) error { return db.Migrate(ctx, pool) },
			close: func() error {
				pool.Close()
				return nil
			},
		}, nil

	case config.StoreMemory:
		return backend{
			users: memory.NewUsersRepo(),
			close: func() error { return nil },
		}, nil
	}

	return backend{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}
