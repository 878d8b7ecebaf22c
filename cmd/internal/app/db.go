package app

import (
	"context"
	"fmt"
	"time"

	"livedeck/cmd/internal/presentation"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDBPool builds a pgxpool from cfg and validates connectivity.
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: parse url: %w", err)
	}

	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 {
		pcfg.MinConns = cfg.DBMinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("db: new pool: %w", err)
	}

	if err := PingDB(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	return pool, nil
}

// PingDB checks if we can acquire a connection within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

// newPostgresRepository opens the presentation store on pool, applying the
// schema first when DB_AUTO_MIGRATE is set.
func newPostgresRepository(ctx context.Context, pool *pgxpool.Pool, cfg Config, log Logger) (*presentation.PostgresStore, error) {
	store, err := presentation.NewPostgresStore(pool,
		presentation.WithSchema(cfg.DBSchema),
		presentation.WithCodeTTL(cfg.AccessCodeTTL),
	)
	if err != nil {
		return nil, err
	}
	if cfg.DBAutoMigrate {
		mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := store.Migrate(mctx); err != nil {
			return nil, fmt.Errorf("db: migrate: %w", err)
		}
		log.Info("db.migrate.ok", "schema", store.Schema())
	}
	return store, nil
}
