package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turireg/apartment-catalog-server/database"
	"github.com/turireg/apartment-catalog-server/internal/catalog"
	"github.com/turireg/apartment-catalog-server/internal/config"
	"github.com/turireg/apartment-catalog-server/internal/geocode"
	"github.com/turireg/apartment-catalog-server/internal/httpclient"
	"github.com/turireg/apartment-catalog-server/internal/logger"
	"github.com/turireg/apartment-catalog-server/internal/remote"
	"github.com/turireg/apartment-catalog-server/internal/runlog"
	pkgsync "github.com/turireg/apartment-catalog-server/internal/sync"
	"github.com/turireg/apartment-catalog-server/internal/synclock"
)

// engine bundles the wired synchronization components
type engine struct {
	pool    *pgxpool.Pool
	remote  remote.Client
	repo    catalog.Repository
	runs    runlog.Store
	manager pkgsync.Manager
}

// newPool creates a pgx connection pool from the database configuration
// and verifies connectivity.
func newPool(ctx context.Context, dbCfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	connString, err := dbCfg.GetConnectionString()
	if err != nil {
		return nil, fmt.Errorf("failed to build connection string: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if dbCfg.MaxConns > 0 {
		poolCfg.MaxConns = dbCfg.MaxConns
	}
	if dbCfg.ConnMaxLifetime != "" {
		lifetime, err := time.ParseDuration(dbCfg.ConnMaxLifetime)
		if err != nil {
			return nil, fmt.Errorf("invalid connMaxLifetime: %w", err)
		}
		poolCfg.MaxConnLifetime = lifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Infof("Database connection established: %s@%s:%d/%s",
		dbCfg.User, dbCfg.Host, dbCfg.Port, dbCfg.Database)
	return pool, nil
}

// newEngine wires the full synchronization engine from configuration
func newEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	reportSchemaVersion(cfg.Database)

	repo, err := catalog.NewPGRepository(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	runs, err := runlog.NewPGStore(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	lock, err := synclock.NewPGService(pool, cfg.Sync.GetMaxRunDuration())
	if err != nil {
		pool.Close()
		return nil, err
	}

	remoteClient := remote.NewCatalogClient(
		httpclient.NewDefaultClient(cfg.Source.GetTimeout()),
		cfg.Source.Endpoint,
		cfg.Source.Refine,
		cfg.Source.GetPageDelay(),
	)

	manager, err := pkgsync.NewManager(
		remoteClient, repo, runs, lock, geocode.New(repo),
		pkgsync.Config{
			PageSize:     cfg.Source.GetPageSize(),
			ProgressStep: cfg.Sync.GetProgressStep(),
			Interval:     cfg.Sync.GetInterval(),
			AnchorTime:   cfg.Sync.GetAnchorTime(),
		},
	)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &engine{
		pool:    pool,
		remote:  remoteClient,
		repo:    repo,
		runs:    runs,
		manager: manager,
	}, nil
}

// Close releases the engine's database resources
func (e *engine) Close() {
	e.pool.Close()
}

// reportSchemaVersion logs the current migration state so an unmigrated
// database is visible at startup instead of failing on the first query.
func reportSchemaVersion(dbCfg *config.DatabaseConfig) {
	connString, err := dbCfg.GetConnectionString()
	if err != nil {
		return
	}
	version, dirty, err := database.GetVersion(connString)
	if err != nil {
		logger.Warnf("Unable to read schema version (run 'migrate up'?): %v", err)
		return
	}
	if dirty {
		logger.Warnf("Database schema is dirty at version %d", version)
		return
	}
	logger.Infof("Database schema version: %d", version)
}
