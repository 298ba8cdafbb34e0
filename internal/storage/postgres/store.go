// Package postgres provides the Postgres-backed persistence gateway.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/storefront-finder/internal/discovery"
	"github.com/JakeFAU/storefront-finder/internal/metrics"
	"github.com/JakeFAU/storefront-finder/internal/storage"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type txPool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store writes stores and products into Postgres.
type Store struct {
	pool   txPool
	logger *zap.Logger
}

const (
	savepoint = "upsert_store"

	upsertStoreSQL = `
INSERT INTO shopify_stores (
	store_url,
	store_name,
	niche,
	country,
	city,
	last_scraped,
	created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7
)
ON CONFLICT (store_url) DO UPDATE SET
	last_scraped = EXCLUDED.last_scraped,
	country = EXCLUDED.country,
	city = EXCLUDED.city`

	insertProductSQL = `
INSERT INTO products (
	p_name,
	p_desc,
	p_categ,
	p_niche,
	p_images,
	p_price,
	p_stock_status,
	p_rating,
	p_reviews,
	p_seller,
	p_scraped_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`
)

var schemaSQL = []string{
	`CREATE TABLE IF NOT EXISTS shopify_stores (
	id BIGSERIAL PRIMARY KEY,
	store_url TEXT NOT NULL UNIQUE,
	store_name TEXT NOT NULL,
	niche TEXT,
	country TEXT,
	city TEXT,
	last_scraped TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS products (
	id BIGSERIAL PRIMARY KEY,
	p_name TEXT NOT NULL,
	p_desc TEXT,
	p_categ TEXT,
	p_niche TEXT,
	p_images TEXT[],
	p_price NUMERIC(12,2),
	p_stock_status BOOLEAN,
	p_rating DOUBLE PRECISION,
	p_reviews INTEGER,
	p_seller TEXT,
	p_scraped_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w: %w", discovery.ErrPersistence, err)
	}
	return NewWithPool(pool, logger)
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool txPool, logger *zap.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger.Named("postgres")}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// EnsureSchema creates the stores and products tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaSQL {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w: %w", discovery.ErrPersistence, err)
		}
	}
	return nil
}

// UpsertStores writes the batch in one transaction keyed by store_url. On
// conflict only last_scraped, country and city change. Invalid records and
// failing statements are skipped; each statement runs under a savepoint so a
// failure does not poison the rest of the transaction. A failure to begin,
// set a savepoint or commit aborts the batch with ErrPersistence.
func (s *Store) UpsertStores(ctx context.Context, stores []discovery.DiscoveredStore) (discovery.UpsertReport, error) {
	var report discovery.UpsertReport
	if len(stores) == 0 {
		return report, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return discovery.UpsertReport{}, fmt.Errorf("begin upsert: %w: %w", discovery.ErrPersistence, err)
	}

	for _, st := range stores {
		if err := storage.ValidateStore(st); err != nil {
			s.logger.Warn("skipping invalid store record", zap.String("store_url", st.StoreURL), zap.Error(err))
			report.Skipped++
			continue
		}
		if _, err := tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
			return discovery.UpsertReport{}, s.abort(ctx, tx, "savepoint", err)
		}
		_, err := tx.Exec(ctx, upsertStoreSQL,
			st.StoreURL,
			st.StoreName,
			st.Niche,
			st.Country,
			st.City,
			st.LastScraped,
			st.CreatedAt,
		)
		if err != nil {
			s.logger.Warn("store upsert failed; skipping", zap.String("store_url", st.StoreURL), zap.Error(err))
			report.Skipped++
			if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
				return discovery.UpsertReport{}, s.abort(ctx, tx, "rollback to savepoint", rbErr)
			}
			continue
		}
		if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
			return discovery.UpsertReport{}, s.abort(ctx, tx, "release savepoint", err)
		}
		report.Saved++
	}

	if err := tx.Commit(ctx); err != nil {
		return discovery.UpsertReport{}, fmt.Errorf("commit upsert: %w: %w", discovery.ErrPersistence, err)
	}
	metrics.ObserveUpserts(report.Saved, report.Skipped)
	return report, nil
}

func (s *Store) abort(ctx context.Context, tx pgx.Tx, step string, err error) error {
	if rbErr := tx.Rollback(ctx); rbErr != nil {
		s.logger.Warn("rollback failed", zap.Error(rbErr))
	}
	return fmt.Errorf("%s: %w: %w", step, discovery.ErrPersistence, err)
}

// InsertProduct writes one catalog row. Products are append-only.
func (s *Store) InsertProduct(ctx context.Context, p discovery.Product) error {
	if err := storage.ValidateProduct(p); err != nil {
		return err
	}
	images := p.Images
	if images == nil {
		images = []string{}
	}
	_, err := s.pool.Exec(ctx, insertProductSQL,
		p.Name,
		p.Description,
		p.Category,
		p.Niche,
		images,
		p.Price.StringFixed(2),
		p.InStock,
		p.Rating,
		p.Reviews,
		p.Seller,
		p.ScrapedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w: %w", discovery.ErrPersistence, err)
	}
	return nil
}
