// Package sqlite provides a single-file persistence gateway backed by
// modernc.org/sqlite, for local runs without a Postgres server.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/JakeFAU/storefront-finder/internal/discovery"
	"github.com/JakeFAU/storefront-finder/internal/metrics"
	"github.com/JakeFAU/storefront-finder/internal/storage"
)

var _ storage.Backend = (*Store)(nil)

// Store persists stores and products in SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS shopify_stores (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	store_url TEXT NOT NULL UNIQUE,
	store_name TEXT NOT NULL,
	niche TEXT,
	country TEXT,
	city TEXT,
	last_scraped DATETIME,
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	p_name TEXT NOT NULL,
	p_desc TEXT,
	p_categ TEXT,
	p_niche TEXT,
	p_images TEXT,
	p_price TEXT,
	p_stock_status BOOLEAN,
	p_rating REAL,
	p_reviews INTEGER,
	p_seller TEXT,
	p_scraped_at DATETIME NOT NULL
);
`

const upsertStoreSQL = `
INSERT INTO shopify_stores (
	store_url, store_name, niche, country, city, last_scraped, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(store_url) DO UPDATE SET
	last_scraped = excluded.last_scraped,
	country = excluded.country,
	city = excluded.city
`

// New opens the database at dsn (a file path or ":memory:").
func New(dsn string, logger *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("storage.sqlite.path is required")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w: %w", discovery.ErrPersistence, err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger.Named("sqlite")}, nil
}

// EnsureSchema creates the stores and products tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w: %w", discovery.ErrPersistence, err)
	}
	return nil
}

// UpsertStores writes the batch in one transaction keyed by store_url,
// isolating each record behind a savepoint.
func (s *Store) UpsertStores(ctx context.Context, stores []discovery.DiscoveredStore) (discovery.UpsertReport, error) {
	var report discovery.UpsertReport
	if len(stores) == 0 {
		return report, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return discovery.UpsertReport{}, fmt.Errorf("begin upsert: %w: %w", discovery.ErrPersistence, err)
	}
	abort := func(step string, err error) (discovery.UpsertReport, error) {
		_ = tx.Rollback()
		return discovery.UpsertReport{}, fmt.Errorf("%s: %w: %w", step, discovery.ErrPersistence, err)
	}

	for _, st := range stores {
		if err := storage.ValidateStore(st); err != nil {
			s.logger.Warn("skipping invalid store record", zap.String("store_url", st.StoreURL), zap.Error(err))
			report.Skipped++
			continue
		}
		if _, err := tx.ExecContext(ctx, "SAVEPOINT upsert_store"); err != nil {
			return abort("savepoint", err)
		}
		_, err := tx.ExecContext(ctx, upsertStoreSQL,
			st.StoreURL, st.StoreName, st.Niche, st.Country, st.City, st.LastScraped.UTC(), st.CreatedAt.UTC())
		if err != nil {
			s.logger.Warn("store upsert failed; skipping", zap.String("store_url", st.StoreURL), zap.Error(err))
			report.Skipped++
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT upsert_store"); rbErr != nil {
				return abort("rollback to savepoint", rbErr)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT upsert_store"); err != nil {
			return abort("release savepoint", err)
		}
		report.Saved++
	}

	if err := tx.Commit(); err != nil {
		return discovery.UpsertReport{}, fmt.Errorf("commit upsert: %w: %w", discovery.ErrPersistence, err)
	}
	metrics.ObserveUpserts(report.Saved, report.Skipped)
	return report, nil
}

// InsertProduct appends one catalog row. Images are stored as a JSON array.
func (s *Store) InsertProduct(ctx context.Context, p discovery.Product) error {
	if err := storage.ValidateProduct(p); err != nil {
		return err
	}
	images := p.Images
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO products (
		p_name, p_desc, p_categ, p_niche, p_images, p_price, p_stock_status, p_rating, p_reviews, p_seller, p_scraped_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.Name,
		p.Description,
		p.Category,
		p.Niche,
		string(imagesJSON),
		p.Price.StringFixed(2),
		p.InStock,
		p.Rating,
		p.Reviews,
		p.Seller,
		p.ScrapedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert product: %w: %w", discovery.ErrPersistence, err)
	}
	return nil
}

// Stores lists persisted stores ordered by store_url.
func (s *Store) Stores(ctx context.Context) ([]discovery.DiscoveredStore, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT store_url, store_name, niche, country, city, last_scraped, created_at
	FROM shopify_stores ORDER BY store_url`)
	if err != nil {
		return nil, fmt.Errorf("query stores: %w", err)
	}
	defer rows.Close()

	var out []discovery.DiscoveredStore
	for rows.Next() {
		var st discovery.DiscoveredStore
		if err := rows.Scan(&st.StoreURL, &st.StoreName, &st.Niche, &st.Country, &st.City,
			&st.LastScraped, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stores: %w", err)
	}
	return out, nil
}

// CountProducts returns the number of product rows.
func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
