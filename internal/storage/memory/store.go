// Package memory provides an in-process persistence gateway for tests and
// dry runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/storefront-finder/internal/discovery"
	"github.com/JakeFAU/storefront-finder/internal/metrics"
	"github.com/JakeFAU/storefront-finder/internal/storage"
)

var _ storage.Backend = (*Store)(nil)

// Store keeps stores keyed by URL and products in insertion order.
type Store struct {
	mu       sync.RWMutex
	stores   map[string]discovery.DiscoveredStore
	products []discovery.Product
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{stores: make(map[string]discovery.DiscoveredStore)}
}

// EnsureSchema is a no-op.
func (s *Store) EnsureSchema(context.Context) error { return nil }

// UpsertStores applies the same conflict rule as the SQL backends: an
// existing key only has last_scraped, country and city replaced.
func (s *Store) UpsertStores(ctx context.Context, stores []discovery.DiscoveredStore) (discovery.UpsertReport, error) {
	var report discovery.UpsertReport
	if err := ctx.Err(); err != nil {
		return report, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range stores {
		if err := storage.ValidateStore(st); err != nil {
			report.Skipped++
			continue
		}
		if existing, ok := s.stores[st.StoreURL]; ok {
			existing.LastScraped = st.LastScraped
			existing.Country = st.Country
			existing.City = st.City
			s.stores[st.StoreURL] = existing
		} else {
			s.stores[st.StoreURL] = st
		}
		report.Saved++
	}
	metrics.ObserveUpserts(report.Saved, report.Skipped)
	return report, nil
}

// InsertProduct appends a product.
func (s *Store) InsertProduct(_ context.Context, p discovery.Product) error {
	if err := storage.ValidateProduct(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append(s.products, p)
	return nil
}

// Stores returns a snapshot of persisted stores ordered by URL.
func (s *Store) Stores() []discovery.DiscoveredStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]discovery.DiscoveredStore, 0, len(s.stores))
	for _, st := range s.stores {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StoreURL < out[j].StoreURL })
	return out
}

// Products returns a snapshot of inserted products.
func (s *Store) Products() []discovery.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]discovery.Product(nil), s.products...)
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
