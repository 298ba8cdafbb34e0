package storage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/JakeFAU/storefront-finder/internal/discovery"
)

// MockBackend is a mock implementation of the Backend interface for testing.
type MockBackend struct {
	mock.Mock
}

// UpsertStores is the mock implementation of the UpsertStores method.
func (m *MockBackend) UpsertStores(ctx context.Context, stores []discovery.DiscoveredStore) (discovery.UpsertReport, error) {
	args := m.Called(ctx, stores)
	report, _ := args.Get(0).(discovery.UpsertReport)
	return report, args.Error(1) //nolint:wrapcheck
}

// InsertProduct is the mock implementation of the InsertProduct method.
func (m *MockBackend) InsertProduct(ctx context.Context, product discovery.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0) //nolint:wrapcheck
}

// EnsureSchema is the mock implementation of the EnsureSchema method.
func (m *MockBackend) EnsureSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0) //nolint:wrapcheck
}

// Close is the mock implementation of the Close method.
func (m *MockBackend) Close() error {
	args := m.Called()
	return args.Error(0) //nolint:wrapcheck
}
