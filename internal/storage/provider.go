// Package storage defines the persistence gateway shared by the store and
// product backends (Postgres, SQLite and in-memory).
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JakeFAU/storefront-finder/internal/discovery"
)

// Backend is a persistence gateway for discovered stores and catalog products.
type Backend interface {
	discovery.StoreRepository
	discovery.ProductRepository
	// EnsureSchema creates the tables when they do not exist.
	EnsureSchema(ctx context.Context) error
	Close() error
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("storeurl", func(fl validator.FieldLevel) bool {
		return discovery.IsHTTPURL(fl.Field().String())
	})
	return v
}

type storeView struct {
	StoreURL  string `validate:"notblank,storeurl"`
	StoreName string `validate:"notblank"`
}

type productView struct {
	Name string `validate:"notblank"`
}

// ValidateStore checks the shape of a record before it is written. Records
// that fail are skipped rather than aborting the batch.
func ValidateStore(s discovery.DiscoveredStore) error {
	if err := validate.Struct(storeView{StoreURL: s.StoreURL, StoreName: s.StoreName}); err != nil {
		return shapeError("store "+s.StoreURL, err)
	}
	return nil
}

// ValidateProduct requires a product name.
func ValidateProduct(p discovery.Product) error {
	if err := validate.Struct(productView{Name: p.Name}); err != nil {
		return shapeError("product", err)
	}
	return nil
}

func shapeError(subject string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: validate %s: %w", discovery.ErrDataShape, subject, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", e.Field(), e.Tag()))
	}
	return fmt.Errorf("%w: %s: %s", discovery.ErrDataShape, strings.TrimSpace(subject), strings.Join(msgs, ", "))
}
