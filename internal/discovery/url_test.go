package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreKey(t *testing.T) {
	tests := map[string]string{
		"https://Cool-Mugs.myshopify.com/":            "https://cool-mugs.myshopify.com",
		"http://coolmugs.com/collections/all?page=2":  "https://coolmugs.com",
		"https://coolmugs.com:443/#top":               "https://coolmugs.com",
		"https://shop.coolmugs.com.":                  "https://shop.coolmugs.com",
		"https://127.0.0.1:8080/":                     "https://127.0.0.1:8080",
	}
	for in, want := range tests {
		got, err := StoreKey(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestStoreKey_Rejects(t *testing.T) {
	for _, in := range []string{"", "coolmugs.com", "mailto:a@b.c", "ftp://x.com", "https:///path"} {
		_, err := StoreKey(in)
		assert.ErrorIs(t, err, ErrDataShape, in)
	}
}

func TestStoreName(t *testing.T) {
	assert.Equal(t, "coolmugs", StoreName("https://CoolMugs.com"))
	assert.Equal(t, "cool-mugs", StoreName("https://cool-mugs.myshopify.com/products/x"))
	assert.Equal(t, "localhost:8080", StoreName("http://localhost:8080/"))
}

func TestBuildQuery(t *testing.T) {
	assert.Equal(t,
		"site:.myshopify.com pet toys -inurl:collections -inurl:products -inurl:cart -inurl:account"+
			" -inurl:checkout -inurl:search -inurl:blog -inurl:pages -inurl:help",
		BuildQuery("myshopify.com", " pet toys ", DefaultExclusions))
	assert.Equal(t, "candles -inurl:cart", BuildQuery("", "candles", []string{"cart", " "}))
}

func TestDefaultLocation(t *testing.T) {
	assert.Equal(t, LocationResult{Country: "US", City: "Unknown", Source: SourceDefault}, DefaultLocation("US"))
}
