package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Discovery.PageSize != 20 || cfg.Discovery.MaxResults != 100 {
		t.Fatalf("unexpected discovery defaults: %+v", cfg.Discovery)
	}
	if got := cfg.PageDelay(); got != 5*time.Second {
		t.Fatalf("expected 5s page delay, got %v", got)
	}
	if got := cfg.HTTPTimeout(); got != 10*time.Second {
		t.Fatalf("expected 10s timeout, got %v", got)
	}
	if len(cfg.Discovery.Exclusions) != 9 || cfg.Discovery.Exclusions[0] != "collections" {
		t.Fatalf("unexpected exclusions: %v", cfg.Discovery.Exclusions)
	}
	if cfg.Location.DefaultCountry != "US" || cfg.Storage.Backend != BackendSQLite {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
discovery:
  niche: pet toys
  max_results: 40
  page_size: 10
  page_delay_seconds: 0.5
  workers: 2
search:
  api_key: from-file
  region: ca
http:
  timeout_seconds: 30
  user_agent: custom-agent
  respect_robots: true
location:
  default_country: CA
storage:
  backend: postgres
  postgres:
    dsn: postgres://localhost/stores
proxy:
  enabled: true
  host: brd.superproxy.io
  port: 22225
  username: user
  password: pass
products:
  enabled: true
  max_pages: 3
logging:
  development: false
metrics:
  addr: ":9102"
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Discovery.Niche != "pet toys" || cfg.Discovery.PageSize != 10 || cfg.Discovery.Workers != 2 {
		t.Fatalf("expected discovery overrides to apply: %+v", cfg.Discovery)
	}
	if got := cfg.PageDelay(); got != 500*time.Millisecond {
		t.Fatalf("expected 500ms page delay, got %v", got)
	}
	if cfg.Search.APIKey != "from-file" || cfg.Search.Region != "ca" {
		t.Fatalf("expected search overrides: %+v", cfg.Search)
	}
	if !cfg.HTTP.RespectRobots || cfg.HTTP.UserAgent != "custom-agent" {
		t.Fatalf("expected http overrides: %+v", cfg.HTTP)
	}
	if cfg.Storage.Backend != BackendPostgres || cfg.Storage.Postgres.DSN != "postgres://localhost/stores" {
		t.Fatalf("expected storage overrides: %+v", cfg.Storage)
	}
	if !cfg.Proxy.Enabled || cfg.Proxy.Port != 22225 {
		t.Fatalf("expected proxy overrides: %+v", cfg.Proxy)
	}
	if !cfg.Products.Enabled || cfg.Products.MaxPages != 3 || cfg.Products.PageLimit != 250 {
		t.Fatalf("expected products overrides: %+v", cfg.Products)
	}
	if cfg.Logging.Development || cfg.Metrics.Addr != ":9102" {
		t.Fatalf("expected logging and metrics overrides: %+v %+v", cfg.Logging, cfg.Metrics)
	}
	if err := cfg.ValidateDiscovery(); err != nil {
		t.Fatalf("ValidateDiscovery() error = %v", err)
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("SERPAPI_KEY", "from-env")
	t.Setenv("STOREFINDER_DISCOVERY_NICHE", "candles")
	t.Setenv("STOREFINDER_STORAGE_BACKEND", "memory")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Search.APIKey != "from-env" {
		t.Fatalf("expected SERPAPI_KEY alias, got %q", cfg.Search.APIKey)
	}
	if cfg.Discovery.Niche != "candles" || cfg.Storage.Backend != BackendMemory {
		t.Fatalf("expected env overrides: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateDiscovery(t *testing.T) {
	cfg := Config{}
	if err := cfg.ValidateDiscovery(); err == nil || !strings.Contains(err.Error(), "discovery.niche") {
		t.Fatalf("expected niche error, got %v", err)
	}
	cfg.Discovery.Niche = "mugs"
	if err := cfg.ValidateDiscovery(); err == nil || !strings.Contains(err.Error(), "search.api_key") {
		t.Fatalf("expected api key error, got %v", err)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Discovery: DiscoveryConfig{MaxResults: 20, PageSize: 20, Workers: 1},
		Search:    SearchConfig{Provider: "serpapi"},
		HTTP:      HTTPConfig{TimeoutSeconds: 10},
		Location:  LocationConfig{DefaultCountry: "US"},
		Storage:   StorageConfig{Backend: BackendMemory},
		Products:  ProductsConfig{PageLimit: 250, MaxPages: 1},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "max results", mutate: func(c *Config) { c.Discovery.MaxResults = 0 }, want: "discovery.max_results"},
		{name: "page size", mutate: func(c *Config) { c.Discovery.PageSize = 101 }, want: "discovery.page_size"},
		{name: "workers", mutate: func(c *Config) { c.Discovery.Workers = 0 }, want: "discovery.workers"},
		{name: "delay", mutate: func(c *Config) { c.Discovery.PageDelaySeconds = -1 }, want: "discovery.page_delay_seconds"},
		{name: "provider", mutate: func(c *Config) { c.Search.Provider = "bing" }, want: "search.provider"},
		{name: "timeout", mutate: func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, want: "http.timeout_seconds"},
		{name: "country", mutate: func(c *Config) { c.Location.DefaultCountry = " " }, want: "location.default_country"},
		{name: "postgres dsn", mutate: func(c *Config) { c.Storage.Backend = BackendPostgres }, want: "storage.postgres.dsn"},
		{name: "sqlite path", mutate: func(c *Config) { c.Storage.Backend = BackendSQLite }, want: "storage.sqlite.path"},
		{name: "backend", mutate: func(c *Config) { c.Storage.Backend = "mysql" }, want: "storage.backend"},
		{name: "proxy", mutate: func(c *Config) { c.Proxy.Enabled = true }, want: "proxy.host"},
		{name: "page limit", mutate: func(c *Config) { c.Products.PageLimit = 500 }, want: "products.page_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
