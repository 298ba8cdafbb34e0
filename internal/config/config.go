// Package config loads and validates storefront finder configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/storefront-finder/internal/proxy"
)

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Search    SearchConfig    `mapstructure:"search"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Location  LocationConfig  `mapstructure:"location"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Proxy     proxy.Config    `mapstructure:"proxy"`
	Products  ProductsConfig  `mapstructure:"products"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// DiscoveryConfig governs search pagination and per-result fan-out.
type DiscoveryConfig struct {
	Niche            string   `mapstructure:"niche"`
	MaxResults       int      `mapstructure:"max_results"`
	PageSize         int      `mapstructure:"page_size"`
	PageDelaySeconds float64  `mapstructure:"page_delay_seconds"`
	Workers          int      `mapstructure:"workers"`
	NativeDomain     string   `mapstructure:"native_domain"`
	Exclusions       []string `mapstructure:"exclusions"`
}

// SearchConfig configures the search provider.
type SearchConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	Endpoint     string `mapstructure:"endpoint"`
	GoogleDomain string `mapstructure:"google_domain"`
	Region       string `mapstructure:"region"`
	Language     string `mapstructure:"language"`
	Filter       int    `mapstructure:"filter"`
}

// HTTPConfig configures storefront fetches.
type HTTPConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	RespectRobots  bool    `mapstructure:"respect_robots"`
	MaxBodyBytes   int     `mapstructure:"max_body_bytes"`
	PerHostRPS     float64 `mapstructure:"per_host_rps"`
	PerHostBurst   int     `mapstructure:"per_host_burst"`
}

// LocationConfig configures location inference.
type LocationConfig struct {
	DefaultCountry string `mapstructure:"default_country"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Backend     string         `mapstructure:"backend"`
	AutoMigrate bool           `mapstructure:"auto_migrate"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
	SQLite      SQLiteConfig   `mapstructure:"sqlite"`
}

// PostgresConfig controls the pgx pool.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// SQLiteConfig points at the database file.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// ProductsConfig controls catalog ingestion after discovery.
type ProductsConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	PageLimit int  `mapstructure:"page_limit"`
	MaxPages  int  `mapstructure:"max_pages"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
}

// MetricsConfig enables the ops server when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STOREFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindAliases(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("discovery.niche", "")
	v.SetDefault("discovery.max_results", 100)
	v.SetDefault("discovery.page_size", 20)
	v.SetDefault("discovery.page_delay_seconds", 5)
	v.SetDefault("discovery.workers", 4)
	v.SetDefault("discovery.native_domain", "myshopify.com")
	v.SetDefault("discovery.exclusions", []string{
		"collections", "products", "cart", "account", "checkout", "search", "blog", "pages", "help",
	})
	v.SetDefault("search.provider", "serpapi")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.endpoint", "https://serpapi.com/search.json")
	v.SetDefault("search.google_domain", "google.com")
	v.SetDefault("search.region", "us")
	v.SetDefault("search.language", "en")
	v.SetDefault("search.filter", 0)
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("http.max_body_bytes", 5<<20)
	v.SetDefault("http.per_host_rps", 2)
	v.SetDefault("http.per_host_burst", 2)
	v.SetDefault("location.default_country", "US")
	v.SetDefault("storage.backend", BackendSQLite)
	v.SetDefault("storage.auto_migrate", true)
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.max_conns", 4)
	v.SetDefault("storage.postgres.min_conns", 0)
	v.SetDefault("storage.sqlite.path", "storefinder.db")
	v.SetDefault("proxy.enabled", false)
	v.SetDefault("proxy.scheme", "http")
	v.SetDefault("proxy.host", "")
	v.SetDefault("proxy.port", 0)
	v.SetDefault("proxy.username", "")
	v.SetDefault("proxy.password", "")
	v.SetDefault("products.enabled", false)
	v.SetDefault("products.page_limit", 250)
	v.SetDefault("products.max_pages", 1)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("metrics.addr", "")
}

// bindAliases lets well-known unprefixed variables feed their keys.
func bindAliases(v *viper.Viper) error {
	aliases := map[string][]string{
		"search.api_key":       {"STOREFINDER_SEARCH_API_KEY", "SERPAPI_KEY"},
		"storage.postgres.dsn": {"STOREFINDER_STORAGE_POSTGRES_DSN", "DATABASE_URL"},
	}
	for key, envs := range aliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Discovery.MaxResults <= 0 {
		return fmt.Errorf("discovery.max_results must be > 0")
	}
	if c.Discovery.PageSize <= 0 || c.Discovery.PageSize > 100 {
		return fmt.Errorf("discovery.page_size must be between 1 and 100")
	}
	if c.Discovery.Workers <= 0 {
		return fmt.Errorf("discovery.workers must be > 0")
	}
	if c.Discovery.PageDelaySeconds < 0 {
		return fmt.Errorf("discovery.page_delay_seconds must be >= 0")
	}
	if c.Search.Provider != "serpapi" {
		return fmt.Errorf("search.provider %q is not supported", c.Search.Provider)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.PerHostRPS < 0 {
		return fmt.Errorf("http.per_host_rps must be >= 0")
	}
	if strings.TrimSpace(c.Location.DefaultCountry) == "" {
		return fmt.Errorf("location.default_country must be set")
	}
	switch c.Storage.Backend {
	case BackendPostgres:
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn must be set for the postgres backend")
		}
	case BackendSQLite:
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path must be set for the sqlite backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	if c.Proxy.Enabled && (c.Proxy.Host == "" || c.Proxy.Port <= 0) {
		return fmt.Errorf("proxy.host and proxy.port must be set when the proxy is enabled")
	}
	if c.Products.PageLimit <= 0 || c.Products.PageLimit > 250 {
		return fmt.Errorf("products.page_limit must be between 1 and 250")
	}
	if c.Products.MaxPages <= 0 {
		return fmt.Errorf("products.max_pages must be > 0")
	}
	return nil
}

// ValidateDiscovery checks the settings only a discovery run needs.
func (c Config) ValidateDiscovery() error {
	if strings.TrimSpace(c.Discovery.Niche) == "" {
		return fmt.Errorf("discovery.niche must be set")
	}
	if c.Search.APIKey == "" {
		return fmt.Errorf("search.api_key (or SERPAPI_KEY) must be set")
	}
	return nil
}

// HTTPTimeout converts the fetch timeout to a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// PageDelay converts the search pacing delay to a duration.
func (c Config) PageDelay() time.Duration {
	return time.Duration(c.Discovery.PageDelaySeconds * float64(time.Second))
}
