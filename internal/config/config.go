// Package config provides configuration management for the library search service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the library search service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Contact contains the operator contact details sent to polite APIs.
	Contact ContactConfig `mapstructure:"contact"`
	// Aggregator contains aggregation pipeline tuning.
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	// Providers contains per-source API configurations.
	Providers ProvidersConfig `mapstructure:"providers"`
	// Enrichment contains Unpaywall open access enrichment settings.
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response. Aggregated
	// searches can take a while, so this exceeds the provider timeout.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	// Default is "require" for production security. Use "disable" only for local development.
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 25).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 5).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// ContactConfig holds the operator contact details. Several upstream APIs
// (OpenAlex, CrossRef, Unpaywall) route identified traffic through faster,
// more reliable pools.
type ContactConfig struct {
	// Email is the contact email address (loaded from MINERVA_CONTACT_EMAIL).
	Email string `mapstructure:"-"`
}

// AggregatorConfig holds aggregation pipeline tuning.
type AggregatorConfig struct {
	// ProviderTimeout is the per-provider deadline during fan-out.
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	// TitleSimilarityThreshold is the fuzzy-title dedup cutoff in (0,1].
	TitleSimilarityThreshold float64 `mapstructure:"title_similarity_threshold"`
	// RecentCutoff is the publication year granting the top recency bonus.
	RecentCutoff int `mapstructure:"recent_cutoff"`
	// MidCutoff is the publication year granting the middle recency bonus.
	MidCutoff int `mapstructure:"mid_cutoff"`
	// OldCutoff is the publication year granting the smallest recency bonus.
	OldCutoff int `mapstructure:"old_cutoff"`
}

// ProvidersConfig holds configuration for all metadata source APIs.
type ProvidersConfig struct {
	// OpenAlex contains OpenAlex API settings.
	OpenAlex ProviderConfig `mapstructure:"openalex"`
	// CrossRef contains CrossRef API settings.
	CrossRef ProviderConfig `mapstructure:"crossref"`
	// ArXiv contains arXiv API settings.
	ArXiv ProviderConfig `mapstructure:"arxiv"`
	// DOAJ contains Directory of Open Access Journals API settings.
	DOAJ ProviderConfig `mapstructure:"doaj"`
	// PMC contains PubMed Central E-utilities settings.
	PMC ProviderConfig `mapstructure:"pmc"`
	// BioRxiv contains bioRxiv/medRxiv details API settings.
	BioRxiv ProviderConfig `mapstructure:"biorxiv"`
	// OpenTextbook contains Open Textbook Library catalog settings.
	OpenTextbook ProviderConfig `mapstructure:"opentextbook"`
}

// ProviderConfig holds configuration for a single metadata source API.
type ProviderConfig struct {
	// Enabled controls whether this source is used.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the API key, where the source supports one (loaded from
	// environment variable, e.g. MINERVA_PROVIDERS_PMC_API_KEY).
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// MaxResults is the maximum results per query.
	MaxResults int `mapstructure:"max_results"`
	// CacheTTL is how long catalog-based sources keep their catalog cached.
	// Ignored by sources that query per request.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// EnrichmentConfig holds Unpaywall open access enrichment settings.
type EnrichmentConfig struct {
	// Enabled controls whether the enrichment pass runs.
	Enabled bool `mapstructure:"enabled"`
	// BaseURL is the Unpaywall API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for lookup calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// BatchSize is how many DOI lookups run concurrently per batch.
	BatchSize int `mapstructure:"batch_size"`
	// BatchPause is the pause between lookup batches.
	BatchPause time.Duration `mapstructure:"batch_pause"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("MINERVA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/minerva-library")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.Contact.Email = os.Getenv("MINERVA_CONTACT_EMAIL")

	// Only NCBI hands out API keys today; the rest are kept for parity.
	cfg.Providers.OpenAlex.APIKey = os.Getenv("MINERVA_PROVIDERS_OPENALEX_API_KEY")
	cfg.Providers.CrossRef.APIKey = os.Getenv("MINERVA_PROVIDERS_CROSSREF_API_KEY")
	cfg.Providers.PMC.APIKey = os.Getenv("MINERVA_PROVIDERS_PMC_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "minerva")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "minerva_library")
	// Default to "require" for production security. Use MINERVA_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Aggregator defaults
	v.SetDefault("aggregator.provider_timeout", "30s")
	v.SetDefault("aggregator.title_similarity_threshold", 0.92)
	v.SetDefault("aggregator.recent_cutoff", 2023)
	v.SetDefault("aggregator.mid_cutoff", 2020)
	v.SetDefault("aggregator.old_cutoff", 2015)

	// Provider defaults - OpenAlex
	v.SetDefault("providers.openalex.enabled", true)
	v.SetDefault("providers.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("providers.openalex.timeout", "30s")
	v.SetDefault("providers.openalex.rate_limit", 10.0)
	v.SetDefault("providers.openalex.max_results", 200)

	// Provider defaults - CrossRef
	v.SetDefault("providers.crossref.enabled", true)
	v.SetDefault("providers.crossref.base_url", "https://api.crossref.org")
	v.SetDefault("providers.crossref.timeout", "30s")
	v.SetDefault("providers.crossref.rate_limit", 5.0)
	v.SetDefault("providers.crossref.max_results", 100)

	// Provider defaults - arXiv
	v.SetDefault("providers.arxiv.enabled", true)
	v.SetDefault("providers.arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("providers.arxiv.timeout", "30s")
	v.SetDefault("providers.arxiv.rate_limit", 0.33) // arXiv asks for one request per 3 seconds
	v.SetDefault("providers.arxiv.max_results", 100)

	// Provider defaults - DOAJ
	v.SetDefault("providers.doaj.enabled", true)
	v.SetDefault("providers.doaj.base_url", "https://doaj.org/api")
	v.SetDefault("providers.doaj.timeout", "30s")
	v.SetDefault("providers.doaj.rate_limit", 2.0)
	v.SetDefault("providers.doaj.max_results", 100)

	// Provider defaults - PMC
	v.SetDefault("providers.pmc.enabled", true)
	v.SetDefault("providers.pmc.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("providers.pmc.timeout", "30s")
	v.SetDefault("providers.pmc.rate_limit", 3.0) // NCBI recommends max 3 req/sec without API key
	v.SetDefault("providers.pmc.max_results", 100)

	// Provider defaults - bioRxiv/medRxiv
	v.SetDefault("providers.biorxiv.enabled", true)
	v.SetDefault("providers.biorxiv.base_url", "https://api.biorxiv.org/details")
	v.SetDefault("providers.biorxiv.timeout", "30s")
	v.SetDefault("providers.biorxiv.rate_limit", 5.0)
	v.SetDefault("providers.biorxiv.max_results", 100)

	// Provider defaults - Open Textbook Library
	v.SetDefault("providers.opentextbook.enabled", true)
	v.SetDefault("providers.opentextbook.base_url", "https://open.umn.edu/opentextbooks")
	v.SetDefault("providers.opentextbook.timeout", "30s")
	v.SetDefault("providers.opentextbook.rate_limit", 1.0)
	v.SetDefault("providers.opentextbook.max_results", 100)
	v.SetDefault("providers.opentextbook.cache_ttl", "1h")

	// Enrichment defaults
	v.SetDefault("enrichment.enabled", true)
	v.SetDefault("enrichment.base_url", "https://api.unpaywall.org/v2")
	v.SetDefault("enrichment.timeout", "10s")
	v.SetDefault("enrichment.rate_limit", 10.0)
	v.SetDefault("enrichment.batch_size", 10)
	v.SetDefault("enrichment.batch_pause", "100ms")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate aggregator tuning
	if c.Aggregator.ProviderTimeout <= 0 {
		return fmt.Errorf("aggregator provider_timeout must be positive")
	}
	if t := c.Aggregator.TitleSimilarityThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("aggregator title_similarity_threshold must be in (0,1], got %v", t)
	}
	if c.Aggregator.RecentCutoff < c.Aggregator.MidCutoff || c.Aggregator.MidCutoff < c.Aggregator.OldCutoff {
		return fmt.Errorf("aggregator recency cutoffs must descend: recent (%d) >= mid (%d) >= old (%d)",
			c.Aggregator.RecentCutoff, c.Aggregator.MidCutoff, c.Aggregator.OldCutoff)
	}

	// Unpaywall rejects unidentified traffic.
	if c.Enrichment.Enabled && c.Contact.Email == "" {
		return fmt.Errorf("enrichment requires MINERVA_CONTACT_EMAIL to be set")
	}
	if c.Enrichment.BatchSize < 0 {
		return fmt.Errorf("enrichment batch_size must not be negative")
	}

	return nil
}
