package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for databridge.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	// Database holds connection settings for the catalog we introspect.
	Database DatabaseConfig `yaml:"database"`

	// Statistics holds statistics-cache settings.
	Statistics StatisticsConfig `yaml:"statistics"`

	// Optimizer holds query-plan optimizer settings.
	Optimizer OptimizerConfig `yaml:"optimizer"`

	// RelationshipsCSV is an optional CSV file of extra relationship edges
	// merged into the discovered schema graph.
	RelationshipsCSV string `yaml:"relationships_csv" env:"RELATIONSHIPS_CSV" env-default:""`
}

// Supported database drivers.
const (
	DriverPostgres  = "postgres"
	DriverSQLServer = "sqlserver"
)

// DatabaseConfig holds connection settings for the introspected database.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DB_DRIVER" env-default:"sqlserver"`
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DB_PORT" env-default:"1433"`
	User     string `yaml:"user" env:"DB_USER" env-default:"sa"`
	Password string `yaml:"-" env:"DB_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"DB_NAME" env-default:"master"`
	Schema   string `yaml:"schema" env:"DB_SCHEMA" env-default:"dbo"`
	SSLMode  string `yaml:"ssl_mode" env:"DB_SSLMODE" env-default:"disable"`

	// ExtractTimeoutSeconds bounds each catalog-extraction query, the only
	// blocking I/O in the pipeline.
	ExtractTimeoutSeconds int `yaml:"extract_timeout_seconds" env:"DB_EXTRACT_TIMEOUT_SECONDS" env-default:"30"`
}

// StatisticsConfig holds statistics-cache settings.
type StatisticsConfig struct {
	// CacheTTLHours is how long cached table statistics stay valid.
	CacheTTLHours int `yaml:"cache_ttl_hours" env:"STATS_CACHE_TTL_HOURS" env-default:"24"`
}

// Disconnected-join-graph policies.
const (
	DisconnectedAttach = "attach" // join unconnected tables arbitrarily, flag in rationale
	DisconnectedError  = "error"  // fail plan generation
)

// OptimizerConfig holds query-plan optimizer settings.
type OptimizerConfig struct {
	// Enabled toggles statistics-driven optimization. When false, SQL
	// generation uses the basic recursive join renderer.
	Enabled bool `yaml:"enabled" env:"OPTIMIZER_ENABLED" env-default:"true"`

	// OnDisconnected selects how a disconnected join graph is handled:
	// "attach" (default) or "error".
	OnDisconnected string `yaml:"on_disconnected" env:"OPTIMIZER_ON_DISCONNECTED" env-default:"attach"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time and set on the
// returned Config. Secrets (DB_PASSWORD) must come from environment
// variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that cleanenv tags cannot express.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLServer:
	default:
		return fmt.Errorf("invalid database.driver %q: must be %q or %q",
			c.Database.Driver, DriverPostgres, DriverSQLServer)
	}

	switch c.Optimizer.OnDisconnected {
	case DisconnectedAttach, DisconnectedError:
	default:
		return fmt.Errorf("invalid optimizer.on_disconnected %q: must be %q or %q",
			c.Optimizer.OnDisconnected, DisconnectedAttach, DisconnectedError)
	}

	if c.Statistics.CacheTTLHours <= 0 {
		return fmt.Errorf("statistics.cache_ttl_hours must be positive, got %d", c.Statistics.CacheTTLHours)
	}

	return nil
}

// ConnectionString returns a driver-appropriate connection string.
func (c *DatabaseConfig) ConnectionString() string {
	switch c.Driver {
	case DriverPostgres:
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
		)
	case DriverSQLServer:
		return fmt.Sprintf(
			"sqlserver://%s:%s@%s:%d?database=%s",
			c.User, c.Password, c.Host, c.Port, c.Database,
		)
	default:
		return ""
	}
}
