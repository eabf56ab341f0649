package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server  ServerConfig
	App     AppConfig
	Store   StoreConfig
	Catalog CatalogConfig
	Cache   CacheConfig
	Game    GameConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"culturehub-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	AdminKey    string `envconfig:"ADMIN_KEY" default:""` // Required for /admin endpoints
}

// StoreConfig selects the document store holding accounts, trade codes,
// reviews and the transfer ledger.
type StoreConfig struct {
	Type          string `envconfig:"STORE_TYPE" default:"memory"` // memory or mongodb
	MongoURI      string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017/?replicaSet=rs0"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"culturehub"`
}

// CatalogConfig selects where cultural sites are read from. "store" keeps
// sites in the document store; sqlite, postgres and mysql use a SQL table.
type CatalogConfig struct {
	Type string `envconfig:"CATALOG_TYPE" default:"store"`
	Path string `envconfig:"CATALOG_DB_PATH" default:"./data/catalog.db"`
	// PostgreSQL / MySQL settings
	Host     string `envconfig:"CATALOG_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"CATALOG_DB_PORT" default:"5432"`
	Name     string `envconfig:"CATALOG_DB_NAME" default:"culturehub"`
	User     string `envconfig:"CATALOG_DB_USER" default:"postgres"`
	Password string `envconfig:"CATALOG_DB_PASS" default:""`
	SSLMode  string `envconfig:"CATALOG_DB_SSLMODE" default:"disable"`

	CacheTTL time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"10m"`
}

// CacheConfig holds cache settings used for sessions and catalog lookups.
type CacheConfig struct {
	Type string `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix     string `envconfig:"REDIS_KEY_PREFIX" default:"culturehub:"`
}

// GameConfig holds the collection and trading rules.
type GameConfig struct {
	CollectRadius      float64       `envconfig:"COLLECT_RADIUS_METERS" default:"1000"`
	MaxCollectRadius   float64       `envconfig:"COLLECT_MAX_RADIUS_METERS" default:"50000"`
	TradeCodeTTL       time.Duration `envconfig:"TRADE_CODE_TTL" default:"1h"`
	TradeCodeReapEvery time.Duration `envconfig:"TRADE_CODE_REAP_INTERVAL" default:"10m"`
	SessionTTL         time.Duration `envconfig:"SESSION_TTL" default:"168h"`
	Placeholders       []string      `envconfig:"GUARD_PLACEHOLDERS" default:"unknown,uncategorized"`
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *CatalogConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (c *CatalogConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Store.Type) {
	case "memory", "mongodb", "mongo":
	default:
		return fmt.Errorf("unsupported STORE_TYPE %q", c.Store.Type)
	}
	switch strings.ToLower(c.Catalog.Type) {
	case "store", "sqlite", "postgres", "postgresql", "mysql":
	default:
		return fmt.Errorf("unsupported CATALOG_TYPE %q", c.Catalog.Type)
	}
	if c.Game.CollectRadius <= 0 || c.Game.CollectRadius > c.Game.MaxCollectRadius {
		return fmt.Errorf("COLLECT_RADIUS_METERS must be in (0, %v]", c.Game.MaxCollectRadius)
	}
	if c.Game.TradeCodeTTL <= 0 {
		return fmt.Errorf("TRADE_CODE_TTL must be positive")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
