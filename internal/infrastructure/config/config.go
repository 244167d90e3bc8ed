// Package config loads server settings from the environment. A .env file in
// the working directory, when present, is read first.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/pixel-analytics/pixel/internal/core/domain"
)

// Adapters lists the accepted PIXEL_ADAPTER values.
var Adapters = []string{"console", "memory", "postgres", "sqlite", "mongo", "redis", "azqueue", "aztables", "june"}

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Pixel    PixelConfig
	HTTP     HTTPConfig
	Metrics  MetricsConfig
	OTel     OTelConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	SQLite   SQLiteConfig
	Azure    AzureConfig
	June     JuneConfig
}

type PixelConfig struct {
	JWTSecret         string        `env:"PIXEL_JWT_SECRET"`
	TokenTTL          time.Duration `env:"PIXEL_TOKEN_TTL,           default=8760h"`
	Adapter           string        `env:"PIXEL_ADAPTER,             default=console"`
	PersistOnIdentify bool          `env:"PIXEL_PERSIST_ON_IDENTIFY, default=false"`
	AsyncWorkers      int           `env:"PIXEL_ASYNC_WORKERS,       default=0"`
}

type HTTPConfig struct {
	EventsPath     string   `env:"PIXEL_EVENTS_PATH, default=/api/events"`
	AllowedOrigins []string `env:"PIXEL_ALLOWED_ORIGINS"`
}

type MetricsConfig struct {
	User         string `env:"METRICS_USER"`
	PasswordHash string `env:"METRICS_PASSWORD_HASH"`
}

type OTelConfig struct {
	Enabled     bool   `env:"OTEL_ENABLED,      default=false"`
	ServiceName string `env:"OTEL_SERVICE_NAME, default=pixel"`
	// Exporter is "log" (zerolog debug entries) or "stdout" (JSON on stdout).
	Exporter string `env:"OTEL_EXPORTER, default=log"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=pixel"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
	Stream   string `env:"REDIS_STREAM,   default=pixel:events"`
}

type PostgresConfig struct {
	URL      string `env:"POSTGRES_URL, default=postgres://localhost:5432/pixel?sslmode=disable"`
	MaxConns int32  `env:"POSTGRES_MAX_CONNS, default=10"`
}

type SQLiteConfig struct {
	Path       string `env:"SQLITE_PATH, default=pixel.db"`
	TursoURL   string `env:"TURSO_DATABASE_URL"`
	TursoToken string `env:"TURSO_AUTH_TOKEN"`
}

type AzureConfig struct {
	ConnectionString string `env:"AZURE_STORAGE_CONNECTION_STRING"`
	QueueName        string `env:"AZURE_QUEUE_NAME,   default=pixel-events"`
	UsersTable       string `env:"AZURE_USERS_TABLE,  default=PixelUsers"`
	EventsTable      string `env:"AZURE_EVENTS_TABLE, default=PixelEvents"`
}

type JuneConfig struct {
	WriteKey string `env:"JUNE_WRITE_KEY"`
	Endpoint string `env:"JUNE_ENDPOINT, default=https://api.june.so/sdk"`
}

// Load reads .env (if any) and then the process environment.
func Load(ctx context.Context, dotenvFiles ...string) (*Config, error) {
	if err := godotenv.Load(dotenvFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom processes cfg from an arbitrary lookuper and validates it.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Pixel.JWTSecret == "" {
		return fmt.Errorf("config: PIXEL_JWT_SECRET: %w", domain.ErrMissingSecret)
	}
	if !slices.Contains(Adapters, c.Pixel.Adapter) {
		return fmt.Errorf("config: unknown PIXEL_ADAPTER %q (want one of %v)", c.Pixel.Adapter, Adapters)
	}
	if c.Pixel.TokenTTL <= 0 {
		return fmt.Errorf("config: PIXEL_TOKEN_TTL must be positive")
	}
	if c.Pixel.AsyncWorkers < 0 {
		return fmt.Errorf("config: PIXEL_ASYNC_WORKERS must not be negative")
	}
	if c.OTel.Exporter != "log" && c.OTel.Exporter != "stdout" {
		return fmt.Errorf("config: unknown OTEL_EXPORTER %q", c.OTel.Exporter)
	}
	switch c.Pixel.Adapter {
	case "azqueue", "aztables":
		if c.Azure.ConnectionString == "" {
			return fmt.Errorf("config: AZURE_STORAGE_CONNECTION_STRING is required for %s", c.Pixel.Adapter)
		}
	case "june":
		if c.June.WriteKey == "" {
			return fmt.Errorf("config: JUNE_WRITE_KEY is required for june")
		}
	}
	return nil
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}
