package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Storage StorageConfig `yaml:"storage" toml:"storage"`
	Quotes  QuotesConfig  `yaml:"quotes" toml:"quotes"`
	Cache   CacheConfig   `yaml:"cache" toml:"cache"`
	Auth    AuthConfig    `yaml:"auth" toml:"auth"`
	Monitor MonitorConfig `yaml:"monitor" toml:"monitor"`
	Tracing TracingConfig `yaml:"tracing" toml:"tracing"`
}

type ServerConfig struct {
	Port int `yaml:"port" toml:"port" env:"TERMINAL_SERVER_PORT"`
}

type LoggingConfig struct {
	Level string `yaml:"level" toml:"level" env:"TERMINAL_LOG_LEVEL"`
	// Format is json or console.
	Format string `yaml:"format" toml:"format" env:"TERMINAL_LOG_FORMAT"`
}

type StorageConfig struct {
	// Driver is one of sqlite, postgres, s3.
	Driver           string `yaml:"driver" toml:"driver" env:"TERMINAL_STORAGE_DRIVER"`
	SQLitePath       string `yaml:"sqlite_path" toml:"sqlite_path" env:"TERMINAL_SQLITE_PATH"`
	PostgresDSN      string `yaml:"postgres_dsn" toml:"postgres_dsn" env:"TERMINAL_POSTGRES_DSN"`
	PostgresMaxConns int    `yaml:"postgres_max_conns" toml:"postgres_max_conns" env:"TERMINAL_POSTGRES_MAX_CONNS"`
	S3               S3Config `yaml:"s3" toml:"s3"`
}

type S3Config struct {
	Endpoint       string `yaml:"endpoint" toml:"endpoint" env:"TERMINAL_S3_ENDPOINT"`
	Region         string `yaml:"region" toml:"region" env:"TERMINAL_S3_REGION"`
	Bucket         string `yaml:"bucket" toml:"bucket" env:"TERMINAL_S3_BUCKET"`
	Key            string `yaml:"key" toml:"key" env:"TERMINAL_S3_KEY"`
	AccessKey      string `yaml:"access_key" toml:"access_key" env:"TERMINAL_S3_ACCESS_KEY"`
	SecretKey      string `yaml:"secret_key" toml:"secret_key" env:"TERMINAL_S3_SECRET_KEY"`
	ForcePathStyle bool   `yaml:"force_path_style" toml:"force_path_style" env:"TERMINAL_S3_FORCE_PATH_STYLE"`
}

type QuotesConfig struct {
	// Provider is one of yahoo, kite.
	Provider        string        `yaml:"provider" toml:"provider" env:"TERMINAL_QUOTES_PROVIDER"`
	YahooBaseURL    string        `yaml:"yahoo_base_url" toml:"yahoo_base_url" env:"TERMINAL_YAHOO_BASE_URL"`
	KiteAPIKey      string        `yaml:"kite_api_key" toml:"kite_api_key" env:"TERMINAL_KITE_API_KEY"`
	KiteAccessToken string        `yaml:"kite_access_token" toml:"kite_access_token" env:"TERMINAL_KITE_ACCESS_TOKEN"`
	Timeout         time.Duration `yaml:"timeout" toml:"timeout" env:"TERMINAL_QUOTES_TIMEOUT"`
	CacheTTL        time.Duration `yaml:"cache_ttl" toml:"cache_ttl" env:"TERMINAL_QUOTES_CACHE_TTL"`
	MaxParallel     int           `yaml:"max_parallel" toml:"max_parallel" env:"TERMINAL_QUOTES_MAX_PARALLEL"`
}

type CacheConfig struct {
	// Driver is one of memory, redis.
	Driver        string `yaml:"driver" toml:"driver" env:"TERMINAL_CACHE_DRIVER"`
	RedisAddr     string `yaml:"redis_addr" toml:"redis_addr" env:"TERMINAL_REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" toml:"redis_password" env:"TERMINAL_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" toml:"redis_db" env:"TERMINAL_REDIS_DB"`
}

type AuthConfig struct {
	AdminUser         string        `yaml:"admin_user" toml:"admin_user" env:"TERMINAL_ADMIN_USER"`
	AdminPasswordHash string        `yaml:"admin_password_hash" toml:"admin_password_hash" env:"ADMIN_PASSWORD_HASH"`
	SessionTTL        time.Duration `yaml:"session_ttl" toml:"session_ttl" env:"TERMINAL_SESSION_TTL"`
	SecureCookie      bool          `yaml:"secure_cookie" toml:"secure_cookie" env:"TERMINAL_SECURE_COOKIE"`
}

type MonitorConfig struct {
	// RefreshInterval runs a background refresh pass. Zero disables it.
	RefreshInterval time.Duration `yaml:"refresh_interval" toml:"refresh_interval" env:"TERMINAL_REFRESH_INTERVAL"`
}

type TracingConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled" env:"TERMINAL_TRACING_ENABLED"`
}

func Defaults() Config {
	return Config{
		Server:  ServerConfig{Port: 8080},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Storage: StorageConfig{
			Driver:     "sqlite",
			SQLitePath: "calls.db",
			S3:         S3Config{Key: "calls.csv"},
		},
		Quotes: QuotesConfig{
			Provider:    "yahoo",
			Timeout:     5 * time.Second,
			CacheTTL:    30 * time.Second,
			MaxParallel: 4,
		},
		Cache: CacheConfig{Driver: "memory"},
		Auth: AuthConfig{
			AdminUser:  "admin",
			SessionTTL: 12 * time.Hour,
		},
	}
}

// Load reads a YAML or TOML file (chosen by extension) over the defaults,
// then applies .env and environment overrides. A missing file is not an
// error: defaults plus environment are enough to run.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	_ = godotenv.Load()

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return nil
	default:
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return nil
	}
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required"))
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required"))
		}
	case "s3":
		if c.Storage.S3.Bucket == "" || c.Storage.S3.Region == "" {
			errs = append(errs, errors.New("storage.s3 bucket and region are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	switch c.Quotes.Provider {
	case "yahoo":
	case "kite":
		if c.Quotes.KiteAPIKey == "" || c.Quotes.KiteAccessToken == "" {
			errs = append(errs, errors.New("quotes.kite_api_key and quotes.kite_access_token are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown quotes.provider %q", c.Quotes.Provider))
	}

	switch c.Cache.Driver {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("cache.redis_addr is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache.driver %q", c.Cache.Driver))
	}

	if c.Monitor.RefreshInterval < 0 {
		errs = append(errs, errors.New("monitor.refresh_interval must not be negative"))
	}

	return errors.Join(errs...)
}
