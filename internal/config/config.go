// Package config provides application configuration loaded from the
// environment, an optional .env file and an optional YAML overlay.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Receipt ReceiptConfig `yaml:"receipt"`
	App     AppConfig     `yaml:"app"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `env:"PORT,default=8080" yaml:"port"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT,default=15s" yaml:"read_timeout"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT,default=15s" yaml:"write_timeout"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT,default=60s" yaml:"idle_timeout"`
}

// APIConfig points at the remote Mboa Care API.
type APIConfig struct {
	BaseURL string        `env:"MBOA_API_URL,default=http://localhost:3000" yaml:"base_url"`
	Timeout time.Duration `env:"MBOA_API_TIMEOUT,default=10s" yaml:"timeout"`
	// RateLimit is the outbound request budget per second; 0 disables it.
	RateLimit float64 `env:"MBOA_API_RATE_LIMIT,default=0" yaml:"rate_limit"`
	Burst     int     `env:"MBOA_API_BURST,default=10" yaml:"burst"`
}

// SessionConfig selects the durable store behind the Session Store.
type SessionConfig struct {
	Secret   string         `env:"SESSION_SECRET" yaml:"secret"`
	Backend  string         `env:"SESSION_BACKEND,default=memory" yaml:"backend"`
	SQLite   string         `env:"SESSION_SQLITE_PATH,default=sessions.db" yaml:"sqlite_path"`
	Database DatabaseConfig `yaml:"database"`
	RedisURL string         `env:"REDIS_URL,default=redis://localhost:6379/0" yaml:"redis_url"`
	// TTL bounds both the redis entries and the in-memory resource cache.
	TTL time.Duration `env:"SESSION_TTL,default=12h" yaml:"ttl"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `env:"DB_HOST,default=localhost" yaml:"host"`
	Port     int    `env:"DB_PORT,default=5432" yaml:"port"`
	User     string `env:"DB_USER,default=mboa" yaml:"user"`
	Password string `env:"DB_PASSWORD,default=mboa" yaml:"password"`
	DBName   string `env:"DB_NAME,default=mboa" yaml:"dbname"`
	SSLMode  string `env:"DB_SSLMODE,default=disable" yaml:"sslmode"`
}

// ReceiptConfig controls receipt rendering and the print spool. SpoolSize is
// the number of unprinted receipts one browser may hold.
type ReceiptConfig struct {
	Format    string        `env:"RECEIPT_FORMAT,default=html" yaml:"format"`
	SpoolSize int           `env:"RECEIPT_SPOOL_SIZE,default=8" yaml:"spool_size"`
	SpoolTTL  time.Duration `env:"RECEIPT_SPOOL_TTL,default=10m" yaml:"spool_ttl"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev      bool   `env:"DEV,default=false" yaml:"dev"`
	LogLevel string `env:"LOG_LEVEL,default=info" yaml:"log_level"`
}

// Session backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Load reads .env (if present), then the environment, then the YAML file
// named by CONFIG_FILE. Values from the file win over the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode env: %w", err)
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Session.Backend = strings.ToLower(strings.TrimSpace(c.Session.Backend))
	c.Receipt.Format = strings.ToLower(strings.TrimSpace(c.Receipt.Format))
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
}

// Validate rejects unknown enum values and out-of-range sizes.
func (c *Config) Validate() error {
	var errs []error
	switch c.Session.Backend {
	case BackendMemory, BackendSQLite, BackendPostgres, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("SESSION_BACKEND %q: want memory, sqlite, postgres or redis", c.Session.Backend))
	}
	switch c.Receipt.Format {
	case "html", "pdf":
	default:
		errs = append(errs, fmt.Errorf("RECEIPT_FORMAT %q: want html or pdf", c.Receipt.Format))
	}
	if c.Receipt.SpoolSize < 1 {
		errs = append(errs, errors.New("RECEIPT_SPOOL_SIZE must be at least 1"))
	}
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("MBOA_API_URL is required"))
	}
	if c.API.RateLimit < 0 {
		errs = append(errs, errors.New("MBOA_API_RATE_LIMIT must not be negative"))
	}
	return errors.Join(errs...)
}

// SecretOrDev returns the session secret, or a fixed development secret
// when none is configured and Dev is set.
func (c *Config) SecretOrDev() (string, error) {
	if c.Session.Secret != "" {
		return c.Session.Secret, nil
	}
	if c.App.Dev {
		return "dev-only-insecure-secret", nil
	}
	return "", errors.New("SESSION_SECRET is required outside development")
}
