// Package db opens the gorm connection used by the durable session store and
// the development API.
package db

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options tune Open. Zero values use defaults.
type Options struct {
	Attempts int
	Backoff  time.Duration
	Debug    bool
	Log      zerolog.Logger
}

var kvPairRegex = regexp.MustCompile(`(?i)\b(host|user|password|dbname|port|sslmode)=`)
var passwordRegex = regexp.MustCompile(`(password=)(\S+)`)
var urlPasswordRegex = regexp.MustCompile(`(://[^:/@]+:)([^@]+)(@)`)

// Open connects with retries, leaving postgres time to start.
func Open(ctx context.Context, driver, dsn string, opts Options) (*gorm.DB, error) {
	if opts.Attempts <= 0 {
		opts.Attempts = 5
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	level := logger.Silent
	if opts.Debug {
		level = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(level)}

	var dial gorm.Dialector
	switch driver {
	case DriverSQLite:
		dial = sqlite.Open(dsn)
	case DriverPostgres:
		dsn = NormalizeDSN(dsn)
		dial = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}

	var db *gorm.DB
	var err error
	for i := 0; i < opts.Attempts; i++ {
		db, err = gorm.Open(dial, cfg)
		if err == nil {
			err = db.WithContext(ctx).Exec("SELECT 1").Error
		}
		if err == nil {
			break
		}
		opts.Log.Warn().Err(err).Int("attempt", i+1).Int("of", opts.Attempts).Msg("database connection failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.Backoff):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	opts.Log.Info().Str("driver", driver).Str("dsn", MaskDSN(dsn)).Msg("database connected")
	return db, nil
}

// NormalizeDSN accepts either a URL style DSN (postgres://...) or a key=value
// list. Quotes and extra whitespace are trimmed; sslmode defaults to disable.
func NormalizeDSN(raw string) string {
	s := strings.Trim(strings.TrimSpace(raw), "\"'")
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return s
	}
	if !kvPairRegex.MatchString(s) {
		return s
	}
	cleaned := strings.Join(strings.Fields(s), " ")
	if !strings.Contains(strings.ToLower(cleaned), "sslmode=") {
		cleaned += " sslmode=disable"
	}
	return cleaned
}

// MaskDSN hides the password of a DSN for logging.
func MaskDSN(dsn string) string {
	dsn = passwordRegex.ReplaceAllString(dsn, `${1}***`)
	return urlPasswordRegex.ReplaceAllString(dsn, `${1}***${3}`)
}
