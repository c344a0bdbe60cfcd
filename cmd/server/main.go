package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mboacare/dashboard/internal/api"
	"github.com/mboacare/dashboard/internal/config"
	"github.com/mboacare/dashboard/internal/db"
	"github.com/mboacare/dashboard/internal/logging"
	"github.com/mboacare/dashboard/internal/metrics"
	"github.com/mboacare/dashboard/internal/receipt"
	"github.com/mboacare/dashboard/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger depends on the config; report on stderr.
		boot := logging.New(os.Stderr, "info", false)
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logging.New(os.Stdout, cfg.App.LogLevel, cfg.App.Dev)

	secret, err := cfg.SecretOrDev()
	if err != nil {
		log.Fatal().Err(err).Msg("session secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, closeStorage, err := openStorage(ctx, cfg.Session, cfg.App.Dev, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Session.Backend).Msg("session storage")
	}
	defer closeStorage()

	m := metrics.New()
	opts := []api.Option{api.WithObserver(m)}
	if cfg.API.RateLimit > 0 {
		opts = append(opts, api.WithRateLimit(cfg.API.RateLimit, cfg.API.Burst))
	}
	remote := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout, opts...)

	app := NewApp(Options{
		Remote:  remote,
		Storage: storage,
		Secret:  secret,
		Secure:  !cfg.App.Dev,
		Receipts: &receipt.Service{
			Printer: receipt.PrinterFor(cfg.Receipt.Format),
			Spool:   receipt.NewSpool(cfg.Receipt.SpoolSize, cfg.Receipt.SpoolTTL),
		},
		Metrics: m,
		Log:     log,
		TTL:     cfg.Session.TTL,
	})
	defer app.Workspaces().Close()
	go app.Workspaces().Run(ctx, time.Minute)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Bool("dev", cfg.App.Dev).
			Str("api", cfg.API.BaseURL).Str("sessions", cfg.Session.Backend).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("server stopped gracefully")
}

// openStorage connects the durable key-value store behind the session store.
func openStorage(ctx context.Context, cfg config.SessionConfig, dev bool, log zerolog.Logger) (session.Storage, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case config.BackendSQLite:
		conn, err := db.Open(ctx, db.DriverSQLite, cfg.SQLite, db.Options{Attempts: 1, Debug: dev, Log: log})
		if err != nil {
			return nil, noop, err
		}
		s, err := session.NewGormStorage(conn)
		return s, noop, err
	case config.BackendPostgres:
		conn, err := db.Open(ctx, db.DriverPostgres, cfg.Database.DSN(), db.Options{Debug: dev, Log: log})
		if err != nil {
			return nil, noop, err
		}
		s, err := session.NewGormStorage(conn)
		return s, noop, err
	case config.BackendRedis:
		client, err := session.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				log.Warn().Err(err).Msg("redis close")
			}
		}
		return session.NewRedisStorage(client, "mboa:session:", cfg.TTL), closeFn, nil
	default:
		log.Warn().Msg("sessions are kept in memory and lost on restart")
		return session.NewMemoryStorage(), noop, nil
	}
}
