// Command devapi serves a local stand-in for the Mboa Care REST API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mboacare/dashboard/internal/devapi"
	"github.com/mboacare/dashboard/internal/logging"
)

var (
	addrFlag = flag.String("addr", ":3000", "listen address")
	dbFlag   = flag.String("db", "file:devapi.db?_busy_timeout=5000", "sqlite database")
	ttlFlag  = flag.Duration("token-ttl", 12*time.Hour, "access token lifetime")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()
	log := logging.New(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("DEV") == "1")

	key := os.Getenv("DEVAPI_KEY")
	if key == "" {
		key = "devapi-insecure-key"
		log.Warn().Msg("DEVAPI_KEY not set, using the insecure development key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := devapi.Open(ctx, *dbFlag, log)
	if err != nil {
		log.Fatal().Err(err).Msg("devapi store")
	}
	srv := &http.Server{
		Addr:              *addrFlag,
		Handler:           logging.Middleware(log)(devapi.NewServer(store, devapi.NewTokens(key, *ttlFlag), log)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", *addrFlag).Str("login", devapi.SeedMedecin).Msg("devapi listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("devapi server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("devapi shutdown")
	}
}
