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
	zlog "github.com/rs/zerolog/log"

	"github.com/FoodCourtHub/server/internal/httpserver"
	"github.com/FoodCourtHub/server/pkg/foodcourt"
)

func main() {
	configPath := flag.String("config", os.Getenv("FOODCOURT_CONFIG"), "path to config yaml")
	flag.Parse()

	// .env is a local-development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := foodcourt.LoadConfig(*configPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("load config")
	}

	app, err := foodcourt.NewApp(cfg)
	if err != nil {
		zlog.Fatal().Err(err).Msg("init app")
	}
	log := app.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.StartBackground(ctx)

	srv := httpserver.New(app.Dependencies())

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("hub listening")
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	cancel()
	if err := app.Close(); err != nil {
		log.Error().Err(err).Msg("resource shutdown failed")
	}
	log.Info().Msg("hub stopped")
}
