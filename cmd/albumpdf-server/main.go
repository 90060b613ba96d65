// Command albumpdf-server serves album PDF production over HTTP.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/handiism/albumpdf/internal/config"
	"github.com/handiism/albumpdf/internal/download"
	"github.com/handiism/albumpdf/internal/logging"
	"github.com/handiism/albumpdf/internal/server"
	"github.com/handiism/albumpdf/internal/store"
)

func main() {
	configFlag := flag.String("config", "", "Path to config file (yaml or json)")
	flag.Parse()

	settings, err := config.Load(*configFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if err := logging.Setup(settings.Logging, os.Stderr); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}

	history, err := store.OpenHistory(settings.HistoryPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open job history")
	}
	defer func() {
		if err := history.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close job history")
		}
	}()

	observer, err := download.NewPrometheusObserver(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register metrics")
	}

	manager, err := download.NewManager(settings, download.Options{
		History:  history,
		Observer: observer,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create manager")
	}

	srv := server.New(settings, manager, prometheus.DefaultGatherer)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Server failed")
		}
		return
	}

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), settings.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown server")
		return
	}

	log.Info().Msg("Server stopped")
}
