// Package main provides the attune worker entry point.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/attune/internal/config"
	"github.com/thebtf/attune/internal/worker"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	simulate := flag.Bool("simulate", false, "Drive active sessions with simulated bio readings")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}
	if *simulate {
		cfg.SimulatorEnabled = true
	}

	svc, err := worker.NewService(Version, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	served := make(chan error, 1)
	go func() { served <- svc.Start(ctx) }()

	select {
	case err := <-served:
		if err != nil {
			log.Error().Err(err).Msg("Worker stopped with error")
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down worker")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
		os.Exit(1)
	}
}
