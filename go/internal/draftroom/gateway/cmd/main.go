package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/draftroom/go/internal/config"
	"github.com/mcdev12/draftroom/go/internal/draftroom/autopick"
	"github.com/mcdev12/draftroom/go/internal/draftroom/events"
	"github.com/mcdev12/draftroom/go/internal/draftroom/gateway"
)

const eventQueueSize = 1024

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	setupLogging(cfg.Log)

	log.Info().
		Str("port", cfg.Server.Port).
		Str("nats_url", cfg.NATS.URL).
		Int("league_size", cfg.Draft.LeagueSize).
		Int("total_rounds", cfg.Draft.TotalRounds).
		Int("time_per_pick_sec", cfg.Draft.TimePerPickSec).
		Str("autopick", cfg.AutoPick.Strategy).
		Msg("starting draft room gateway")

	strategy, err := autopick.New(cfg.AutoPick.Strategy, cfg.AutoPick.RankingsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create auto-pick strategy")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Events go through a queue so room locks never wait on the broker
	var bus *events.NATSBus
	var sink events.Publisher = events.NoOpPublisher{}
	if cfg.NATS.URL != "" {
		bus, err = events.Connect(ctx, cfg.EventsConfig())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		sink = bus
	} else {
		log.Warn().Msg("NATS_URL not set, draft events will be dropped")
	}
	publisher := events.NewAsyncPublisher(sink, eventQueueSize)
	publisher.Start(ctx)

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.Rules = cfg.Draft
	gatewayConfig.ConnectionConfig = cfg.ConnectionConfig()

	gatewayService := gateway.NewService(gatewayConfig, publisher, strategy, nil)

	if bus != nil {
		if err := bus.SubscribeResults(gatewayService.HandleResult); err != nil {
			log.Fatal().Err(err).Msg("failed to subscribe to prediction results")
		}
	}

	server := setupServer(cfg.Server, gatewayService)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	gatewayService.Stop()

	// Flushes queued events and drains the NATS connection
	if err := publisher.Close(); err != nil {
		log.Error().Err(err).Msg("event publisher shutdown failed")
	}
	cancel()

	log.Info().Msg("draft room gateway shutdown complete")
}

func setupLogging(cfg config.LogConfig) {
	if cfg.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func setupServer(cfg config.ServerConfig, gatewayService *gateway.Service) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
		},
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	gatewayService.RegisterRoutes(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	handler := c.Handler(mux)

	return &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      h2c.NewHandler(handler, &http2.Server{}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
