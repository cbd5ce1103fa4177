package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meshvoice/internal/capture"
	"github.com/dkeye/meshvoice/internal/config"
	"github.com/dkeye/meshvoice/internal/diag"
	"github.com/dkeye/meshvoice/internal/domain"
	"github.com/dkeye/meshvoice/internal/mesh"
	"github.com/dkeye/meshvoice/internal/relay"
	"github.com/dkeye/meshvoice/internal/rtc"
	"github.com/dkeye/meshvoice/internal/sink"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	userID := domain.UserID(cfg.UserID)
	if userID == "" {
		userID = domain.UserID(uuid.NewString())
	}

	device := capture.NewManager(capture.OpenTone)
	audioOut := sink.New(sink.Discard{})
	links := rtc.NewFactory(cfg.StunURLs)
	registry := mesh.NewRegistry(cfg.NegotiationTimeout, cfg.RegistryLinger)

	relayClient := relay.NewClient(cfg.RelayURL, cfg.ReconnectMin, cfg.ReconnectMax)
	coord := mesh.NewCoordinator(ctx, userID, cfg.Username, relayClient, device, links, audioOut, registry, mesh.Options{
		SpeakThreshold: cfg.SpeakThreshold,
		SpeakInterval:  cfg.SpeakInterval,
		SpeakGrace:     cfg.SpeakGrace,
	})
	relayClient.Bind(coord)

	go relayClient.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.DiagAddr,
		Handler: diag.SetupRouter(cfg.Mode, coord),
	}
	go func() {
		log.Info().Str("addr", cfg.DiagAddr).Msg("diag server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("diag server error")
		}
	}()

	if cfg.Channel != "" {
		if err := coord.Join(ctx, domain.ChannelID(cfg.Channel)); err != nil {
			log.Error().Err(err).Str("channel", cfg.Channel).Msg("startup join failed")
		}
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	coord.Leave()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Diag server forced to shutdown")
	}
	log.Info().Msg("Exited gracefully")
}
