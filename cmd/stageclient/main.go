package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/digital-stage/client-go/internal/adapters/httpapi"
	"github.com/digital-stage/client-go/internal/adapters/rtc"
	"github.com/digital-stage/client-go/internal/adapters/webaudio"
	"github.com/digital-stage/client-go/internal/app"
	"github.com/digital-stage/client-go/internal/audio"
	"github.com/digital-stage/client-go/internal/config"
	"github.com/digital-stage/client-go/internal/session"
	signalws "github.com/digital-stage/client-go/internal/signal"
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
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	sig, err := signalws.Dial(ctx, cfg.SignalURL, cfg.RequestTimeout, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.SignalURL).Msg("failed to reach signaling server")
	}
	defer sig.Close()

	engine := rtc.NewEngine(cfg.ICEServers, log.Logger)
	manager := session.NewManager(sig, engine, log.Logger)

	provider := webaudio.NewProvider(log.Logger)
	reconciler := audio.NewReconciler(provider, log.Logger)

	capture, err := rtc.NewAudioTrack(cfg.DeviceName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create capture track")
	}

	client := app.NewClient(sig.Events(), manager, reconciler, capture, log.Logger)

	r := httpapi.SetupRouter(cfg, client, provider)
	addr := fmt.Sprintf(":%d", cfg.StatusPort)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("status server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("status server error")
		}
	}()

	runErr := client.Run(ctx)
	if runErr != nil && runErr != context.Canceled {
		log.Error().Err(runErr).Msg("client stopped")
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Client exited gracefully")
}
