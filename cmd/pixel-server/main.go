// Command pixel-server runs the pixel events API.
//
// @title        Pixel Events API
// @version      1.0
// @description  Identify users and track events for the pixel analytics library.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pixel-analytics/pixel/internal/api"
	"github.com/pixel-analytics/pixel/internal/core/service"
	"github.com/pixel-analytics/pixel/internal/infrastructure/adapters"
	"github.com/pixel-analytics/pixel/internal/infrastructure/config"
	"github.com/pixel-analytics/pixel/internal/infrastructure/telemetry"
	"github.com/pixel-analytics/pixel/internal/infrastructure/token"
	"github.com/pixel-analytics/pixel/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		// The logger is not configured yet.
		bootLog := logger.New(logger.Options{})
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: cfg.OTel.ServiceName,
		Env:     cfg.Env,
	})

	tp, shutdownTracing, err := telemetry.Setup(telemetry.Options{
		Enabled:     cfg.OTel.Enabled,
		ServiceName: cfg.OTel.ServiceName,
		Exporter:    cfg.OTel.Exporter,
	}, logger.Component("telemetry"))
	if err != nil {
		log.Fatal().Err(err).Msg("tracing setup")
	}

	storage, err := adapters.Build(ctx, cfg, logger.Component("storage"))
	if err != nil {
		log.Fatal().Err(err).Msg("storage adapter")
	}

	codec, err := token.NewCodec(cfg.Pixel.JWTSecret,
		token.WithTTL(cfg.Pixel.TokenTTL),
		token.WithLogger(logger.Component("token")),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("token codec")
	}

	gateway, err := service.NewEventGateway(
		service.GatewayConfig{
			Secret:            cfg.Pixel.JWTSecret,
			PersistOnIdentify: cfg.Pixel.PersistOnIdentify,
		},
		codec,
		storage.Adapter,
		logger.Component("gateway"),
		service.WithTracerProvider(tp),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("event gateway")
	}

	e := api.NewRouter(api.RouterConfig{
		EventsPath:          cfg.HTTP.EventsPath,
		AllowedOrigins:      cfg.HTTP.AllowedOrigins,
		MetricsUser:         cfg.Metrics.User,
		MetricsPasswordHash: cfg.Metrics.PasswordHash,
	}, gateway, storage.Checks, logger.Component("http"))

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("events_path", cfg.HTTP.EventsPath).
			Str("adapter", storage.Adapter.Name()).
			Bool("persist_on_identify", cfg.Pixel.PersistOnIdentify).
			Msg("pixel server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := storage.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("storage shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
}
