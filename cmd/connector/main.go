package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/polyglot-connectors/internal/auth"
	"github.com/tjfontaine/polyglot-connectors/internal/connector"
	"github.com/tjfontaine/polyglot-connectors/internal/pkg/config"
	"github.com/tjfontaine/polyglot-connectors/internal/pkg/safehttp"
	"github.com/tjfontaine/polyglot-connectors/internal/registration"
	"github.com/tjfontaine/polyglot-connectors/internal/server"
	"github.com/tjfontaine/polyglot-connectors/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Telemetry.Tracing {
		shutdown, err := telemetry.InitTracer(cfg.Telemetry.Service, cfg.Connector.Type, logger)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	httpClient := safehttp.NewClient(cfg.Security.BlockPrivateBackends)

	var verifier *auth.Verifier
	if cfg.Hub.Disabled {
		logger.Warn("hub authentication disabled")
	} else {
		if cfg.Hub.PublicKeyURL == "" {
			log.Fatalf("hub.public_key_url is required unless hub.disabled is set")
		}
		// The hub key endpoint may live on a private address.
		keys := auth.NewPublicKeyCache(cfg.Hub.PublicKeyURL, cfg.Hub.PublicKeyTTL, safehttp.NewClient(false))
		verifier = auth.NewVerifier(keys,
			auth.WithIssuer(cfg.Hub.Issuer),
			auth.WithAudience(cfg.Hub.Audience),
		)
	}

	// Register built-in connectors
	registration.RegisterBuiltins()

	c, err := connector.Create(cfg.Connector.Type, connector.Deps{
		Config:     cfg,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if err != nil {
		log.Fatalf("Failed to create connector: %v", err)
	}

	srv := server.New(cfg.Server.Port, logger, server.Options{
		Verifier:       verifier,
		RequestTimeout: cfg.Server.RequestTimeout,
		ServiceName:    cfg.Telemetry.Service,
	})
	connector.MountPublic(srv.Router, c, cfg.Connector.ImageURL)
	srv.Protected(c.Routes)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	logger.Info("connector started",
		slog.String("type", c.Name()),
		slog.Int("port", cfg.Server.Port),
		slog.Bool("hub_auth", verifier != nil),
	)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, stopping connector...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Connector shutdown complete")
}
