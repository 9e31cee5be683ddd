package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fencewatch/fencewatch/internal/alerter"
	"github.com/fencewatch/fencewatch/internal/api"
	"github.com/fencewatch/fencewatch/internal/authoring"
	"github.com/fencewatch/fencewatch/internal/backend"
	"github.com/fencewatch/fencewatch/internal/collector"
	"github.com/fencewatch/fencewatch/internal/config"
	"github.com/fencewatch/fencewatch/internal/health"
	"github.com/fencewatch/fencewatch/internal/metrics"
	"github.com/fencewatch/fencewatch/internal/notifier"
	"github.com/fencewatch/fencewatch/internal/version"
	"github.com/fencewatch/fencewatch/internal/webui"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "/config/fencewatch.yaml", "Path to configuration file")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		return
	}

	// Create log buffer for web UI (captures last 1000 log entries)
	logBuffer := webui.NewLogBuffer(1000)

	logLevelParsed, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logLevelParsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevelParsed)

	// Write to both stdout and the log buffer
	multiWriter := io.MultiWriter(os.Stdout, logBuffer)
	logger := zerolog.New(multiWriter).With().
		Timestamp().
		Str("version", version.Version).
		Logger()

	logger.Info().Msg("Starting fencewatch")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("config_path", *configPath).
			Msg("Failed to load configuration")
	}

	logger.Info().
		Str("stream_url", cfg.Stream.URL).
		Str("backend_url", cfg.Backend.URL).
		Dur("reconnect_delay", cfg.Stream.ReconnectDelay).
		Int("feed_size", cfg.Alerts.FeedSize).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	notify := notifier.NewNotifier(notifier.Config{
		AppriseURL: cfg.Notify.AppriseURL,
		AppriseTag: cfg.Notify.AppriseTag,
	}, logger)

	feed := alerter.NewFeed(cfg.Alerts.FeedSize)
	engine := alerter.NewEngine(feed, notify, m, logger)

	backendClient := backend.NewClient(cfg.Backend.URL, cfg.Backend.Timeout, logger)
	sessions := authoring.NewSessions(backendClient, m, authoring.Limits{
		MaxSessions: cfg.Authoring.MaxSessions,
		IdleTTL:     cfg.Authoring.IdleTTL,
	}, logger)

	var healthSrv *health.Server
	healthDone := make(chan struct{})
	if cfg.Server.GRPCPort != 0 {
		healthSrv, err = health.New(cfg.Server.GRPCPort, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to start gRPC health server")
		}
		go func() {
			defer close(healthDone)
			if err := healthSrv.Serve(ctx); err != nil {
				logger.Error().Err(err).Msg("gRPC health server error")
			}
		}()
	} else {
		close(healthDone)
	}

	transport := collector.NewTransport(collector.Options{
		URL:            cfg.Stream.URL,
		Origin:         cfg.Stream.Origin,
		ReconnectDelay: cfg.Stream.ReconnectDelay,
		MaxRetries:     cfg.Stream.MaxRetries,
		DialTimeout:    cfg.Stream.DialTimeout,
		Metrics:        m,
		OnStateChange: func(s collector.State) {
			if healthSrv != nil {
				healthSrv.StreamStateChanged(s)
			}
		},
	}, logger)

	unsubscribe, err := transport.Subscribe(engine.HandleEvent)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to subscribe to alert stream")
	}

	gin.SetMode(gin.ReleaseMode)
	apiServer := api.NewServer(api.Deps{
		Feed:       feed,
		Stream:     transport,
		Notices:    notify,
		Sessions:   sessions,
		Backend:    backendClient,
		Metrics:    m,
		LogBuffer:  logBuffer,
		Config:     cfg,
		ConfigPath: *configPath,
	}, logger, cfg.Server.HTTPPort)

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error().
				Err(err).
				Msg("API server error")
			stop()
		}
	}()

	logger.Info().
		Int("port", cfg.Server.HTTPPort).
		Msg("Web UI available")

	logger.Info().Msg("fencewatch running, press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info().Msg("Shutting down...")

	unsubscribe()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error shutting down API server")
	}
	<-healthDone
	notify.Close()

	logger.Info().Msg("fencewatch stopped")
}
