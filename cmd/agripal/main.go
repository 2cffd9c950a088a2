// Package main is the entry point for the AgriPal aggregation service.
//
// It loads configuration, connects the Postgres pool, builds the polling
// feeds and the notification pipeline, optionally attaches the MQTT push
// bridge and the media store, and serves the HTTP API. All long-running
// loops share one errgroup; cancelling the root context (SIGINT, SIGTERM)
// drains everything before exit.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"agripal/internal/alerts"
	"agripal/internal/api"
	"agripal/internal/api/handlers"
	"agripal/internal/config"
	"agripal/internal/db"
	"agripal/internal/external"
	"agripal/internal/feed"
	"agripal/internal/monitoring"
	"agripal/internal/realtime"
	"agripal/internal/storage"
	"agripal/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on
// error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("agripal starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database pool with tuning from config.
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(rootCtx, poolCfg)
	if err != nil {
		return fmt.Errorf("creating database pool: %w", err)
	}
	defer pool.Close()

	pingCtx, cancelPing := context.WithTimeout(rootCtx, cfg.Database.AcquireTimeout)
	err = pool.Ping(pingCtx)
	cancelPing()
	if err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	// Repositories.
	readingRepo := db.NewReadingRepository(pool)
	notificationRepo := db.NewNotificationRepository(pool)
	chatRepo := db.NewChatRepository(pool)

	metrics := monitoring.NewMetrics()
	clock := types.RealClock{}

	// Generative-text collaborator.
	gemini := external.NewGeminiClient(external.GeminiConfig{
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		BaseURL: cfg.AI.BaseURL,
		Timeout: cfg.AI.Timeout,
	})

	// Notification pipeline.
	center := alerts.NewCenter()
	notifier := alerts.NewNotifier(alerts.NotifierConfig{
		Center:               center,
		Sink:                 notificationRepo,
		Generator:            gemini,
		LowMoistureCooldown:  cfg.Alerts.LowMoistureCooldown,
		HighTempCooldown:     cfg.Alerts.HighTempCooldown,
		DisconnectedCooldown: cfg.Alerts.DisconnectedCooldown,
		FarmID:               cfg.Feed.FarmID,
		Clock:                clock,
		Logger:               logger,
		Recorder:             metrics,
	})

	// Two feeds follow the dashboard device: a fast fixed-range feed that
	// drives alert evaluation, and a slower feed whose range the API can
	// switch for the detail view.
	dashboardFeed := feed.NewFeed(feed.FeedConfig{
		DeviceID:     cfg.Feed.DashboardDevice,
		FarmID:       cfg.Feed.FarmID,
		Interval:     cfg.Feed.DashboardInterval,
		MaxHeld:      cfg.Feed.MaxHeld,
		QueryTimeout: cfg.Feed.QueryTimeout,
		Store:        readingRepo,
		Clock:        clock,
		Logger:       logger.With("feed", "dashboard"),
		Recorder:     metrics,
	})
	detailFeed := feed.NewFeed(feed.FeedConfig{
		DeviceID:     cfg.Feed.DashboardDevice,
		FarmID:       cfg.Feed.FarmID,
		Interval:     cfg.Feed.DetailInterval,
		MaxHeld:      cfg.Feed.MaxHeld,
		QueryTimeout: cfg.Feed.QueryTimeout,
		Store:        readingRepo,
		Clock:        clock,
		Logger:       logger.With("feed", "detail"),
		Recorder:     metrics,
	})

	monitor := alerts.NewMonitor(alerts.MonitorConfig{
		Feed:     dashboardFeed,
		Notifier: notifier,
		DeviceID: cfg.Feed.DashboardDevice,
		Interval: cfg.Feed.DashboardInterval,
		Logger:   logger,
	})

	// Device control proxy.
	pump := external.NewPumpClient(external.PumpConfig{
		BaseURL: cfg.Device.ControlBaseURL,
		Timeout: cfg.Device.Timeout,
	})

	// HTTP server.
	srv, err := api.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = metrics
	srv.MetricsHandler = metrics.Handler()
	srv.HealthProbes = []api.HealthProbe{
		api.ProbeFunc{ProbeName: "database", Fn: pool.Ping},
	}

	feeds := map[string]handlers.DeviceFeed{
		cfg.Feed.DashboardDevice: detailFeed,
	}

	readingsHandler := handlers.NewReadingsHandler(feeds, logger)
	notificationsHandler := handlers.NewNotificationsHandler(center, logger)
	controlHandler := handlers.NewControlHandler(pump, srv.Validator, logger)
	assistantHandler := handlers.NewAssistantHandler(
		dashboardFeed, gemini, chatRepo, clock, logger,
		cfg.Feed.DashboardDevice, cfg.Feed.FarmID,
	)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		readingsHandler.RegisterRoutes,
		notificationsHandler.RegisterRoutes,
		controlHandler.RegisterRoutes,
		assistantHandler.RegisterRoutes,
	)

	// Optional media listing over an S3-compatible bucket.
	if cfg.Storage.Enabled {
		mediaStore, serr := newMediaStore(rootCtx, cfg, logger)
		if serr != nil {
			return fmt.Errorf("creating media store: %w", serr)
		}
		mediaHandler := handlers.NewMediaHandler(mediaStore, logger)
		srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, mediaHandler.RegisterRoutes)
	}

	srv.MountRoutes()

	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error { return dashboardFeed.Run(ctx) })
	g.Go(func() error { return detailFeed.Run(ctx) })
	g.Go(func() error { return monitor.Run(ctx) })

	// Optional MQTT push bridge; its absence degrades to pure polling.
	if cfg.Realtime.Enabled {
		bridge := realtime.NewBridge(realtime.BridgeConfig{
			BrokerURL: cfg.Realtime.BrokerURL,
			Username:  cfg.Realtime.Username,
			Password:  cfg.Realtime.Password,
			ClientID:  cfg.Realtime.ClientID,
			Topic:     cfg.Realtime.Topic,
			Logger:    logger,
		}, map[string]realtime.FeedSignaler{
			cfg.Feed.DashboardDevice: realtime.MultiSignaler{dashboardFeed, detailFeed},
		})
		if err := bridge.Connect(ctx); err != nil {
			logger.Warn("mqtt bridge unavailable, continuing with polling only",
				"broker", cfg.Realtime.BrokerURL,
				"error", err,
			)
		} else {
			g.Go(func() error { return bridge.Run(ctx) })
		}
	}

	g.Go(func() error { return runHTTPServer(ctx, srv, cfg, logger) })

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("agripal stopped cleanly")
	return nil
}

// newMediaStore builds the S3-backed media store, honoring an endpoint
// override for S3-compatible providers.
func newMediaStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage.MediaStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Storage.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.EndpointURL != "" {
			o.BaseEndpoint = &cfg.Storage.EndpointURL
			o.UsePathStyle = true
		}
	})

	return storage.NewMediaStore(storage.MediaStoreConfig{
		Client:     client,
		Bucket:     cfg.Storage.MediaBucket,
		PublicBase: cfg.Storage.PublicBase,
		Logger:     logger,
	}), nil
}

// runHTTPServer serves the API until ctx is cancelled, then shuts down
// gracefully with a 10-second deadline.
func runHTTPServer(ctx context.Context, srv *api.Server, cfg *config.Config, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	return nil
}

// newLogger creates a structured JSON logger configured for the given log
// level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))
}
