package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"perfdash-backend/config"
	"perfdash-backend/internal/analysis"
	"perfdash-backend/internal/api"
	"perfdash-backend/internal/assistant"
	"perfdash-backend/internal/dashboard"
	"perfdash-backend/internal/db"
	"perfdash-backend/internal/importer"
	"perfdash-backend/internal/jobs"
	"perfdash-backend/internal/logger"
	"perfdash-backend/internal/metrics"
	"perfdash-backend/internal/notification"
	"perfdash-backend/internal/store"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("failed to load configuration from %s, using defaults: %v", configPath, err)
		cfg = config.Default()
	}

	appLog, err := logger.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer appLog.Sync()
	appLog.Info("configuration loaded", "path", configPath, "port", cfg.Server.Port)

	if cfg.Log.Mode != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.Init(ctx, &cfg.Database, appLog)
	if err != nil {
		appLog.Fatal("failed to initialize database", "error", err)
	}

	appStore := store.NewGormStore(gormDB)
	m := metrics.New()
	runner := jobs.NewRunner(appLog, cfg.Jobs.Retention, m)

	var notifier notification.Notifier = notification.Nop{}
	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions, appLog, m)
		pool.Start(ctx)
		notifier = pool
	} else {
		appLog.Warn("VAPID keys not configured, push notifications disabled")
	}

	handler := api.NewHandler(api.Deps{
		Store:     appStore,
		Analyses:  analysis.NewService(appStore, runner, cfg.Jobs.RegenerateDelay, nil, notifier, appLog),
		Assistant: assistant.New(runner, cfg.Jobs.AssistantDelay, appLog),
		Imports:   importer.NewManager(cfg.Import, cfg.Jobs.ImportDelay, runner, notifier, m, appLog),
		Dashboard: dashboard.NewService(dashboard.DefaultDataset(), time.Now()),
		Runner:    runner,
		WebPush:   webpushOptions,
		Log:       appLog,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(handler, cfg.Server, m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLog.Info("HTTP server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		appLog.Info("shutdown signal received, stopping services")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSeconds)*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		if err := runner.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("runner shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		appLog.Error("server stopped with error", "error", err)
		return
	}
	appLog.Info("server gracefully stopped")
}
