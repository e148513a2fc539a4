package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expense-bot/internal/cache"
	"expense-bot/internal/config"
	"expense-bot/internal/convo"
	"expense-bot/internal/extract"
	"expense-bot/internal/httpserver"
	"expense-bot/internal/logging"
	"expense-bot/internal/metrics"
	"expense-bot/internal/repo"
	"expense-bot/internal/wa"
	"expense-bot/migrations"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.AppEnv)
	logger.Info("starting expense-bot", "env", cfg.AppEnv, "store", cfg.StoreDriver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	var store repo.Store
	switch cfg.StoreDriver {
	case "sqlite":
		store, err = repo.NewSQLite(ctx, cfg.SQLitePath, logger)
	default:
		store, err = repo.NewPostgres(ctx, cfg.DatabaseURL, cfg.DatabaseSchema, logger)
	}
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer store.Close()

	if err := store.RunMigrations(ctx, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrated")

	redisClient := cache.New(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		UseTLS:   cfg.RedisTLS,
	}, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed closing redis", "error", err)
		}
	}()
	if err := redisClient.Ping(ctx); err != nil {
		logger.Warn("redis ping failed", "error", err)
	}

	extractor, err := extract.New(ctx, extract.Config{
		APIKey:   cfg.GeminiAPIKey,
		Model:    cfg.GeminiModel,
		Timeout:  cfg.GeminiTimeout,
		CacheTTL: cfg.ExtractCacheTTL,
	}, logger, metricRegistry, redisClient)
	if err != nil {
		return fmt.Errorf("init extraction client: %w", err)
	}

	waClient, err := wa.New(ctx, wa.Config{
		StorePath: cfg.WhatsAppStorePath,
		LogLevel:  cfg.WhatsAppLogLevel,
		Metrics:   metricRegistry,
	}, logger)
	if err != nil {
		return fmt.Errorf("init whatsapp client: %w", err)
	}
	defer waClient.Close()

	engine := convo.New(store, extractor, waClient, waClient, metricRegistry, logger)
	waClient.SetMessageProcessor(engine)

	waCtx, waCancel := context.WithCancel(ctx)
	defer waCancel()
	go func() {
		if err := waClient.Start(waCtx); err != nil {
			logger.Error("whatsapp client stopped", "error", err)
			stop()
		}
	}()

	httpSrv := httpserver.New(cfg.HTTPListenAddr, logger, metricRegistry)
	httpSrv.SetDependencies(httpserver.Dependencies{
		Store: store,
		Redis: redisClient,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	return nil
}
