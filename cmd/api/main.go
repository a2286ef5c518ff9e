package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/linskybing/chainjob-cache/internal/api/handlers"
	"github.com/linskybing/chainjob-cache/internal/api/routes"
	"github.com/linskybing/chainjob-cache/internal/application/cache"
	"github.com/linskybing/chainjob-cache/internal/application/ingest"
	appjob "github.com/linskybing/chainjob-cache/internal/application/job"
	"github.com/linskybing/chainjob-cache/internal/application/snapshot"
	"github.com/linskybing/chainjob-cache/internal/chain"
	"github.com/linskybing/chainjob-cache/internal/config"
	"github.com/linskybing/chainjob-cache/internal/cron"
	"github.com/linskybing/chainjob-cache/internal/repository"
	pkglogger "github.com/linskybing/chainjob-cache/pkg/logger"
	"go.uber.org/zap"
)

// @title chainjob-cache API
// @version 1.0
// @description Cache-first read API for on-chain job records.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration from environment variables and .env file
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := pkglogger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repository.NewStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open record store", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	reader, err := chain.Dial(ctx, cfg.RPCURL, cfg.RegistryAddress, chain.Options{
		CallTimeout: cfg.RPCTimeout,
		MaxRetries:  cfg.RPCMaxRetries,
		Concurrency: cfg.ChainConcurrency,
	}, logger)
	if err != nil {
		logger.Fatal("failed to connect to chain", zap.Error(err))
	}
	defer reader.Close()

	facade := cache.NewFacade(store, policyFrom(cfg), logger, cache.WithStatsTimeout(cfg.StatsTimeout))
	deps := handlers.Deps{
		Jobs:   appjob.NewService(facade, reader, cfg.FallbackTimeout, logger),
		Cache:  facade,
		Logger: logger,
	}

	var snapshots *snapshot.Service
	if cfg.SnapshotEnabled {
		bucket, err := snapshot.NewMinioBucket(ctx, snapshot.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			UseSSL:    cfg.MinioUseSSL,
			Bucket:    cfg.MinioBucket,
		})
		if err != nil {
			logger.Fatal("failed to open snapshot bucket", zap.Error(err))
		}
		snapshots = snapshot.NewService(store, bucket, cfg.SnapshotPrefix, logger)
		deps.Snapshots = snapshots
	}

	var background []<-chan struct{}
	if cfg.SyncInProcess {
		opts := ingest.Options{Interval: cfg.SyncInterval, Concurrency: cfg.ChainConcurrency}
		if snapshots != nil {
			opts.Seeder = snapshots
		}
		syncer := ingest.NewSyncer(store, reader, opts, logger)
		deps.Syncer = syncer
		background = append(background, cron.StartSyncer(ctx, syncer, logger))
		if snapshots != nil {
			background = append(background, cron.StartSnapshotTask(ctx, snapshots, cfg.SnapshotInterval, logger))
		}
	}

	go func() {
		err := config.WatchPolicy(ctx, *cfg, logger, func(next config.Config) {
			facade.SetPolicy(policyFrom(&next))
		})
		if err != nil {
			logger.Warn("cache policy watcher stopped", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           routes.NewRouter(cfg, handlers.New(deps), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting API server", zap.String("addr", srv.Addr), zap.String("cache_backend", store.Backend()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	for _, done := range background {
		<-done
	}
}

func policyFrom(cfg *config.Config) cache.Policy {
	return cache.Policy{
		Enabled:     cfg.CacheEnabled,
		MaxAge:      cfg.CacheMaxAge,
		MaxBlockLag: cfg.CacheMaxBlockLag,
	}
}
