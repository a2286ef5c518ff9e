package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/linskybing/chainjob-cache/internal/application/ingest"
	"github.com/linskybing/chainjob-cache/internal/application/snapshot"
	"github.com/linskybing/chainjob-cache/internal/chain"
	"github.com/linskybing/chainjob-cache/internal/config"
	"github.com/linskybing/chainjob-cache/internal/cron"
	"github.com/linskybing/chainjob-cache/internal/repository"
	pkglogger "github.com/linskybing/chainjob-cache/pkg/logger"
	"go.uber.org/zap"
)

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

	opts := ingest.Options{Interval: cfg.SyncInterval, Concurrency: cfg.ChainConcurrency}
	var snapshotDone <-chan struct{}
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
		snapshots := snapshot.NewService(store, bucket, cfg.SnapshotPrefix, logger)
		opts.Seeder = snapshots
		snapshotDone = cron.StartSnapshotTask(ctx, snapshots, cfg.SnapshotInterval, logger)
	}

	syncer := ingest.NewSyncer(store, reader, opts, logger)
	logger.Info("starting syncer",
		zap.String("backend", store.Backend()),
		zap.String("registry", cfg.RegistryAddress),
	)
	if err := syncer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("syncer error", zap.Error(err))
	}
	if snapshotDone != nil {
		<-snapshotDone
	}
}
