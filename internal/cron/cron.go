package cron

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Runner is a long-running loop that stops when its context is cancelled.
type Runner interface {
	Start(ctx context.Context) error
}

type Exporter interface {
	Export(ctx context.Context) (string, error)
}

// StartSyncer runs the syncer in the background of the API process.
func StartSyncer(ctx context.Context, r Runner, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := r.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("in-process syncer exited", zap.Error(err))
		}
	}()
	return done
}

// StartSnapshotTask exports a snapshot every interval until ctx is done.
func StartSnapshotTask(ctx context.Context, exporter Exporter, interval time.Duration, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("starting background snapshot task", zap.Duration("interval", interval))

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := exporter.Export(ctx); err != nil && ctx.Err() == nil {
					logger.Error("scheduled snapshot failed", zap.Error(err))
				}
			}
		}
	}()
	return done
}
