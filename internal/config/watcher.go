package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchPolicy re-reads the cache policy file whenever it changes and hands a
// copy of base with the overlay applied to apply. It blocks until ctx is done.
func WatchPolicy(ctx context.Context, base Config, logger *zap.Logger, apply func(Config)) error {
	if base.CachePolicyFile == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		_ = watcher.Close()
	}()

	// Watch the directory so editors that replace the file by rename are seen.
	target := filepath.Clean(base.CachePolicyFile)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}
	logger.Info("watching cache policy file", zap.String("path", target))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			next := base
			if err := next.ApplyPolicyFile(target); err != nil {
				logger.Warn("ignoring invalid cache policy file", zap.Error(err))
				continue
			}
			logger.Info("cache policy reloaded",
				zap.Bool("enabled", next.CacheEnabled),
				zap.Duration("max_age", next.CacheMaxAge),
				zap.Uint64("max_block_lag", next.CacheMaxBlockLag),
			)
			apply(next)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("policy watcher error", zap.Error(err))
		}
	}
}
