// Package snapshot exports the mirror to object storage and restores it, so a
// fresh deployment does not have to read the whole registry before serving.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/linskybing/chainjob-cache/internal/domain/job"
	"go.uber.org/zap"
)

const (
	formatVersion = 1
	latestName    = "latest.json"
)

type document struct {
	Version    int         `json:"version"`
	ExportedAt time.Time   `json:"exportedAt"`
	Entries    []job.Entry `json:"entries"`
}

// Service handles snapshot export and restore
type Service struct {
	store  job.Store
	bucket Bucket
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store job.Store, bucket Bucket, prefix string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, bucket: bucket, prefix: prefix, logger: logger, now: time.Now}
}

// Export writes every cached entry to a timestamped object and to latest.json.
// It returns the timestamped object name.
func (s *Service) Export(ctx context.Context) (string, error) {
	entries, err := s.store.All(ctx)
	if err != nil {
		return "", fmt.Errorf("load entries: %w", err)
	}

	exportedAt := s.now().UTC()
	raw, err := json.Marshal(document{Version: formatVersion, ExportedAt: exportedAt, Entries: entries})
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	name := path.Join(s.prefix, fmt.Sprintf("jobs-%d.json", exportedAt.Unix()))
	for _, key := range []string{name, path.Join(s.prefix, latestName)} {
		if err := s.bucket.Put(ctx, key, bytes.NewReader(raw), int64(len(raw))); err != nil {
			return "", fmt.Errorf("upload %s: %w", key, err)
		}
	}

	s.logger.Info("snapshot exported", zap.String("object", name), zap.Int("entries", len(entries)))
	return name, nil
}

// Restore upserts the latest snapshot. Restored rows keep their sync markers,
// so they only serve reads while still fresh. A missing snapshot restores
// nothing and is not an error.
func (s *Service) Restore(ctx context.Context) (int, error) {
	key := path.Join(s.prefix, latestName)
	rc, err := s.bucket.Get(ctx, key)
	if errors.Is(err, ErrNoSnapshot) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", key, err)
	}
	defer rc.Close()

	var doc document
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return 0, fmt.Errorf("decode %s: %w", key, err)
	}
	if doc.Version != formatVersion {
		return 0, fmt.Errorf("snapshot %s: unsupported version %d", key, doc.Version)
	}
	if err := s.store.Upsert(ctx, doc.Entries); err != nil {
		return 0, fmt.Errorf("restore entries: %w", err)
	}

	s.logger.Info("snapshot restored", zap.String("object", key), zap.Int("entries", len(doc.Entries)))
	return len(doc.Entries), nil
}
