// Package ingest keeps the record store in step with the job registry. The
// syncer is the only component that writes mirrored jobs.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/linskybing/chainjob-cache/internal/chain"
	"github.com/linskybing/chainjob-cache/internal/domain/job"
	"github.com/linskybing/chainjob-cache/internal/domain/syncrun"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

// maxRecordedErrors caps the error list stored with a sync run.
const maxRecordedErrors = 20

// Seeder fills an empty store before the first pass.
type Seeder interface {
	Restore(ctx context.Context) (int, error)
}

type Options struct {
	Interval    time.Duration
	Concurrency int
	Seeder      Seeder
}

// Syncer mirrors registry state into the record store on a ticker.
type Syncer struct {
	store       job.Store
	chain       chain.Reader
	interval    time.Duration
	concurrency int
	seeder      Seeder
	logger      *zap.Logger
	now         func() time.Time

	mu      sync.Mutex
	trigger chan struct{}
	running atomic.Bool
}

// NewSyncer creates a new syncer
func NewSyncer(store job.Store, reader chain.Reader, opts Options, logger *zap.Logger) *Syncer {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		store:       store,
		chain:       reader,
		interval:    opts.Interval,
		concurrency: opts.Concurrency,
		seeder:      opts.Seeder,
		logger:      logger,
		now:         time.Now,
		trigger:     make(chan struct{}, 1),
	}
}

// Start runs a pass immediately and then on every tick or trigger until ctx
// is cancelled.
func (s *Syncer) Start(ctx context.Context) error {
	s.running.Store(true)
	defer s.running.Store(false)
	s.logger.Info("syncer started", zap.Duration("interval", s.interval))

	s.seed(ctx)
	s.pass(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("syncer stopped")
			return ctx.Err()
		case <-ticker.C:
			s.pass(ctx)
		case <-s.trigger:
			s.pass(ctx)
		}
	}
}

// Trigger asks a running syncer for an immediate pass. It reports false when
// the syncer is not running or a pass is already pending.
func (s *Syncer) Trigger() bool {
	if !s.running.Load() {
		return false
	}
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// IsRunning returns if active
func (s *Syncer) IsRunning() bool {
	return s.running.Load()
}

func (s *Syncer) pass(ctx context.Context) {
	run, err := s.SyncOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("sync pass failed", zap.Error(err))
		}
		return
	}
	s.logger.Info("sync pass finished",
		zap.String("run_id", run.ID),
		zap.Uint64("head_block", run.HeadBlock),
		zap.Uint64("job_count", run.JobCount),
		zap.Int("fetched", run.Fetched),
		zap.Int("failed", run.Failed),
		zap.Int("skipped", run.Skipped),
	)
}

func (s *Syncer) seed(ctx context.Context) {
	if s.seeder == nil {
		return
	}
	n, err := s.store.Count(ctx)
	if err != nil || n > 0 {
		return
	}
	restored, err := s.seeder.Restore(ctx)
	if err != nil {
		s.logger.Warn("seeding from snapshot failed", zap.Error(err))
		return
	}
	s.logger.Info("seeded store from snapshot", zap.Int("entries", restored))
}

// SyncOnce performs one ingestion pass: every registry id missing from the
// store plus every stored job that can still change. The run is recorded even
// when the pass fails. A run succeeds when no id failed transiently; ids the
// registry reverts on or returns undecodable data for are counted as skipped.
func (s *Syncer) SyncOnce(ctx context.Context) (*syncrun.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := &syncrun.Run{ID: uuid.NewString(), StartedAt: s.now().UTC()}
	var failures []string

	finish := func(err error) (*syncrun.Run, error) {
		if err != nil {
			failures = append(failures, err.Error())
		}
		run.FinishedAt = s.now().UTC()
		run.Success = err == nil && run.Failed == 0
		if len(failures) > maxRecordedErrors {
			failures = failures[:maxRecordedErrors]
		}
		if len(failures) > 0 {
			raw, _ := json.Marshal(failures)
			run.Errors = datatypes.JSON(raw)
		}
		if recErr := s.store.RecordSyncRun(context.WithoutCancel(ctx), run); recErr != nil {
			s.logger.Error("record sync run failed", zap.String("run_id", run.ID), zap.Error(recErr))
		}
		return run, err
	}

	head, err := s.chain.HeadBlock(ctx)
	if err != nil {
		return finish(fmt.Errorf("read head block: %w", err))
	}
	run.HeadBlock = head

	count, err := s.chain.JobCount(ctx)
	if err != nil {
		return finish(fmt.Errorf("read job count: %w", err))
	}
	run.JobCount = count

	ids, err := s.pending(ctx, count)
	if err != nil {
		return finish(err)
	}

	syncedAt := s.now().UTC()
	var (
		mu      sync.Mutex
		entries = make([]job.Entry, 0, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			j, err := s.chain.GetJob(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, job.ErrJobNotFound):
				return nil
			case errors.Is(err, chain.ErrReverted), errors.Is(err, chain.ErrDecode):
				run.Skipped++
				failures = append(failures, err.Error())
				return nil
			case err != nil:
				if gctx.Err() != nil {
					return err
				}
				run.Failed++
				failures = append(failures, err.Error())
				return nil
			}
			entries = append(entries, job.Entry{Job: *j, SyncedBlock: head, SyncedAt: syncedAt})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return finish(fmt.Errorf("fetch jobs: %w", err))
	}

	sort.Slice(entries, func(a, b int) bool { return entries[a].ID < entries[b].ID })
	if err := s.store.Upsert(ctx, entries); err != nil {
		return finish(fmt.Errorf("upsert jobs: %w", err))
	}
	run.Fetched = len(entries)
	return finish(nil)
}

// pending lists the ids a pass must read, in ascending order. Ids missing
// from the store are read again on every pass until they land, which covers
// earlier failures and evictions as well as new jobs.
func (s *Syncer) pending(ctx context.Context, count uint64) ([]uint64, error) {
	stored, err := s.store.IDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("read cached ids: %w", err)
	}
	refresh, err := s.store.RefreshIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("read refresh ids: %w", err)
	}

	have := make(map[uint64]struct{}, len(stored))
	for _, id := range stored {
		have[id] = struct{}{}
	}
	ids := make([]uint64, 0, len(refresh))
	for _, id := range refresh {
		if id <= count {
			ids = append(ids, id)
		}
	}
	for id := uint64(1); id <= count; id++ {
		if _, ok := have[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	return ids, nil
}
