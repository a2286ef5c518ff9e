// Package cache is the fast path of the job read path: it answers from the
// local mirror when the mirror is fresh and reports absence otherwise.
package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/linskybing/chainjob-cache/internal/domain/job"
	"github.com/linskybing/chainjob-cache/internal/domain/syncrun"
	"go.uber.org/zap"
)

// Facade fronts the record store. Store failures are logged and reported as
// absence so the caller can fall back to the chain.
type Facade struct {
	store        job.Store
	policy       atomic.Pointer[Policy]
	hits         atomic.Uint64
	misses       atomic.Uint64
	evictedAt    atomic.Int64 // unix nanos of the latest eviction, 0 if none
	logger       *zap.Logger
	readTimeout  time.Duration
	statsTimeout time.Duration
	now          func() time.Time
}

type Option func(*Facade)

func WithReadTimeout(d time.Duration) Option {
	return func(f *Facade) { f.readTimeout = d }
}

func WithStatsTimeout(d time.Duration) Option {
	return func(f *Facade) { f.statsTimeout = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(f *Facade) { f.now = now }
}

func NewFacade(store job.Store, p Policy, logger *zap.Logger, opts ...Option) *Facade {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Facade{
		store:        store,
		logger:       logger,
		readTimeout:  2 * time.Second,
		statsTimeout: 2 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.SetPolicy(p)
	return f
}

// SetPolicy swaps the active policy. Safe for concurrent use.
func (f *Facade) SetPolicy(p Policy) {
	if p.MaxAge <= 0 {
		p.MaxAge = DefaultMaxAge
	}
	f.policy.Store(&p)
}

func (f *Facade) Policy() Policy {
	return *f.policy.Load()
}

// IsCacheEnabled reports the process-wide cache switch.
func (f *Facade) IsCacheEnabled() bool {
	return f.policy.Load().Enabled
}

// GetCachedJob returns the cached job when its entry is fresh.
func (f *Facade) GetCachedJob(ctx context.Context, id uint64) (*job.Job, bool) {
	p := f.Policy()
	if !p.Enabled {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, f.readTimeout)
	defer cancel()

	entry, err := f.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, job.ErrJobNotFound) {
			f.logger.Warn("cache read failed", zap.Uint64("job_id", id), zap.Error(err))
		}
		f.misses.Add(1)
		return nil, false
	}

	tracker := newTracker(p, f.now(), nil)
	if p.MaxBlockLag > 0 {
		lastRun, err := f.store.LastSyncRun(ctx, false)
		if err != nil {
			f.logger.Warn("cache sync state unavailable", zap.Error(err))
			f.misses.Add(1)
			return nil, false
		}
		tracker = newTracker(p, f.now(), lastRun)
	}

	if !tracker.Fresh(entry) {
		f.misses.Add(1)
		return nil, false
	}
	f.hits.Add(1)
	j := entry.Job
	return &j, true
}

// GetCachedJobs answers a listing from the mirror. ok is false when the mirror
// cannot answer; an empty slice with ok true is a genuine no-match.
func (f *Facade) GetCachedJobs(ctx context.Context, filter job.Filter) ([]job.Job, bool) {
	p := f.Policy()
	if !p.Enabled {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, f.readTimeout)
	defer cancel()

	lastSuccess, err := f.store.LastSyncRun(ctx, true)
	if err != nil {
		f.logger.Warn("cache sync state unavailable", zap.Error(err))
		f.misses.Add(1)
		return nil, false
	}
	tracker := newTracker(p, f.now(), lastSuccess)
	if !tracker.MirrorFresh(lastSuccess) || !f.coversEvictions(lastSuccess) {
		f.misses.Add(1)
		return nil, false
	}

	entries, err := f.store.List(ctx, filter)
	if err != nil {
		f.logger.Warn("cache list failed", zap.Error(err))
		f.misses.Add(1)
		return nil, false
	}

	jobs := make([]job.Job, 0, len(entries))
	for i := range entries {
		if !tracker.Fresh(&entries[i]) {
			f.misses.Add(1)
			return nil, false
		}
		jobs = append(jobs, entries[i].Job)
	}
	f.hits.Add(1)
	return jobs, true
}

// Evict drops one entry from the mirror. The next sync pass reads the id
// again; until a pass started after the eviction succeeds, listings fall back
// to the chain.
func (f *Facade) Evict(ctx context.Context, id uint64) error {
	if err := f.store.Delete(ctx, id); err != nil {
		return err
	}
	f.evictedAt.Store(f.now().UnixNano())
	return nil
}

func (f *Facade) coversEvictions(lastSuccess *syncrun.Run) bool {
	ev := f.evictedAt.Load()
	return ev == 0 || lastSuccess.StartedAt.UnixNano() > ev
}
