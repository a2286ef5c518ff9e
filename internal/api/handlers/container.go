package handlers

import (
	"context"

	"github.com/linskybing/chainjob-cache/internal/application/cache"
	appjob "github.com/linskybing/chainjob-cache/internal/application/job"
	"github.com/linskybing/chainjob-cache/internal/domain/job"
	"go.uber.org/zap"
)

// JobReader is the cache-first read path.
type JobReader interface {
	GetJob(ctx context.Context, id uint64) (*job.Job, appjob.Source, error)
	ListJobs(ctx context.Context, f job.Filter) ([]job.Job, appjob.Source, error)
}

// CacheAdmin exposes mirror state and eviction.
type CacheAdmin interface {
	GetCacheStats(ctx context.Context) (cache.Stats, error)
	Evict(ctx context.Context, id uint64) error
}

// SyncTrigger asks the in-process syncer for an immediate pass.
type SyncTrigger interface {
	Trigger() bool
}

// SnapshotExporter writes the mirror to object storage.
type SnapshotExporter interface {
	Export(ctx context.Context) (string, error)
}

// Deps lists what the handlers need. Syncer and Snapshots may be nil when the
// feature is not enabled in this process.
type Deps struct {
	Jobs      JobReader
	Cache     CacheAdmin
	Syncer    SyncTrigger
	Snapshots SnapshotExporter
	Logger    *zap.Logger
}

type Handlers struct {
	Job    *JobHandler
	Cache  *CacheHandler
	Health *HealthHandler
}

func New(d Deps) *Handlers {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Handlers{
		Job:    NewJobHandler(d.Jobs, d.Logger),
		Cache:  NewCacheHandler(d.Cache, d.Syncer, d.Snapshots, d.Logger),
		Health: NewHealthHandler(),
	}
}
