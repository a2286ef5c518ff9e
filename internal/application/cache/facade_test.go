package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/linskybing/chainjob-cache/internal/domain/job"
	"github.com/linskybing/chainjob-cache/internal/domain/syncrun"
	"github.com/linskybing/chainjob-cache/internal/repository/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const client = "0x1111111111111111111111111111111111111111"

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupFacade(t *testing.T, p Policy) (*Facade, *mock.MockStore) {
	ctrl := gomock.NewController(t)
	t.Cleanup(func() { ctrl.Finish() })

	store := mock.NewMockStore(ctrl)
	f := NewFacade(store, p, nil, WithClock(func() time.Time { return now }))
	return f, store
}

func cached(id uint64, status job.Status, age time.Duration, block uint64) job.Entry {
	return job.Entry{
		Job: job.Job{
			ID:          id,
			Client:      client,
			Status:      status,
			Budget:      "100",
			Escrow:      job.ZeroAddress,
			MetadataURI: "ipfs://x",
		},
		SyncedBlock: block,
		SyncedAt:    now.Add(-age),
	}
}

func successfulRun(age time.Duration, head uint64) *syncrun.Run {
	return &syncrun.Run{ID: "run", FinishedAt: now.Add(-age), HeadBlock: head, Success: true}
}

// --------------------- Tracker ---------------------
func TestTracker_Fresh(t *testing.T) {
	p := Policy{Enabled: true, MaxAge: 30 * time.Second, MaxBlockLag: 10}
	tr := newTracker(p, now, &syncrun.Run{HeadBlock: 100})

	fresh := cached(1, job.StatusOpen, 5*time.Second, 95)
	assert.True(t, tr.Fresh(&fresh))

	old := cached(1, job.StatusOpen, time.Minute, 95)
	assert.False(t, tr.Fresh(&old))

	lagging := cached(1, job.StatusHired, time.Second, 80)
	assert.False(t, tr.Fresh(&lagging))

	// Terminal records never age.
	done := cached(1, job.StatusCompleted, 24*time.Hour, 1)
	assert.True(t, tr.Fresh(&done))
	cancelled := cached(1, job.StatusCancelled, 24*time.Hour, 1)
	assert.True(t, tr.Fresh(&cancelled))

	noHead := newTracker(p, now, nil)
	assert.True(t, noHead.Fresh(&lagging))
}

func TestTracker_MirrorFresh(t *testing.T) {
	tr := newTracker(Policy{Enabled: true, MaxAge: 30 * time.Second}, now, nil)
	assert.False(t, tr.MirrorFresh(nil))
	assert.True(t, tr.MirrorFresh(successfulRun(10*time.Second, 1)))
	assert.False(t, tr.MirrorFresh(successfulRun(time.Minute, 1)))
}

// --------------------- GetCachedJob ---------------------
func TestGetCachedJob_Disabled(t *testing.T) {
	f, _ := setupFacade(t, Policy{Enabled: false})

	j, ok := f.GetCachedJob(context.Background(), 1)
	assert.False(t, ok)
	assert.Nil(t, j)
	assert.False(t, f.IsCacheEnabled())
}

func TestGetCachedJob_Hit(t *testing.T) {
	f, store := setupFacade(t, Policy{Enabled: true})
	e := cached(7, job.StatusOpen, time.Second, 10)
	store.EXPECT().Get(gomock.Any(), uint64(7)).Return(&e, nil)

	j, ok := f.GetCachedJob(context.Background(), 7)
	require.True(t, ok)
	assert.Equal(t, e.Job, *j)
}

func TestGetCachedJob_Misses(t *testing.T) {
	f, store := setupFacade(t, Policy{Enabled: true, MaxAge: 10 * time.Second})
	stale := cached(2, job.StatusHired, time.Minute, 10)

	store.EXPECT().Get(gomock.Any(), uint64(1)).Return(nil, job.ErrJobNotFound)
	store.EXPECT().Get(gomock.Any(), uint64(2)).Return(&stale, nil)
	store.EXPECT().Get(gomock.Any(), uint64(3)).Return(nil, errors.New("connection refused"))

	for _, id := range []uint64{1, 2, 3} {
		j, ok := f.GetCachedJob(context.Background(), id)
		assert.False(t, ok, "id %d", id)
		assert.Nil(t, j)
	}
}

func TestGetCachedJob_BlockLag(t *testing.T) {
	f, store := setupFacade(t, Policy{Enabled: true, MaxBlockLag: 5})
	e := cached(1, job.StatusOpen, time.Second, 90)
	store.EXPECT().Get(gomock.Any(), uint64(1)).Return(&e, nil)
	store.EXPECT().LastSyncRun(gomock.Any(), false).Return(&syncrun.Run{HeadBlock: 100}, nil)

	_, ok := f.GetCachedJob(context.Background(), 1)
	assert.False(t, ok)
}

// --------------------- GetCachedJobs ---------------------
func TestGetCachedJobs_Hit(t *testing.T) {
	f, store := setupFacade(t, Policy{Enabled: true})
	open := job.StatusOpen
	filter := job.Filter{Status: &open, Limit: job.DefaultLimit}

	store.EXPECT().LastSyncRun(gomock.Any(), true).Return(successfulRun(5*time.Second, 50), nil)
	store.EXPECT().List(gomock.Any(), filter).Return([]job.Entry{
		cached(1, job.StatusOpen, 5*time.Second, 50),
		cached(3, job.StatusOpen, 5*time.Second, 50),
	}, nil)

	jobs, ok := f.GetCachedJobs(context.Background(), filter)
	require.True(t, ok)
	require.Len(t, jobs, 2)
	assert.Equal(t, uint64(1), jobs[0].ID)
	assert.Equal(t, uint64(3), jobs[1].ID)
}

func TestGetCachedJobs_EmptyIsAnAnswer(t *testing.T) {
	f, store := setupFacade(t, Policy{Enabled: true})
	store.EXPECT().LastSyncRun(gomock.Any(), true).Return(successfulRun(time.Second, 1), nil)
	store.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, nil)

	jobs, ok := f.GetCachedJobs(context.Background(), job.Filter{})
	assert.True(t, ok)
	assert.NotNil(t, jobs)
	assert.Empty(t, jobs)
}

func TestGetCachedJobs_NeverSynced(t *testing.T) {
	f, store := setupFacade(t, Policy{Enabled: true})
	store.EXPECT().LastSyncRun(gomock.Any(), true).Return(nil, nil)

	_, ok := f.GetCachedJobs(context.Background(), job.Filter{})
	assert.False(t, ok)
}

func TestGetCachedJobs_StaleMirror(t *testing.T) {
	f, store := setupFacade(t, Policy{Enabled: true, MaxAge: 20 * time.Second})
	store.EXPECT().LastSyncRun(gomock.Any(), true).Return(successfulRun(time.Minute, 1), nil)

	_, ok := f.GetCachedJobs(context.Background(), job.Filter{})
	assert.False(t, ok)
}

func TestGetCachedJobs_StaleRow(t *testing.T) {
	f, store := setupFacade(t, Policy{Enabled: true, MaxAge: 20 * time.Second})
	store.EXPECT().LastSyncRun(gomock.Any(), true).Return(successfulRun(time.Second, 1), nil)
	store.EXPECT().List(gomock.Any(), gomock.Any()).Return([]job.Entry{
		cached(1, job.StatusOpen, time.Second, 1),
		cached(2, job.StatusOpen, time.Hour, 1),
	}, nil)

	_, ok := f.GetCachedJobs(context.Background(), job.Filter{})
	assert.False(t, ok)
}

func TestGetCachedJobs_StoreError(t *testing.T) {
	f, store := setupFacade(t, Policy{Enabled: true})
	store.EXPECT().LastSyncRun(gomock.Any(), true).Return(successfulRun(time.Second, 1), nil)
	store.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, errors.New("redis: connection pool timeout"))

	_, ok := f.GetCachedJobs(context.Background(), job.Filter{})
	assert.False(t, ok)
}

// --------------------- Policy / Stats ---------------------
func TestGetCachedJobs_WaitsForSyncAfterEvict(t *testing.T) {
	f, store := setupFacade(t, Policy{Enabled: true})
	ctx := context.Background()

	// ---- Setup ----
	store.EXPECT().Delete(gomock.Any(), uint64(2)).Return(nil)
	require.NoError(t, f.Evict(ctx, 2))

	// A run that started before the eviction cannot have restored the row.
	before := successfulRun(time.Second, 10)
	before.StartedAt = now.Add(-2 * time.Second)
	store.EXPECT().LastSyncRun(gomock.Any(), true).Return(before, nil)

	_, ok := f.GetCachedJobs(ctx, job.Filter{})
	assert.False(t, ok)

	after := successfulRun(-2*time.Second, 11)
	after.StartedAt = now.Add(time.Second)
	store.EXPECT().LastSyncRun(gomock.Any(), true).Return(after, nil)
	store.EXPECT().List(gomock.Any(), gomock.Any()).Return([]job.Entry{
		cached(1, job.StatusOpen, 0, 11),
		cached(2, job.StatusCompleted, 0, 11),
	}, nil)

	jobs, ok := f.GetCachedJobs(ctx, job.Filter{})
	require.True(t, ok)
	assert.Len(t, jobs, 2)
}

func TestEvict_StoreErrorKeepsListings(t *testing.T) {
	f, store := setupFacade(t, Policy{Enabled: true})
	ctx := context.Background()

	store.EXPECT().Delete(gomock.Any(), uint64(9)).Return(job.ErrJobNotFound)
	assert.ErrorIs(t, f.Evict(ctx, 9), job.ErrJobNotFound)

	store.EXPECT().LastSyncRun(gomock.Any(), true).Return(successfulRun(time.Second, 1), nil)
	store.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, nil)
	_, ok := f.GetCachedJobs(ctx, job.Filter{})
	assert.True(t, ok)
}

func TestSetPolicy(t *testing.T) {
	f, _ := setupFacade(t, Policy{Enabled: true})
	assert.Equal(t, DefaultMaxAge, f.Policy().MaxAge)

	f.SetPolicy(Policy{Enabled: false, MaxAge: time.Minute})
	assert.False(t, f.IsCacheEnabled())
	assert.Equal(t, time.Minute, f.Policy().MaxAge)
}

func TestGetCacheStats(t *testing.T) {
	f, store := setupFacade(t, Policy{Enabled: true, MaxAge: 30 * time.Second, MaxBlockLag: 4})

	e := cached(1, job.StatusOpen, time.Second, 10)
	store.EXPECT().Get(gomock.Any(), uint64(1)).Return(&e, nil)
	store.EXPECT().Get(gomock.Any(), uint64(2)).Return(nil, job.ErrJobNotFound)
	store.EXPECT().LastSyncRun(gomock.Any(), false).Return(&syncrun.Run{HeadBlock: 12}, nil)
	f.GetCachedJob(context.Background(), 1)
	f.GetCachedJob(context.Background(), 2)

	failed := &syncrun.Run{FinishedAt: now.Add(-time.Second), HeadBlock: 12, Success: false}
	ok := successfulRun(20*time.Second, 11)
	store.EXPECT().Backend().Return("sql")
	store.EXPECT().Count(gomock.Any()).Return(int64(42), nil)
	store.EXPECT().LastSyncRun(gomock.Any(), false).Return(failed, nil)
	store.EXPECT().LastSyncRun(gomock.Any(), true).Return(ok, nil)

	stats, err := f.GetCacheStats(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.Enabled)
	assert.Equal(t, "sql", stats.Backend)
	assert.Equal(t, int64(42), stats.EntryCount)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
	require.NotNil(t, stats.LastSyncTime)
	assert.Equal(t, failed.FinishedAt, *stats.LastSyncTime)
	assert.Equal(t, uint64(12), stats.LastSyncBlock)
	assert.False(t, stats.LastSyncSuccess)
	require.NotNil(t, stats.LastSuccessfulSyncTime)
	assert.Equal(t, ok.FinishedAt, *stats.LastSuccessfulSyncTime)
	assert.Equal(t, 30.0, stats.MaxAgeSeconds)
	assert.Equal(t, uint64(4), stats.MaxBlockLag)
}

func TestGetCacheStats_StoreError(t *testing.T) {
	f, store := setupFacade(t, Policy{Enabled: true})
	store.EXPECT().Backend().Return("redis")
	store.EXPECT().Count(gomock.Any()).Return(int64(0), errors.New("dial tcp: i/o timeout"))

	_, err := f.GetCacheStats(context.Background())
	assert.Error(t, err)
}
