package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/linskybing/chainjob-cache/internal/config/db"
	"github.com/linskybing/chainjob-cache/internal/domain/job"
	"github.com/linskybing/chainjob-cache/internal/domain/syncrun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	alice = "0x1111111111111111111111111111111111111111"
	bob   = "0x2222222222222222222222222222222222222222"
)

func setupJobRepo(t *testing.T) *DBJobRepo {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	repo := NewJobRepo(gdb)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func entry(id uint64, status job.Status, client string, block uint64) job.Entry {
	return job.Entry{
		Job: job.Job{
			ID:          id,
			Client:      client,
			Status:      status,
			Budget:      "1000000000000000000",
			Escrow:      job.ZeroAddress,
			MetadataURI: fmt.Sprintf("ipfs://job-%d", id),
		},
		SyncedBlock: block,
		SyncedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func statusPtr(s job.Status) *job.Status { return &s }
func strPtr(s string) *string            { return &s }

func TestDBJobRepo_UpsertAndGet(t *testing.T) {
	repo := setupJobRepo(t)
	ctx := context.Background()

	e := entry(1, job.StatusOpen, alice, 100)
	require.NoError(t, repo.Upsert(ctx, []job.Entry{e}))

	got, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, e.Job, got.Job)
	assert.Equal(t, uint64(100), got.SyncedBlock)

	_, err = repo.Get(ctx, 99)
	assert.ErrorIs(t, err, job.ErrJobNotFound)
}

func TestDBJobRepo_UpsertKeepsNewerBlock(t *testing.T) {
	repo := setupJobRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, []job.Entry{entry(1, job.StatusHired, alice, 200)}))

	// A write observed at an older block must not roll the mirror back.
	require.NoError(t, repo.Upsert(ctx, []job.Entry{entry(1, job.StatusOpen, alice, 150)}))
	got, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, job.StatusHired, got.Status)
	assert.Equal(t, uint64(200), got.SyncedBlock)

	freelancer := bob
	newer := entry(1, job.StatusCompleted, alice, 250)
	newer.Freelancer = &freelancer
	require.NoError(t, repo.Upsert(ctx, []job.Entry{newer}))
	got, err = repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, got.Status)
	require.NotNil(t, got.Freelancer)
	assert.Equal(t, bob, *got.Freelancer)
}

func TestDBJobRepo_List(t *testing.T) {
	repo := setupJobRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, []job.Entry{
		entry(1, job.StatusOpen, alice, 10),
		entry(2, job.StatusHired, alice, 10),
		entry(3, job.StatusOpen, bob, 10),
		entry(4, job.StatusOpen, alice, 10),
	}))

	ids := func(entries []job.Entry) []uint64 {
		out := make([]uint64, 0, len(entries))
		for _, e := range entries {
			out = append(out, e.ID)
		}
		return out
	}

	all, err := repo.List(ctx, job.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3, 4}, ids(all))

	open, err := repo.List(ctx, job.Filter{Status: statusPtr(job.StatusOpen), Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3, 4}, ids(open))

	aliceOpen, err := repo.List(ctx, job.Filter{Status: statusPtr(job.StatusOpen), Client: strPtr(alice), Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 4}, ids(aliceOpen))

	page, err := repo.List(ctx, job.Filter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3}, ids(page))

	none, err := repo.List(ctx, job.Filter{Status: statusPtr(job.StatusCancelled)})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDBJobRepo_Bookkeeping(t *testing.T) {
	repo := setupJobRepo(t)
	ctx := context.Background()

	stored, err := repo.IDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)

	require.NoError(t, repo.Upsert(ctx, []job.Entry{
		entry(1, job.StatusCompleted, alice, 10),
		entry(2, job.StatusHired, alice, 10),
		entry(3, job.StatusCancelled, bob, 10),
		entry(5, job.StatusOpen, bob, 10),
	}))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	stored, err = repo.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3, 5}, stored)

	refresh, err := repo.RefreshIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 5}, refresh)

	require.NoError(t, repo.Delete(ctx, 2))
	assert.ErrorIs(t, repo.Delete(ctx, 2), job.ErrJobNotFound)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDBJobRepo_SyncRuns(t *testing.T) {
	repo := setupJobRepo(t)
	ctx := context.Background()

	last, err := repo.LastSyncRun(ctx, false)
	require.NoError(t, err)
	assert.Nil(t, last)

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.RecordSyncRun(ctx, &syncrun.Run{
		ID: "run-1", StartedAt: base, FinishedAt: base.Add(time.Second), HeadBlock: 10, Success: true,
	}))
	require.NoError(t, repo.RecordSyncRun(ctx, &syncrun.Run{
		ID: "run-2", StartedAt: base.Add(time.Minute), FinishedAt: base.Add(time.Minute + time.Second), HeadBlock: 20, Failed: 1,
	}))

	last, err = repo.LastSyncRun(ctx, false)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "run-2", last.ID)

	ok, err := repo.LastSyncRun(ctx, true)
	require.NoError(t, err)
	require.NotNil(t, ok)
	assert.Equal(t, "run-1", ok.ID)
	assert.Equal(t, uint64(10), ok.HeadBlock)
}
