package repository

import (
	"context"
	"errors"

	"github.com/linskybing/chainjob-cache/internal/domain/job"
	"github.com/linskybing/chainjob-cache/internal/domain/syncrun"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const upsertBatchSize = 200

var mirroredColumns = []string{
	"client", "freelancer", "status", "budget", "escrow", "metadata_uri", "synced_block", "synced_at",
}

// DBJobRepo is the SQL-backed record store.
type DBJobRepo struct {
	db *gorm.DB
}

func NewJobRepo(db *gorm.DB) *DBJobRepo {
	return &DBJobRepo{
		db: db,
	}
}

func (r *DBJobRepo) Get(ctx context.Context, id uint64) (*job.Entry, error) {
	var e job.Entry
	err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, job.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *DBJobRepo) List(ctx context.Context, f job.Filter) ([]job.Entry, error) {
	q := r.db.WithContext(ctx).Model(&job.Entry{})
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.Client != nil {
		q = q.Where("client = ?", *f.Client)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = job.DefaultLimit
	}

	var entries []job.Entry
	err := q.Order("id ASC").Limit(limit).Offset(f.Offset).Find(&entries).Error
	return entries, err
}

func (r *DBJobRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&job.Entry{}).Count(&n).Error
	return n, err
}

func (r *DBJobRepo) IDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&job.Entry{}).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

func (r *DBJobRepo) RefreshIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&job.Entry{}).
		Where("status NOT IN ?", []int{int(job.StatusCancelled), int(job.StatusCompleted)}).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *DBJobRepo) All(ctx context.Context) ([]job.Entry, error) {
	var entries []job.Entry
	err := r.db.WithContext(ctx).Order("id ASC").Find(&entries).Error
	return entries, err
}

func (r *DBJobRepo) Upsert(ctx context.Context, entries []job.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(mirroredColumns),
		Where: clause.Where{Exprs: []clause.Expression{
			gorm.Expr("cached_jobs.synced_block <= excluded.synced_block"),
		}},
	}).CreateInBatches(entries, upsertBatchSize).Error
}

func (r *DBJobRepo) Delete(ctx context.Context, id uint64) error {
	res := r.db.WithContext(ctx).Delete(&job.Entry{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return job.ErrJobNotFound
	}
	return nil
}

func (r *DBJobRepo) RecordSyncRun(ctx context.Context, run *syncrun.Run) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *DBJobRepo) LastSyncRun(ctx context.Context, successOnly bool) (*syncrun.Run, error) {
	q := r.db.WithContext(ctx).Order("finished_at DESC")
	if successOnly {
		q = q.Where("success = ?", true)
	}
	var run syncrun.Run
	err := q.First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *DBJobRepo) Backend() string {
	return "sql"
}

func (r *DBJobRepo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
