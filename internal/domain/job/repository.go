package job

import (
	"context"

	"github.com/linskybing/chainjob-cache/internal/domain/syncrun"
)

//go:generate mockgen -source=repository.go -destination=../../../repository/mock/store.go -package=mock

// Store defines the record store contract for mirrored jobs.
type Store interface {
	Get(ctx context.Context, id uint64) (*Entry, error)
	List(ctx context.Context, f Filter) ([]Entry, error)
	Count(ctx context.Context) (int64, error)
	IDs(ctx context.Context) ([]uint64, error)        // every stored id, ascending
	RefreshIDs(ctx context.Context) ([]uint64, error) // ids whose status is not terminal
	All(ctx context.Context) ([]Entry, error)
	Upsert(ctx context.Context, entries []Entry) error // keeps rows synced at a newer block
	Delete(ctx context.Context, id uint64) error
	RecordSyncRun(ctx context.Context, run *syncrun.Run) error
	LastSyncRun(ctx context.Context, successOnly bool) (*syncrun.Run, error)
	Backend() string
	Close() error
}
