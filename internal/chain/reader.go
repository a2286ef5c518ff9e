// Package chain reads job records directly from the job registry contract.
// It is the source of truth the cache falls back to.
package chain

import (
	"context"
	"errors"

	"github.com/linskybing/chainjob-cache/internal/domain/job"
)

var (
	// ErrTimeout means the node did not answer before the deadline. Callers may retry.
	ErrTimeout = errors.New("chain read timed out")
	// ErrReverted means the contract call reverted. Retrying will not help.
	ErrReverted = errors.New("contract call reverted")
	// ErrDecode means the node answered with data that does not match the ABI.
	ErrDecode = errors.New("cannot decode contract response")
)

//go:generate mockgen -source=reader.go -destination=mock/reader.go -package=mock

// Reader is the fallback read path against the registry contract.
type Reader interface {
	GetJob(ctx context.Context, id uint64) (*job.Job, error)
	ListJobs(ctx context.Context, f job.Filter) ([]job.Job, error)
	JobCount(ctx context.Context) (uint64, error)
	HeadBlock(ctx context.Context) (uint64, error)
}
