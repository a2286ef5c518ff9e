package job

import (
	"context"
	"time"

	"github.com/linskybing/chainjob-cache/internal/chain"
	"github.com/linskybing/chainjob-cache/internal/domain/job"
	"go.uber.org/zap"
)

// Source tells the client which path produced a response.
type Source string

const (
	SourceCache      Source = "cache"
	SourceBlockchain Source = "blockchain"
)

// CacheReader is the part of the cache facade the read path needs.
type CacheReader interface {
	GetCachedJob(ctx context.Context, id uint64) (*job.Job, bool)
	GetCachedJobs(ctx context.Context, f job.Filter) ([]job.Job, bool)
}

// Service handles the cache-first job read path
type Service struct {
	cache           CacheReader
	chain           chain.Reader
	fallbackTimeout time.Duration
	logger          *zap.Logger
}

// NewService creates a new job service
func NewService(cache CacheReader, reader chain.Reader, fallbackTimeout time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fallbackTimeout <= 0 {
		fallbackTimeout = 10 * time.Second
	}
	return &Service{
		cache:           cache,
		chain:           reader,
		fallbackTimeout: fallbackTimeout,
		logger:          logger,
	}
}

// GetJob returns one job, from the mirror when it can answer and from the
// registry otherwise. Chain results are not written back.
func (s *Service) GetJob(ctx context.Context, id uint64) (*job.Job, Source, error) {
	if j, ok := s.cache.GetCachedJob(ctx, id); ok {
		return j, SourceCache, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.fallbackTimeout)
	defer cancel()

	j, err := s.chain.GetJob(ctx, id)
	if err != nil {
		return nil, SourceBlockchain, err
	}
	s.logger.Debug("job served from chain", zap.Uint64("job_id", id))
	return j, SourceBlockchain, nil
}

// ListJobs returns one filtered page of jobs ordered by id.
func (s *Service) ListJobs(ctx context.Context, f job.Filter) ([]job.Job, Source, error) {
	if jobs, ok := s.cache.GetCachedJobs(ctx, f); ok {
		return jobs, SourceCache, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.fallbackTimeout)
	defer cancel()

	jobs, err := s.chain.ListJobs(ctx, f)
	if err != nil {
		return nil, SourceBlockchain, err
	}
	if jobs == nil {
		jobs = []job.Job{}
	}
	return jobs, SourceBlockchain, nil
}
