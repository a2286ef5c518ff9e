package cache

import (
	"context"
	"fmt"
	"time"
)

// Stats is the operator view of the mirror. It never touches the chain.
type Stats struct {
	Enabled                bool       `json:"enabled"`
	Backend                string     `json:"backend"`
	EntryCount             int64      `json:"entryCount"`
	Hits                   uint64     `json:"hits"`
	Misses                 uint64     `json:"misses"`
	HitRate                float64    `json:"hitRate"`
	LastSyncTime           *time.Time `json:"lastSyncTime"`
	LastSyncBlock          uint64     `json:"lastSyncBlock"`
	LastSyncSuccess        bool       `json:"lastSyncSuccess"`
	LastSuccessfulSyncTime *time.Time `json:"lastSuccessfulSyncTime"`
	MaxAgeSeconds          float64    `json:"maxAgeSeconds"`
	MaxBlockLag            uint64     `json:"maxBlockLag"`
}

func (f *Facade) GetCacheStats(ctx context.Context) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, f.statsTimeout)
	defer cancel()

	p := f.Policy()
	s := Stats{
		Enabled:       p.Enabled,
		Backend:       f.store.Backend(),
		Hits:          f.hits.Load(),
		Misses:        f.misses.Load(),
		MaxAgeSeconds: p.MaxAge.Seconds(),
		MaxBlockLag:   p.MaxBlockLag,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}

	count, err := f.store.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count cached jobs: %w", err)
	}
	s.EntryCount = count

	last, err := f.store.LastSyncRun(ctx, false)
	if err != nil {
		return Stats{}, fmt.Errorf("load last sync run: %w", err)
	}
	if last != nil {
		finished := last.FinishedAt
		s.LastSyncTime = &finished
		s.LastSyncBlock = last.HeadBlock
		s.LastSyncSuccess = last.Success
	}

	success, err := f.store.LastSyncRun(ctx, true)
	if err != nil {
		return Stats{}, fmt.Errorf("load last successful sync run: %w", err)
	}
	if success != nil {
		finished := success.FinishedAt
		s.LastSuccessfulSyncTime = &finished
	}
	return s, nil
}
