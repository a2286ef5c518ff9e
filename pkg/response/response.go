package response

import (
	"time"

	"github.com/linskybing/chainjob-cache/internal/application/cache"
	"github.com/linskybing/chainjob-cache/internal/domain/job"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// JobResponse is the single-job read.
type JobResponse struct {
	Job    *job.Job `json:"job"`
	Source string   `json:"source"`
}

// JobListResponse is one page of a filtered listing.
type JobListResponse struct {
	Jobs   []job.Job `json:"jobs"`
	Count  int       `json:"count"`
	Source string    `json:"source"`
}

type CacheStatsResponse struct {
	Success   bool        `json:"success"`
	Cache     cache.Stats `json:"cache"`
	Timestamp time.Time   `json:"timestamp"`
}

type SnapshotResponse struct {
	Success bool   `json:"success"`
	Object  string `json:"object"`
}
