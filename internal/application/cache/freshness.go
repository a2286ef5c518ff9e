package cache

import (
	"time"

	"github.com/linskybing/chainjob-cache/internal/domain/job"
	"github.com/linskybing/chainjob-cache/internal/domain/syncrun"
)

const DefaultMaxAge = 45 * time.Second

// Policy decides when the mirror may answer without consulting the chain.
type Policy struct {
	Enabled     bool
	MaxAge      time.Duration
	MaxBlockLag uint64 // 0 disables the block-lag check
}

// Tracker applies a Policy to cache entries.
type Tracker struct {
	policy Policy
	now    time.Time
	head   uint64 // head block of the latest sync run, 0 if unknown
}

func newTracker(p Policy, now time.Time, lastRun *syncrun.Run) Tracker {
	t := Tracker{policy: p, now: now}
	if lastRun != nil {
		t.head = lastRun.HeadBlock
	}
	return t
}

// Fresh reports whether e can be served as-is. Terminal jobs never change
// on-chain, so their entries do not age.
func (t Tracker) Fresh(e *job.Entry) bool {
	if e.Status.IsTerminal() {
		return true
	}
	if t.now.Sub(e.SyncedAt) > t.maxAge() {
		return false
	}
	if t.policy.MaxBlockLag > 0 && t.head > e.SyncedBlock && t.head-e.SyncedBlock > t.policy.MaxBlockLag {
		return false
	}
	return true
}

// MirrorFresh reports whether the latest successful sync is recent enough for
// the mirror to answer listings.
func (t Tracker) MirrorFresh(lastSuccess *syncrun.Run) bool {
	if lastSuccess == nil {
		return false
	}
	return t.now.Sub(lastSuccess.FinishedAt) <= t.maxAge()
}

func (t Tracker) maxAge() time.Duration {
	if t.policy.MaxAge <= 0 {
		return DefaultMaxAge
	}
	return t.policy.MaxAge
}
