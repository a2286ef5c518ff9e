package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/linskybing/chainjob-cache/internal/chain"
	"github.com/linskybing/chainjob-cache/internal/domain/job"
)

// FakeChain is an in-memory job registry.
type FakeChain struct {
	mu      sync.Mutex
	jobs    map[uint64]job.Job
	fail    map[uint64]error
	calls   map[uint64]int
	count   uint64
	head    uint64
	HeadErr error
	ListErr error
}

var _ chain.Reader = (*FakeChain)(nil)

func NewFakeChain() *FakeChain {
	return &FakeChain{
		jobs:  map[uint64]job.Job{},
		fail:  map[uint64]error{},
		calls: map[uint64]int{},
		head:  1,
	}
}

// Put stores j and bumps the job count when needed.
func (c *FakeChain) Put(j job.Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs[j.ID] = j
	if j.ID > c.count {
		c.count = j.ID
	}
}

func (c *FakeChain) SetHead(head uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.head = head
}

// FailJob makes reads of id fail with err until cleared with a nil err.
func (c *FakeChain) FailJob(id uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.fail, id)
		return
	}
	c.fail[id] = err
}

// Calls reports how many times GetJob was called for id.
func (c *FakeChain) Calls(id uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[id]
}

func (c *FakeChain) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = map[uint64]int{}
}

func (c *FakeChain) GetJob(ctx context.Context, id uint64) (*job.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[id]++
	if err := c.fail[id]; err != nil {
		return nil, err
	}
	j, ok := c.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %d: %w", id, job.ErrJobNotFound)
	}
	return &j, nil
}

func (c *FakeChain) ListJobs(ctx context.Context, f job.Filter) ([]job.Job, error) {
	if c.ListErr != nil {
		return nil, c.ListErr
	}
	c.mu.Lock()
	all := make([]job.Job, 0, len(c.jobs))
	for _, j := range c.jobs {
		all = append(all, j)
	}
	c.mu.Unlock()
	return f.Apply(all), nil
}

func (c *FakeChain) JobCount(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count, nil
}

func (c *FakeChain) HeadBlock(ctx context.Context) (uint64, error) {
	if c.HeadErr != nil {
		return 0, c.HeadErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head, nil
}
