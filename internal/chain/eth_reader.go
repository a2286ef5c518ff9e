package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/linskybing/chainjob-cache/internal/domain/job"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Caller is the subset of ethclient.Client the reader needs.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

type Options struct {
	CallTimeout    time.Duration
	MaxRetries     uint64
	Concurrency    int
	InitialBackoff time.Duration
}

func (o Options) withDefaults() Options {
	if o.CallTimeout <= 0 {
		o.CallTimeout = 3 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 8
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 200 * time.Millisecond
	}
	return o
}

// EthReader reads the registry through a JSON-RPC node.
type EthReader struct {
	caller   Caller
	registry common.Address
	abi      abi.ABI
	opts     Options
	logger   *zap.Logger
	closer   func()
}

var _ Reader = (*EthReader)(nil)

// Dial connects to rawURL and returns a reader bound to the registry address.
func Dial(ctx context.Context, rawURL, registry string, opts Options, logger *zap.Logger) (*EthReader, error) {
	if !common.IsHexAddress(registry) {
		return nil, fmt.Errorf("invalid registry address %q", registry)
	}
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", rawURL, err)
	}
	r, err := NewEthReader(client, common.HexToAddress(registry), opts, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	r.closer = client.Close
	return r, nil
}

func NewEthReader(caller Caller, registry common.Address, opts Options, logger *zap.Logger) (*EthReader, error) {
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EthReader{
		caller:   caller,
		registry: registry,
		abi:      parsed,
		opts:     opts.withDefaults(),
		logger:   logger,
	}, nil
}

func (r *EthReader) Close() {
	if r.closer != nil {
		r.closer()
	}
}

func (r *EthReader) GetJob(ctx context.Context, id uint64) (*job.Job, error) {
	input, err := r.abi.Pack("getJob", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, fmt.Errorf("pack getJob: %w", err)
	}

	var out *job.Job
	err = r.retry(ctx, "getJob", func(callCtx context.Context) error {
		raw, err := r.caller.CallContract(callCtx, ethereum.CallMsg{To: &r.registry, Data: input}, nil)
		if err != nil {
			return err
		}
		out, err = r.decodeJob(raw)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("job %d: %w", id, err)
	}

	// The registry returns a zeroed struct for ids it never assigned.
	if out.Status == job.StatusUnknown && out.Client == job.ZeroAddress {
		return nil, fmt.Errorf("job %d: %w", id, job.ErrJobNotFound)
	}
	out.ID = id
	return out, nil
}

func (r *EthReader) JobCount(ctx context.Context) (uint64, error) {
	input, err := r.abi.Pack("jobCount")
	if err != nil {
		return 0, fmt.Errorf("pack jobCount: %w", err)
	}

	var count uint64
	err = r.retry(ctx, "jobCount", func(callCtx context.Context) error {
		raw, err := r.caller.CallContract(callCtx, ethereum.CallMsg{To: &r.registry, Data: input}, nil)
		if err != nil {
			return err
		}
		vals, err := r.abi.Unpack("jobCount", raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDecode, err)
		}
		n, ok := vals[0].(*big.Int)
		if !ok || !n.IsUint64() {
			return fmt.Errorf("%w: jobCount is not a uint64", ErrDecode)
		}
		count = n.Uint64()
		return nil
	})
	return count, err
}

func (r *EthReader) HeadBlock(ctx context.Context) (uint64, error) {
	var head uint64
	err := r.retry(ctx, "blockNumber", func(callCtx context.Context) error {
		n, err := r.caller.BlockNumber(callCtx)
		head = n
		return err
	})
	return head, err
}

// ListJobs reads every assigned id and filters the full set in memory, so the
// result matches what the cache returns for the same filter.
func (r *EthReader) ListJobs(ctx context.Context, f job.Filter) ([]job.Job, error) {
	count, err := r.JobCount(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu   sync.Mutex
		jobs = make([]job.Job, 0, count)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for id := uint64(1); id <= count; id++ {
		g.Go(func() error {
			j, err := r.GetJob(gctx, id)
			if errors.Is(err, job.ErrJobNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			jobs = append(jobs, *j)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return f.Apply(jobs), nil
}

func (r *EthReader) decodeJob(raw []byte) (*job.Job, error) {
	vals, err := r.abi.Unpack("getJob", raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(vals) != 7 {
		return nil, fmt.Errorf("%w: getJob returned %d values", ErrDecode, len(vals))
	}

	client, ok1 := vals[1].(common.Address)
	freelancer, ok2 := vals[2].(common.Address)
	status, ok3 := vals[3].(uint8)
	budget, ok4 := vals[4].(*big.Int)
	escrow, ok5 := vals[5].(common.Address)
	uri, ok6 := vals[6].(string)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || !ok6 {
		return nil, fmt.Errorf("%w: unexpected getJob field types", ErrDecode)
	}

	j := &job.Job{
		Client:      client.Hex(),
		Status:      job.Status(status),
		Budget:      budget.String(),
		Escrow:      escrow.Hex(),
		MetadataURI: uri,
	}
	if freelancer != (common.Address{}) {
		hex := freelancer.Hex()
		j.Freelancer = &hex
	}
	return j, nil
}

// retry runs fn with a per-attempt timeout and exponential backoff. Reverts
// and decoding failures are returned immediately.
func (r *EthReader) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.InitialBackoff
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, r.opts.MaxRetries), ctx)

	err := backoff.RetryNotify(func() error {
		callCtx, cancel := context.WithTimeout(ctx, r.opts.CallTimeout)
		defer cancel()

		err := fn(callCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if permanent := classify(err); permanent != nil {
			return backoff.Permanent(permanent)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		r.logger.Warn("rpc call failed, retrying",
			zap.String("op", op),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func classify(err error) error {
	if errors.Is(err, ErrDecode) || errors.Is(err, ErrReverted) {
		return err
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) || strings.Contains(err.Error(), "execution reverted") {
		return fmt.Errorf("%w: %v", ErrReverted, err)
	}
	return nil
}
