package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/linskybing/chainjob-cache/internal/domain/job"
	"github.com/linskybing/chainjob-cache/internal/domain/syncrun"
	"github.com/redis/go-redis/v9"
)

// upsertScript writes one entry unless the stored copy was synced at a newer
// block, and moves the id between the status and client index sets.
//
// KEYS[1] entry hash, KEYS[2] id index
// ARGV: data, block, status, client, status prefix, id, client prefix
var upsertScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'block')
if cur and tonumber(cur) > tonumber(ARGV[2]) then
  return 0
end
local oldStatus = redis.call('HGET', KEYS[1], 'status')
local oldClient = redis.call('HGET', KEYS[1], 'client')
if oldStatus then redis.call('SREM', ARGV[5] .. oldStatus, ARGV[6]) end
if oldClient then redis.call('SREM', ARGV[7] .. oldClient, ARGV[6]) end
redis.call('HSET', KEYS[1], 'data', ARGV[1], 'block', ARGV[2], 'status', ARGV[3], 'client', ARGV[4])
redis.call('SADD', ARGV[5] .. ARGV[3], ARGV[6])
redis.call('SADD', ARGV[7] .. ARGV[4], ARGV[6])
redis.call('ZADD', KEYS[2], ARGV[6], ARGV[6])
return 1
`)

// RedisJobRepo keeps entries as hashes with set-based secondary indexes.
type RedisJobRepo struct {
	client *redis.Client
	prefix string
}

func NewRedisJobRepo(client *redis.Client, prefix string) *RedisJobRepo {
	if prefix == "" {
		prefix = "chainjobs"
	}
	return &RedisJobRepo{client: client, prefix: prefix}
}

func (r *RedisJobRepo) entryKey(id uint64) string {
	return fmt.Sprintf("%s:job:%d", r.prefix, id)
}

func (r *RedisJobRepo) indexKey() string          { return r.prefix + ":jobs" }
func (r *RedisJobRepo) statusPrefix() string      { return r.prefix + ":status:" }
func (r *RedisJobRepo) clientPrefix() string      { return r.prefix + ":client:" }
func (r *RedisJobRepo) lastRunKey() string        { return r.prefix + ":syncrun:last" }
func (r *RedisJobRepo) lastSuccessKey() string    { return r.prefix + ":syncrun:last_success" }
func (r *RedisJobRepo) clientKey(c string) string { return r.clientPrefix() + strings.ToLower(c) }

func (r *RedisJobRepo) Get(ctx context.Context, id uint64) (*job.Entry, error) {
	raw, err := r.client.HGet(ctx, r.entryKey(id), "data").Result()
	if errors.Is(err, redis.Nil) {
		return nil, job.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	var e job.Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("decode cached job %d: %w", id, err)
	}
	return &e, nil
}

func (r *RedisJobRepo) List(ctx context.Context, f job.Filter) ([]job.Entry, error) {
	ids, err := r.candidateIDs(ctx, f)
	if err != nil {
		return nil, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = job.DefaultLimit
	}
	if f.Offset >= len(ids) {
		return []job.Entry{}, nil
	}
	end := f.Offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	return r.load(ctx, ids[f.Offset:end])
}

// candidateIDs resolves the filter against the index sets, sorted by id.
func (r *RedisJobRepo) candidateIDs(ctx context.Context, f job.Filter) ([]uint64, error) {
	var sets []string
	if f.Status != nil {
		sets = append(sets, r.statusPrefix()+strconv.Itoa(int(*f.Status)))
	}
	if f.Client != nil {
		sets = append(sets, r.clientKey(*f.Client))
	}

	var members []string
	var err error
	switch len(sets) {
	case 0:
		members, err = r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	case 1:
		members, err = r.client.SMembers(ctx, sets[0]).Result()
	default:
		members, err = r.client.SInter(ctx, sets...).Result()
	}
	if err != nil {
		return nil, err
	}
	return parseIDs(members)
}

func (r *RedisJobRepo) load(ctx context.Context, ids []uint64) ([]job.Entry, error) {
	if len(ids) == 0 {
		return []job.Entry{}, nil
	}
	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGet(ctx, r.entryKey(id), "data")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	entries := make([]job.Entry, 0, len(ids))
	for i, cmd := range cmds {
		raw, err := cmd.Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var e job.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode cached job %d: %w", ids[i], err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *RedisJobRepo) Count(ctx context.Context) (int64, error) {
	return r.client.ZCard(ctx, r.indexKey()).Result()
}

func (r *RedisJobRepo) IDs(ctx context.Context) ([]uint64, error) {
	return r.candidateIDs(ctx, job.Filter{})
}

func (r *RedisJobRepo) RefreshIDs(ctx context.Context) ([]uint64, error) {
	all, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	terminal, err := r.client.SUnion(ctx,
		r.statusPrefix()+strconv.Itoa(int(job.StatusCancelled)),
		r.statusPrefix()+strconv.Itoa(int(job.StatusCompleted)),
	).Result()
	if err != nil {
		return nil, err
	}
	skip := make(map[string]struct{}, len(terminal))
	for _, m := range terminal {
		skip[m] = struct{}{}
	}
	live := make([]string, 0, len(all))
	for _, m := range all {
		if _, ok := skip[m]; !ok {
			live = append(live, m)
		}
	}
	return parseIDs(live)
}

func (r *RedisJobRepo) All(ctx context.Context) ([]job.Entry, error) {
	ids, err := r.candidateIDs(ctx, job.Filter{})
	if err != nil {
		return nil, err
	}
	return r.load(ctx, ids)
}

func (r *RedisJobRepo) Upsert(ctx context.Context, entries []job.Entry) error {
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		id := strconv.FormatUint(e.ID, 10)
		err = upsertScript.Run(ctx, r.client,
			[]string{r.entryKey(e.ID), r.indexKey()},
			string(data),
			strconv.FormatUint(e.SyncedBlock, 10),
			strconv.Itoa(int(e.Status)),
			strings.ToLower(e.Client),
			r.statusPrefix(),
			id,
			r.clientPrefix(),
		).Err()
		if err != nil {
			return fmt.Errorf("upsert job %d: %w", e.ID, err)
		}
	}
	return nil
}

func (r *RedisJobRepo) Delete(ctx context.Context, id uint64) error {
	e, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	member := strconv.FormatUint(id, 10)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.entryKey(id))
		pipe.ZRem(ctx, r.indexKey(), member)
		pipe.SRem(ctx, r.statusPrefix()+strconv.Itoa(int(e.Status)), member)
		pipe.SRem(ctx, r.clientKey(e.Client), member)
		return nil
	})
	return err
}

func (r *RedisJobRepo) RecordSyncRun(ctx context.Context, run *syncrun.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.lastRunKey(), data, 0)
		if run.Success {
			pipe.Set(ctx, r.lastSuccessKey(), data, 0)
		}
		return nil
	})
	return err
}

func (r *RedisJobRepo) LastSyncRun(ctx context.Context, successOnly bool) (*syncrun.Run, error) {
	key := r.lastRunKey()
	if successOnly {
		key = r.lastSuccessKey()
	}
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var run syncrun.Run
	if err := json.Unmarshal(raw, &run); err != nil {
		return nil, fmt.Errorf("decode sync run: %w", err)
	}
	return &run, nil
}

func (r *RedisJobRepo) Backend() string {
	return "redis"
}

func (r *RedisJobRepo) Close() error {
	return r.client.Close()
}

func parseIDs(members []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt job index member %q: %w", m, err)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	return ids, nil
}
