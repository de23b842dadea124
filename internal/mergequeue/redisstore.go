package mergequeue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/simplesurance/automerge/internal/githubclt"
)

// DefaultRedisKeyPrefix is prepended to all keys created by the RedisStore.
const DefaultRedisKeyPrefix = "automerge:"

// Per branch 3 keys are used:
//   - queue:<branch>: sorted set, member: pull request number, score:
//     enqueue timestamp in microseconds
//   - method:<branch>: hash, field: pull request number, value: sync method
//   - active:<branch>: string "<pull request number>|<claim timestamp>",
//     expires after the claim ttl
//
// The set "branches" contains the keys of all branches with a non-empty
// queue.

var enqueueScript = redis.NewScript(`
local added = redis.call("ZADD", KEYS[1], "NX", ARGV[1], ARGV[2])
redis.call("HSET", KEYS[2], ARGV[2], ARGV[3])
redis.call("SADD", KEYS[3], ARGV[4])
return added
`)

var dequeueScript = redis.NewScript(`
local removed = redis.call("ZREM", KEYS[1], ARGV[1])
redis.call("HDEL", KEYS[2], ARGV[1])
local active = redis.call("GET", KEYS[3])
if active and string.sub(active, 1, string.len(ARGV[1]) + 1) == ARGV[1] .. "|" then
	redis.call("DEL", KEYS[3])
end
if redis.call("ZCARD", KEYS[1]) == 0 then
	redis.call("SREM", KEYS[4], ARGV[2])
end
return removed
`)

var claimScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[3]) == 1 then
	return false
end
local first = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
if #first == 0 then
	return false
end
redis.call("SET", KEYS[3], first[1] .. "|" .. ARGV[1], "PX", ARGV[2])
local method = redis.call("HGET", KEYS[2], first[1])
if not method then
	method = ""
end
return {first[1], first[2], method}
`)

var releaseScript = redis.NewScript(`
local active = redis.call("GET", KEYS[1])
if active and string.sub(active, 1, string.len(ARGV[1]) + 1) == ARGV[1] .. "|" then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore is a Store persisting the queues in redis.
// All conditional writes are executed as Lua scripts.
type RedisStore struct {
	clt       redis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

func NewRedisStore(clt redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{
		clt:       clt,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

func (s *RedisStore) queueKey(b *BranchID) string {
	return s.keyPrefix + "queue:" + b.Key()
}

func (s *RedisStore) methodKey(b *BranchID) string {
	return s.keyPrefix + "method:" + b.Key()
}

func (s *RedisStore) activeKey(b *BranchID) string {
	return s.keyPrefix + "active:" + b.Key()
}

func (s *RedisStore) branchesKey() string {
	return s.keyPrefix + "branches"
}

func (s *RedisStore) Enqueue(ctx context.Context, e *Entry) (bool, error) {
	added, err := enqueueScript.Run(
		ctx, s.clt,
		[]string{s.queueKey(&e.Branch), s.methodKey(&e.Branch), s.branchesKey()},
		e.EnqueuedAt.UnixMicro(), e.PullNumber, string(e.SyncMethod), e.Branch.Key(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: executing enqueue script failed: %w", err)
	}

	return added == 1, nil
}

func (s *RedisStore) Dequeue(ctx context.Context, branch *BranchID, pullNumber int) (bool, error) {
	removed, err := dequeueScript.Run(
		ctx, s.clt,
		[]string{s.queueKey(branch), s.methodKey(branch), s.activeKey(branch), s.branchesKey()},
		pullNumber, branch.Key(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: executing dequeue script failed: %w", err)
	}

	return removed == 1, nil
}

func (s *RedisStore) Entries(ctx context.Context, branch *BranchID) ([]*Entry, error) {
	var (
		membersCmd *redis.ZSliceCmd
		methodsCmd *redis.MapStringStringCmd
		activeCmd  *redis.StringCmd
	)

	_, err := s.clt.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		membersCmd = pipe.ZRangeWithScores(ctx, s.queueKey(branch), 0, -1)
		methodsCmd = pipe.HGetAll(ctx, s.methodKey(branch))
		activeCmd = pipe.Get(ctx, s.activeKey(branch))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: reading queue failed: %w", err)
	}

	members, err := membersCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("redis: reading queue members failed: %w", err)
	}

	methods, err := methodsCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("redis: reading sync methods failed: %w", err)
	}

	var activePR int
	var activeSince *time.Time
	active, err := activeCmd.Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, fmt.Errorf("redis: reading active entry failed: %w", err)
	default:
		activePR, activeSince, err = parseActiveVal(active)
		if err != nil {
			return nil, err
		}
	}

	result := make([]*Entry, 0, len(members))
	for _, m := range members {
		member, ok := m.Member.(string)
		if !ok {
			return nil, fmt.Errorf("redis: queue member has unexpected type %T", m.Member)
		}

		nr, err := strconv.Atoi(member)
		if err != nil {
			return nil, fmt.Errorf("redis: queue member %q is not a pull request number: %w", member, err)
		}

		e := Entry{
			Branch:     *branch,
			PullNumber: nr,
			SyncMethod: githubclt.UpdateMethod(methods[member]),
			EnqueuedAt: time.UnixMicro(int64(m.Score)),
		}
		if activeSince != nil && activePR == nr {
			e.ActiveSince = activeSince
		}

		result = append(result, &e)
	}

	return result, nil
}

func parseActiveVal(val string) (int, *time.Time, error) {
	nrStr, tsStr, found := strings.Cut(val, "|")
	if !found {
		return 0, nil, fmt.Errorf("redis: active entry value %q is malformed", val)
	}

	nr, err := strconv.Atoi(nrStr)
	if err != nil {
		return 0, nil, fmt.Errorf("redis: active entry value %q is malformed: %w", val, err)
	}

	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("redis: active entry value %q is malformed: %w", val, err)
	}

	t := time.UnixMicro(ts)

	return nr, &t, nil
}

func (s *RedisStore) Branches(ctx context.Context) ([]*BranchID, error) {
	keys, err := s.clt.SMembers(ctx, s.branchesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: reading branches failed: %w", err)
	}

	result := make([]*BranchID, 0, len(keys))
	for _, k := range keys {
		b, err := ParseBranchKey(k)
		if err != nil {
			return nil, err
		}

		result = append(result, b)
	}

	return result, nil
}

func (s *RedisStore) Claim(ctx context.Context, branch *BranchID, ttl time.Duration) (*Entry, error) {
	if ttl < time.Millisecond {
		return nil, fmt.Errorf("claim ttl must be >=1ms, is: %s", ttl)
	}

	now := s.now()

	res, err := claimScript.Run(
		ctx, s.clt,
		[]string{s.queueKey(branch), s.methodKey(branch), s.activeKey(branch)},
		now.UnixMicro(), ttl.Milliseconds(),
	).StringSlice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("redis: executing claim script failed: %w", err)
	}

	if len(res) != 3 {
		return nil, fmt.Errorf("redis: claim script returned %d elements, expected 3", len(res))
	}

	nr, err := strconv.Atoi(res[0])
	if err != nil {
		return nil, fmt.Errorf("redis: queue member %q is not a pull request number: %w", res[0], err)
	}

	score, err := strconv.ParseFloat(res[1], 64)
	if err != nil {
		return nil, fmt.Errorf("redis: queue member score %q is invalid: %w", res[1], err)
	}

	activeSince := time.UnixMicro(now.UnixMicro())

	return &Entry{
		Branch:      *branch,
		PullNumber:  nr,
		SyncMethod:  githubclt.UpdateMethod(res[2]),
		EnqueuedAt:  time.UnixMicro(int64(score)),
		ActiveSince: &activeSince,
	}, nil
}

func (s *RedisStore) Release(ctx context.Context, branch *BranchID, pullNumber int) error {
	err := releaseScript.Run(ctx, s.clt, []string{s.activeKey(branch)}, pullNumber).Err()
	if err != nil {
		return fmt.Errorf("redis: executing release script failed: %w", err)
	}

	return nil
}
