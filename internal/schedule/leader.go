package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotLeader is returned by RenewLease when another instance holds the lock.
var ErrNotLeader = errors.New("not leader")

// LeaderLock implements single-leader election using Redis SETNX. The leader
// holds a key with a TTL; if the leader crashes, the key expires and another
// instance acquires it. Only the leader runs the periodic refresh, so a
// multi-instance deployment never duplicates the work.
type LeaderLock struct {
	redis      *redis.Client
	instanceID string
	ttl        time.Duration
	key        string
}

// NewLeaderLock creates a leader lock on the given Redis key.
func NewLeaderLock(rdb *redis.Client, instanceID, key string, ttl time.Duration) *LeaderLock {
	return &LeaderLock{
		redis:      rdb,
		instanceID: instanceID,
		ttl:        ttl,
		key:        key,
	}
}

// TryAcquire attempts to take leadership. Returns true if this instance is
// now the leader.
func (l *LeaderLock) TryAcquire(ctx context.Context) (bool, error) {
	success, err := l.redis.SetNX(ctx, l.key, l.instanceID, l.ttl).Result()
	return success, err
}

// RenewLease extends the leader's TTL. The Lua script makes the
// check-and-renew atomic so a stale instance can never extend a lock it
// already lost.
func (l *LeaderLock) RenewLease(ctx context.Context) error {
	script := `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("EXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
	`

	result, err := l.redis.Eval(ctx, script, []string{l.key}, l.instanceID, int(l.ttl.Seconds())).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return ErrNotLeader
	}
	return nil
}

// Release voluntarily gives up leadership during graceful shutdown. Only
// deletes the key if this instance still holds it.
func (l *LeaderLock) Release(ctx context.Context) error {
	script := `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
	`

	return l.redis.Eval(ctx, script, []string{l.key}, l.instanceID).Err()
}
