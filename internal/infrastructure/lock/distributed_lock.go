package lock

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// unlockScript deletes the key only while it still holds our value, so an
// expired holder cannot release a lock that someone else has taken since.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// DistributedLock is a SET NX EX lock on a single redis key.
type DistributedLock struct {
	client     redis.Cmdable
	key        string
	value      string
	expiration time.Duration
}

func NewDistributedLock(client redis.Cmdable, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

func (l *DistributedLock) Key() string {
	return l.key
}

// TryLock makes a single non-blocking attempt.
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

func (l *DistributedLock) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}

// NewReconcileLock guards one settlement reconciliation pass so that only
// one replica works the pending queue at a time. owner identifies the
// replica holding it.
func NewReconcileLock(client redis.Cmdable, owner string, ttl time.Duration) *DistributedLock {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return NewDistributedLock(client, "sitegen:lock:reconcile", owner, ttl)
}
