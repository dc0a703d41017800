// Package lease provides a per-document processing lease. The lease is a
// second guard on top of the repository's conditional status update; it
// stops two workers from even attempting the same document concurrently.
package lease

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker grants exclusive processing rights for one document id.
type Locker interface {
	// Acquire returns true when the caller now holds the lease.
	Acquire(ctx context.Context, docID string) (bool, error)
	// Release gives the lease back. Releasing a lease you do not hold is a
	// no-op.
	Release(ctx context.Context, docID string) error
}

// Noop always grants the lease. Used when no Redis address is configured;
// the repository's conditional update remains the sole guard.
type Noop struct{}

func (Noop) Acquire(ctx context.Context, docID string) (bool, error) { return true, nil }
func (Noop) Release(ctx context.Context, docID string) error         { return nil }

type redisCmdable interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisLocker implements Locker with SET NX PX. The TTL bounds how long a
// crashed worker can block re-processing of its document.
type RedisLocker struct {
	client redisCmdable
	ttl    time.Duration
}

func NewRedisLocker(addr string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func leaseKey(docID string) string { return "absnotary:lease:" + docID }

func (l *RedisLocker) Acquire(ctx context.Context, docID string) (bool, error) {
	return l.client.SetNX(ctx, leaseKey(docID), 1, l.ttl).Result()
}

func (l *RedisLocker) Release(ctx context.Context, docID string) error {
	return l.client.Del(ctx, leaseKey(docID)).Err()
}
