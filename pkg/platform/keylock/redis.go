package keylock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only if we still own it, so a lease that
// expired and was re-acquired by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLease is a Locker backed by a Redis SET NX lease. Use it when more
// than one engine instance consumes the same topics; within a single
// process prefer Mutex.
type RedisLease struct {
	client      *redis.Client
	prefix      string
	ttl         time.Duration
	pollBackoff time.Duration
}

type RedisOption func(*RedisLease)

// WithTTL bounds how long a crashed holder can block a key. It must exceed
// the longest transition (gateway timeout included).
func WithTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLease) { l.ttl = ttl }
}

func WithPollBackoff(d time.Duration) RedisOption {
	return func(l *RedisLease) { l.pollBackoff = d }
}

func NewRedisLease(client *redis.Client, prefix string, opts ...RedisOption) *RedisLease {
	l := &RedisLease{
		client:      client,
		prefix:      prefix,
		ttl:         30 * time.Second,
		pollBackoff: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLease) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	leaseKey := l.prefix + ":" + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, leaseKey, token, l.ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.pollBackoff):
		}
	}
	defer releaseScript.Run(context.WithoutCancel(ctx), l.client, []string{leaseKey}, token)

	return fn(ctx)
}
