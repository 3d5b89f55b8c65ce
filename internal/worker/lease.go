package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only when still held by the releasing
// owner, so a run that outlived its TTL cannot clobber a successor's lease.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Lease is a per-tenant mutual exclusion lease held in Redis. It caps a
// tenant's classification concurrency at one run: the TTL is generous enough
// to cover slow batches but recovers the slot if a worker crashes mid-run.
type Lease struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewLease creates a lease manager on a dedicated Redis client, separate
// from the Asynq internal connection.
func NewLease(redisURL string, ttl time.Duration) (*Lease, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &Lease{rdb: redis.NewClient(opts), ttl: ttl}, nil
}

// Acquire tries to take the lease. ok is false when another run holds it.
func (l *Lease) Acquire(ctx context.Context, key string) (token string, ok bool, err error) {
	token = uuid.New().String()

	ok, err = l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	return token, ok, nil
}

// Release gives the lease back if this owner still holds it.
func (l *Lease) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release lease %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying Redis connection.
func (l *Lease) Close() error {
	return l.rdb.Close()
}

// ClassifyLeaseKey is the lease key guarding one tenant's classification runs.
func ClassifyLeaseKey(tenantKind string, tenantID uint) string {
	return fmt.Sprintf("lease:classify:%s:%d", tenantKind, tenantID)
}
