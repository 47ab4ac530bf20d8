package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "bulklock:"

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// BatchLock is a redis-backed lease preventing two workers from processing
// the same batch concurrently, e.g. after a duplicate enqueue. The lease
// expires on its own if the holder dies.
type BatchLock struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewBatchLock(client *goredis.Client, ttl time.Duration) (*BatchLock, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive")
	}

	return &BatchLock{client: client, ttl: ttl}, nil
}

// Acquire claims the lease for a batch. The returned token must be passed to
// Release; an empty token with nil error means another worker holds the lease.
func (l *BatchLock) Acquire(ctx context.Context, batchID string) (string, error) {
	if strings.TrimSpace(batchID) == "" {
		return "", fmt.Errorf("batch id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKeyPrefix+batchID, token, l.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to acquire batch lock: %w", err)
	}
	if !ok {
		return "", nil
	}

	return token, nil
}

// Release frees the lease only if the token still owns it, so an expired
// lease taken over by another worker is never deleted from under them.
func (l *BatchLock) Release(ctx context.Context, batchID string, token string) error {
	if strings.TrimSpace(batchID) == "" || strings.TrimSpace(token) == "" {
		return fmt.Errorf("batch id and token are required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := releaseScript.Run(ctx, l.client, []string{lockKeyPrefix + batchID}, token).Err(); err != nil {
		return fmt.Errorf("failed to release batch lock: %w", err)
	}

	return nil
}
