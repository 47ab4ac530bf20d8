package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/signhub/envelope-engine/internal/ratelimit"
)

const (
	defaultLimitPerSec int64 = 100
	defaultWindow            = time.Second
	backoffStep              = 10 * time.Millisecond
	backoffMax               = 50 * time.Millisecond
)

// allowScript consumes one send from the window's budget and returns the
// remaining budget; negative means the call was over the limit. The key is
// created with the window's lifetime so stale windows expire on their own.
var allowScript = goredis.NewScript(`
local used = redis.call("INCR", KEYS[1])
if used == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return tonumber(ARGV[1]) - used
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter caps envelope sends per account within fixed windows,
// protecting the downstream delivery gateway. The budget lives in redis so
// the cap holds across workers.
type RedisRateLimiter struct {
	client *goredis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	script *goredis.Script
}

func NewRedisRateLimiter(client *goredis.Client, limitPerSec int) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(
		client,
		int64(limitPerSec),
		time.Now,
		sleepWithContext,
	)
}

func newRedisRateLimiter(
	client *goredis.Client,
	limit int64,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limit <= 0 {
		limit = defaultLimitPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &RedisRateLimiter{
		client: client,
		limit:  limit,
		window: defaultWindow,
		now:    nowFn,
		sleep:  sleepFn,
		script: allowScript,
	}, nil
}

// Allow consumes one send from the account's current window. It reports false
// once the window's budget is spent; the attempt still counts against the
// window, so callers should back off rather than poll tightly.
func (r *RedisRateLimiter) Allow(ctx context.Context, accountID string) (bool, error) {
	if r == nil || r.client == nil || r.script == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	account := strings.ToLower(strings.TrimSpace(accountID))
	if account == "" {
		return false, fmt.Errorf("account id is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	remaining, err := r.script.Run(ctx, r.client, []string{r.windowKey(account)}, r.limit, r.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	return remaining >= 0, nil
}

func (r *RedisRateLimiter) Wait(ctx context.Context, accountID string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	backoff := backoffStep
	for {
		allowed, err := r.Allow(ctx, accountID)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := r.sleep(ctx, backoff); err != nil {
			return err
		}

		backoff = min(backoff+backoffStep, backoffMax)
	}
}

// windowKey buckets sends by account and window index, so a window's budget
// resets implicitly when the clock crosses into the next bucket.
func (r *RedisRateLimiter) windowKey(account string) string {
	windowIndex := r.now().UTC().UnixMilli() / r.window.Milliseconds()
	return fmt.Sprintf("ratelimit:%s:%d", account, windowIndex)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
