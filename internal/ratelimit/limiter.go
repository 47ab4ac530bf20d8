package ratelimit

import "context"

// RateLimiter controls envelope send throughput per account.
type RateLimiter interface {
	Allow(ctx context.Context, accountID string) (bool, error)
	Wait(ctx context.Context, accountID string) error
}
