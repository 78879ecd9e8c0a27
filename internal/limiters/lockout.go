package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockoutUnavailable indicates the lockout backend is unreachable.
var ErrLockoutUnavailable = errors.New("lockout backend unavailable")

// LockoutConfig holds the lockout tracker tunables.
type LockoutConfig struct {
	// Threshold is the failure count that triggers a lock.
	Threshold int
	// Window bounds the failure-counting window; 0 means failures
	// accumulate until the next success or unlock.
	Window time.Duration
	// Duration is the lock TTL once triggered. The policy is
	// reset-on-unlock: attempts made while locked are rejected upstream
	// before any counter mutation, so the lock expires on schedule and the
	// counter starts fresh afterwards.
	Duration time.Duration
}

// LockoutTracker tracks failed authentication attempts per principal and
// exposes the lock state. All mutations run as Redis scripts, so two
// concurrent failures for the same principal serialize through a single
// logical counter; operations on different principals never contend.
type LockoutTracker struct {
	redis  redis.UniversalClient
	config LockoutConfig
	prefix string
}

// recordFailureScript atomically increments the failure counter, applies
// the rolling window on the first failure, and creates the lock key when
// the threshold is reached. The counter is pinned at the threshold under
// the lock TTL so repeated reads while locked stay meaningful.
//
// KEYS[1] = failure counter, KEYS[2] = lock key
// ARGV[1] = threshold, ARGV[2] = window ms (0 = none), ARGV[3] = lock ms
// Returns {count, locked}
var recordFailureScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 and tonumber(ARGV[2]) > 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if count >= tonumber(ARGV[1]) then
  redis.call("SET", KEYS[2], count, "PX", ARGV[3])
  redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
  return {count, 1}
end
return {count, 0}
`)

// NewLockoutTracker creates a tracker using the given key prefix.
func NewLockoutTracker(redisClient redis.UniversalClient, prefix string, cfg LockoutConfig) *LockoutTracker {
	if cfg.Threshold < 1 {
		cfg.Threshold = 1
	}
	return &LockoutTracker{redis: redisClient, config: cfg, prefix: prefix}
}

func (l *LockoutTracker) failKey(principal string) string {
	return l.prefix + ":lof:" + principal
}

func (l *LockoutTracker) lockKey(principal string) string {
	return l.prefix + ":lok:" + principal
}

// MayAttempt reports whether the principal may attempt to authenticate.
// When locked, retryAfter is the remaining lock duration.
func (l *LockoutTracker) MayAttempt(ctx context.Context, principal string) (bool, time.Duration, error) {
	ttl, err := l.redis.PTTL(ctx, l.lockKey(principal)).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if ttl > 0 {
		return false, ttl, nil
	}
	// -2 = key absent, -1 = no TTL (never set by this tracker)
	return true, 0, nil
}

// RecordFailure counts one failed attempt. Returns true when the attempt
// reached the threshold and triggered (or refreshed) the lock.
func (l *LockoutTracker) RecordFailure(ctx context.Context, principal string) (bool, error) {
	res, err := recordFailureScript.Run(ctx, l.redis,
		[]string{l.failKey(principal), l.lockKey(principal)},
		l.config.Threshold,
		l.config.Window.Milliseconds(),
		l.config.Duration.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if len(res) != 2 {
		return false, fmt.Errorf("%w: unexpected script reply", ErrLockoutUnavailable)
	}
	return res[1] == 1, nil
}

// RecordSuccess clears the counter and any lock after a successful
// authentication.
func (l *LockoutTracker) RecordSuccess(ctx context.Context, principal string) error {
	if err := l.redis.Del(ctx, l.failKey(principal), l.lockKey(principal)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// Unlock is the administrative escape hatch: identical effect to
// RecordSuccess but kept separate for audit clarity.
func (l *LockoutTracker) Unlock(ctx context.Context, principal string) error {
	return l.RecordSuccess(ctx, principal)
}

// FailureCount returns the current failure counter for the principal.
func (l *LockoutTracker) FailureCount(ctx context.Context, principal string) (int, error) {
	count, err := l.redis.Get(ctx, l.failKey(principal)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return int(count), nil
}
