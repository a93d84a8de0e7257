package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vulnwatch/api/pkg/logger"
)

// Lua scripts are compiled once at package initialization. They keep
// the check-and-consume step atomic across API instances.
var (
	// allowScript checks and consumes one request token atomically.
	allowScript = redis.NewScript(`
		local key = KEYS[1]
		local now = tonumber(ARGV[1])
		local window_start = tonumber(ARGV[2])
		local window_ms = tonumber(ARGV[3])
		local limit = tonumber(ARGV[4])
		local request_id = ARGV[5]

		-- Remove expired entries
		redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

		-- Count current requests
		local count = redis.call('ZCARD', key)

		if count < limit then
			redis.call('ZADD', key, now, request_id)
			redis.call('PEXPIRE', key, window_ms)
			return {1, limit - count - 1, now + window_ms}
		else
			local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
			local retry_at = oldest[2] and (tonumber(oldest[2]) + window_ms) or (now + window_ms)
			return {0, 0, retry_at}
		end
	`)

	// statusScript reads current rate limit status without consuming a token.
	statusScript = redis.NewScript(`
		local key = KEYS[1]
		local now = tonumber(ARGV[1])
		local window_start = tonumber(ARGV[2])
		local window_ms = tonumber(ARGV[3])
		local limit = tonumber(ARGV[4])

		redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

		local count = redis.call('ZCARD', key)

		local ttl = redis.call('PTTL', key)
		if ttl < 0 then
			ttl = window_ms
		end

		local remaining = limit - count
		if remaining < 0 then
			remaining = 0
		end

		local allowed = 0
		if count < limit then
			allowed = 1
		end

		return {allowed, remaining, now + ttl}
	`)
)

// RateLimiter implements distributed rate limiting using the sliding
// window log algorithm over Redis sorted sets. Individual request
// timestamps are tracked, so the limit holds accurately across API
// instances.
type RateLimiter struct {
	client    *Client
	keyPrefix string
	limit     int
	window    time.Duration
	logger    *logger.Logger
}

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	// Allowed indicates if the request is permitted.
	Allowed bool

	// Remaining is the number of requests left in the current window.
	Remaining int

	// ResetAt is when the rate limit window resets.
	ResetAt time.Time

	// RetryAt is when the client should retry (only set when not allowed).
	RetryAt time.Time
}

// NewRateLimiter creates a new distributed rate limiter.
func NewRateLimiter(client *Client, prefix string, limit int, window time.Duration, log *logger.Logger) (*RateLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		return nil, errors.New("key prefix is required")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	if window <= 0 {
		return nil, errors.New("window must be positive")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	return &RateLimiter{
		client:    client,
		keyPrefix: prefix,
		limit:     limit,
		window:    window,
		logger:    log,
	}, nil
}

// buildKey creates the full rate limit key with prefix.
func (rl *RateLimiter) buildKey(key string) string {
	return fmt.Sprintf("%s:%s", rl.keyPrefix, key)
}

// Allow checks if a request is allowed and consumes one token
// atomically. Safe for concurrent use.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (*RateLimitResult, error) {
	if key == "" {
		return nil, errors.New("key is required")
	}

	fullKey := rl.buildKey(key)
	now := time.Now()
	windowStart := now.Add(-rl.window)

	result, err := allowScript.Run(ctx, rl.client.client, []string{fullKey},
		now.UnixMilli(), windowStart.UnixMilli(), rl.window.Milliseconds(),
		rl.limit, uuid.New().String()).Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}

	allowed := result[0].(int64) == 1
	remaining := int(result[1].(int64))
	resetAt := time.UnixMilli(result[2].(int64))

	out := &RateLimitResult{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   resetAt,
	}

	if !allowed {
		out.RetryAt = resetAt
		rl.logger.Debug("rate limit exceeded", "key", key, "retry_at", resetAt)
	}

	return out, nil
}

// Status returns the current rate limit status without consuming a
// token.
func (rl *RateLimiter) Status(ctx context.Context, key string) (*RateLimitResult, error) {
	if key == "" {
		return nil, errors.New("key is required")
	}

	fullKey := rl.buildKey(key)
	now := time.Now()
	windowStart := now.Add(-rl.window)

	result, err := statusScript.Run(ctx, rl.client.client, []string{fullKey},
		now.UnixMilli(), windowStart.UnixMilli(), rl.window.Milliseconds(),
		rl.limit).Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit status: %w", err)
	}

	return &RateLimitResult{
		Allowed:   result[0].(int64) == 1,
		Remaining: int(result[1].(int64)),
		ResetAt:   time.UnixMilli(result[2].(int64)),
	}, nil
}

// Reset removes the rate limit for a key, allowing immediate access.
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("key is required")
	}

	if err := rl.client.client.Del(ctx, rl.buildKey(key)).Err(); err != nil {
		return fmt.Errorf("rate limit reset: %w", err)
	}

	rl.logger.Debug("rate limit reset", "key", key)
	return nil
}

// Limit returns the configured maximum requests per window.
func (rl *RateLimiter) Limit() int {
	return rl.limit
}

// Window returns the configured time window duration.
func (rl *RateLimiter) Window() time.Duration {
	return rl.window
}
