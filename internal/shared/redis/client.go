package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	client *redis.Client
}

// New creates a new Redis client
func New(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("Redis ping failed: %w", err)
	}

	return &Client{client: client}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// rateLimitScript increments the window counter and starts the window on the
// first request, atomically.
var rateLimitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// CheckRateLimit counts a request for subject in the current one-minute window.
// It reports whether the limit is exceeded and how many requests remain.
func (c *Client) CheckRateLimit(ctx context.Context, subject string, limit int) (bool, int, error) {
	key := fmt.Sprintf("maas:ratelimit:%s", subject)

	count, err := rateLimitScript.Run(ctx, c.client, []string{key}, int(time.Minute/time.Second)).Int()
	if err != nil {
		return false, 0, err
	}

	if count > limit {
		return true, 0, nil
	}
	return false, limit - count, nil
}
