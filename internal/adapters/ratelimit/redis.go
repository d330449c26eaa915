package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the part of the redis client the limiter needs.
type RedisClient interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

const fixedWindowScript = `
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`

// FixedWindow counts attempts per key in Redis. The counter expires with the
// window, so bursts at a window edge can briefly exceed the budget.
type FixedWindow struct {
	client RedisClient
	prefix string
	max    int64
	window time.Duration
}

func NewFixedWindow(client RedisClient, max int, window time.Duration) *FixedWindow {
	return &FixedWindow{client: client, prefix: "ratelimit:", max: int64(max), window: window}
}

func (f *FixedWindow) Allow(ctx context.Context, key string) (bool, error) {
	n, err := f.client.Eval(ctx, fixedWindowScript, []string{f.prefix + key}, f.window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n <= f.max, nil
}
