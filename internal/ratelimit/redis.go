// README: Shared fixed-window limiter backed by Redis, falling back to a local limiter on errors.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// KEYS[1] = window key, ARGV[1] = window length in ms. Returns the count in the current window.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

const limiterKeyPrefix = "ratelimit:%s"

type Redis struct {
	client   redis.Scripter
	max      int
	window   time.Duration
	fallback *Local
}

func NewRedis(client redis.Scripter, max int, window time.Duration, fallback *Local) *Redis {
	if max <= 0 {
		max = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Redis{client: client, max: max, window: window, fallback: fallback}
}

func (r *Redis) Allow(ctx context.Context, key string) bool {
	count, err := fixedWindowScript.Run(ctx, r.client, []string{fmt.Sprintf(limiterKeyPrefix, key)}, r.window.Milliseconds()).Int64()
	if err != nil {
		log.Warn().Err(err).Msg("rate limiter: redis unavailable, using local window")
		if r.fallback == nil {
			return true
		}
		return r.fallback.Allow(ctx, key)
	}
	return count <= int64(r.max)
}
