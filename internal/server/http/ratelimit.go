package http

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/imgkeeper/internal/logging"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig sizes a token bucket per client IP and route.
type RateLimitConfig struct {
	Capacity  int
	PerSecond float64
	Prefix    string
}

func (c RateLimitConfig) refillInterval() time.Duration {
	if c.PerSecond <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / c.PerSecond)
}

// The bucket state lives in a Redis hash so every server instance shares it.
var limiterScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local interval_ms = tonumber(ARGV[3])
	local ttl_seconds = tonumber(ARGV[4])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + intervals)
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

// NewTokenBucket limits requests with a Redis token bucket. A nil client
// disables limiting; Redis errors let the request through.
func NewTokenBucket(cfg RateLimitConfig, rdb redis.Scripter, log logging.Logger) echo.MiddlewareFunc {
	if rdb == nil || cfg.Capacity <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "rl"
	}

	interval := cfg.refillInterval()
	ttl := int64(math.Ceil((time.Duration(cfg.Capacity) * interval).Seconds()))
	if ttl < 60 {
		ttl = 60
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg.Prefix, c)
			ctx := c.Request().Context()

			allowed, remaining, retryMs, err := runLimiter(ctx, rdb, key, cfg.Capacity, interval, ttl)
			if err != nil {
				log.Warn(ctx, "rate limiter unavailable", "key", key, "error", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if !allowed {
				secs := int(math.Ceil(float64(retryMs) / 1000.0))
				h.Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "rate limit exceeded",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}

func runLimiter(ctx context.Context, rdb redis.Scripter, key string, capacity int, interval time.Duration, ttl int64) (bool, int64, int64, error) {
	vals, err := limiterScript.Run(ctx, rdb, []string{key},
		time.Now().UnixMilli(), capacity, interval.Milliseconds(), ttl).Int64Slice()
	if err != nil {
		return false, 0, 0, err
	}
	if len(vals) != 3 {
		return false, 0, 0, fmt.Errorf("unexpected limiter result %v", vals)
	}
	return vals[0] == 1, vals[1], vals[2], nil
}

func rateKey(prefix string, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	return strings.Join([]string{prefix, "ip", ip, "route", c.Request().Method + " " + c.Path()}, ":")
}
