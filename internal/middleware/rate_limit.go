package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rentalhub/rental-backend/pkg/logger"
)

const rateLimitWindow = time.Minute

// RateLimitConfig configures the rate limiter
type RateLimitConfig struct {
	RequestsPerMinute int
	KeyPrefix         string
	Message           string
}

// MessageRateLimitConfig limits how fast one user can post messages
func MessageRateLimitConfig(requestsPerMinute int) RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: requestsPerMinute,
		KeyPrefix:         "chat:ratelimit:messages:",
		Message:           "Too many messages. Please slow down.",
	}
}

// rateLimitScript is an atomic Lua script for sliding window rate limiting
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local window_start = now - window

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, now .. ':' .. math.random(1000000))
    redis.call('EXPIRE', key, math.ceil(window / 1000) + 1)
    return {1, limit - count - 1, 0}
else
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local reset_at = 0
    if #oldest >= 2 then
        reset_at = tonumber(oldest[2]) + window
    end
    return {0, 0, reset_at}
end
`)

// RateLimitPerUser returns a sliding-window rate limiter keyed by the
// authenticated user, falling back to the client IP. A nil client disables it.
func RateLimitPerUser(redisClient *redis.Client, cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil || cfg.RequestsPerMinute <= 0 {
			c.Next()
			return
		}

		subject := "ip:" + c.ClientIP()
		if userID := GetUserID(c); userID != 0 {
			subject = strconv.FormatUint(userID, 10)
		}

		now := time.Now().UnixMilli()
		result, err := rateLimitScript.Run(c.Request.Context(), redisClient, []string{cfg.KeyPrefix + subject},
			cfg.RequestsPerMinute, rateLimitWindow.Milliseconds(), now,
		).Int64Slice()
		if err != nil {
			// Fail open
			logger.GetLogger().Warn().Err(err).Msg("rate limiter unavailable")
			c.Next()
			return
		}

		allowed := result[0] == 1
		remaining := result[1]
		resetAt := result[2]

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if !allowed {
			retryAfter := (resetAt - now) / 1000
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   gin.H{"code": "RATE_LIMITED", "message": cfg.Message},
			})
			return
		}

		c.Next()
	}
}
