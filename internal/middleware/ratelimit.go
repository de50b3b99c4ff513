package middleware

import (
	"fmt"
	"net/http"
	"time"

	rediskey "storefront/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// luaRateLimit：Redis 滑动窗口限流 Lua 脚本（原子操作）
// KEYS[1]=限流key，ARGV[1]=当前时间戳，ARGV[2]=窗口开始时间戳，ARGV[3]=窗口秒数，
// ARGV[4]=本次请求成员，ARGV[5]=窗口内上限
// 返回：当前窗口内的请求数（超限返回 -1）
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)

if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// SessionHeader 购物车 / 结算接口用来识别匿名会话的请求头。
const SessionHeader = "X-Session-ID"

// RedisRateLimit Redis 分布式限流：优先按会话 ID，缺失时按客户端 IP。
// scope 区分不同接口的计数。
func RedisRateLimit(rdb *rd.Client, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := "ip:" + c.ClientIP()
		if sid := c.GetHeader(SessionHeader); sid != "" {
			subject = "session:" + sid
		}
		key := rediskey.RateLimitKey(scope, subject)

		now := time.Now()
		windowSec := int64(window.Seconds())
		if windowSec < 1 {
			windowSec = 1
		}
		// 以毫秒为分值，同一秒内的多次请求也能正确计数
		nowMS := now.UnixMilli()
		windowStart := nowMS - windowSec*1000
		member := fmt.Sprintf("%d-%d", nowMS, now.UnixNano())

		res, err := rdb.Eval(c.Request.Context(), luaRateLimit, []string{key},
			nowMS, windowStart, windowSec, member, limit).Int()
		if err != nil {
			// Redis 出错时放行（降级策略）
			c.Next()
			return
		}

		if res < 0 {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": http.StatusTooManyRequests,
				"msg":  "too many requests, please retry later",
				"kind": "rate_limited",
			})
			return
		}
		c.Next()
	}
}
