package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// luaReleaseIfOwner 仅当锁值等于 owner 时才删除，避免误删其他实例的锁。
const luaReleaseIfOwner = `
local key = KEYS[1]
local owner = ARGV[1]
if redis.call('GET', key) == owner then
  return redis.call('DEL', key)
end
return 0
`

// AcquireLock 以 owner 为值设置带 TTL 的锁；返回是否抢到。
func AcquireLock(ctx context.Context, rdb *rd.Client, key, owner string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, key, owner, ttl).Result()
}

// ReleaseLock 安全释放锁。
func ReleaseLock(ctx context.Context, rdb *rd.Client, key, owner string) error {
	_, err := rdb.Eval(ctx, luaReleaseIfOwner, []string{key}, owner).Int()
	return err
}
