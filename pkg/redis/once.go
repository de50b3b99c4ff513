package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// MarkOnce 幂等标记：
// - 首次标记返回 true
// - 重复标记返回 false（调用方应跳过副作用）
func MarkOnce(ctx context.Context, rdb *rd.Client, key string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, key, "1", ttl).Result()
}

// Unmark 撤销标记，副作用执行失败时调用，以便重试。
func Unmark(ctx context.Context, rdb *rd.Client, key string) error {
	return rdb.Del(ctx, key).Err()
}
